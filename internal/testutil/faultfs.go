// Package testutil provides filesystem doubles for exercising save paths.
package testutil

import (
	"errors"
	"os"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/spf13/afero"
)

// ErrInjected is returned by every failure FaultFs injects.
var ErrInjected = errors.New("injected failure")

// FaultFs wraps an afero.Fs and fails or blocks selected operations on the
// files it creates. Fields may be changed between operations, not during.
//
// Example:
//
//	fsys := testutil.NewFaultFs(afero.NewMemMapFs())
//	fsys.FailRename = true
type FaultFs struct {
	afero.Fs

	// FailWriteAfter fails a created file's writes once this many bytes
	// were written to it. Negative disables.
	FailWriteAfter int64
	FailSync       bool
	FailRename     bool

	creates atomic.Int32

	block     chan struct{}
	entered   chan struct{}
	enterOnce sync.Once
}

// NewFaultFs wraps base with no faults enabled.
func NewFaultFs(base afero.Fs) *FaultFs {
	return &FaultFs{Fs: base, FailWriteAfter: -1}
}

// Creates returns how many files were opened with O_CREATE.
func (f *FaultFs) Creates() int { return int(f.creates.Load()) }

// BlockCreates makes file creation wait until the returned release function
// is called. entered is closed when the first creation starts waiting.
func (f *FaultFs) BlockCreates() (entered <-chan struct{}, release func()) {
	f.block = make(chan struct{})
	f.entered = make(chan struct{})
	f.enterOnce = sync.Once{}
	var once sync.Once
	return f.entered, func() { once.Do(func() { close(f.block) }) }
}

func (f *FaultFs) Create(name string) (afero.File, error) {
	return f.OpenFile(name, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0o666)
}

func (f *FaultFs) OpenFile(name string, flag int, perm os.FileMode) (afero.File, error) {
	if flag&os.O_CREATE != 0 {
		f.creates.Add(1)
		if f.block != nil {
			f.enterOnce.Do(func() { close(f.entered) })
			<-f.block
		}
	}
	file, err := f.Fs.OpenFile(name, flag, perm)
	if err != nil || flag&os.O_CREATE == 0 {
		return file, err
	}
	return &faultFile{File: file, fs: f}, nil
}

func (f *FaultFs) Rename(oldname, newname string) error {
	if f.FailRename {
		return ErrInjected
	}
	return f.Fs.Rename(oldname, newname)
}

type faultFile struct {
	afero.File
	fs      *FaultFs
	written int64
}

func (f *faultFile) Write(p []byte) (int, error) {
	limit := f.fs.FailWriteAfter
	if limit >= 0 && f.written+int64(len(p)) > limit {
		n := max(limit-f.written, 0)
		m, _ := f.File.Write(p[:n])
		f.written += int64(m)
		return m, ErrInjected
	}
	n, err := f.File.Write(p)
	f.written += int64(n)
	return n, err
}

func (f *faultFile) Sync() error {
	if f.fs.FailSync {
		return ErrInjected
	}
	return f.File.Sync()
}

// Seq returns n bytes counting up from zero, wrapping at 256.
func Seq(n int) []byte {
	b := make([]byte, n)
	for i := range b {
		b[i] = byte(i)
	}
	return b
}

// DirNames lists the entry names of dir.
func DirNames(t testing.TB, fsys afero.Fs, dir string) []string {
	t.Helper()
	entries, err := afero.ReadDir(fsys, dir)
	if err != nil {
		t.Fatalf("read dir %s: %v", dir, err)
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	return names
}
