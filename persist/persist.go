// Package persist writes buffer contents to disk with an atomic swap.
//
// Save streams the effective bytes into a temp file created next to the
// target, syncs and closes it, and only then renames it over the target. A
// failure at any step removes the temp file and leaves the target exactly as
// it was; a half-written save is never observable.
package persist

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"path/filepath"

	"github.com/cespare/xxhash/v2"
	"github.com/spf13/afero"

	"github.com/joshuapare/hexkit/pkg/types"
)

const (
	// DefaultChunkSize is the copy granularity; the context is checked
	// between chunks.
	DefaultChunkSize = 1 << 20

	// defaultPerm is used when the target does not exist yet.
	defaultPerm fs.FileMode = 0o644

	tempPattern = ".hexkit-tmp-*"
	backupExt   = ".bak"
)

// Source is the content to persist.
type Source interface {
	io.ReaderAt
	Len() int64
}

// Options controls a save.
type Options struct {
	// Sync selects durability of the temp file before the rename.
	Sync SyncMode

	// Backup copies the current target to <path>.bak before replacing it.
	Backup bool

	// CheckFingerprint rejects the save with types.ErrExternalChange when
	// the existing target's xxhash64 differs from Fingerprint.
	CheckFingerprint bool
	Fingerprint      uint64

	// Precommit runs after the temp file is complete and before the backup
	// and rename. An error aborts the save and is returned unchanged.
	Precommit func() error

	// ChunkSize overrides DefaultChunkSize.
	ChunkSize int

	// Logger receives debug/warn events. Nil discards.
	Logger *slog.Logger
}

// Result describes a completed save.
type Result struct {
	Path        string
	Size        int64
	Fingerprint uint64 // xxhash64 of the bytes written
	BackupPath  string // empty unless a backup was made
}

// Save writes src to path atomically.
//
// The temp file lives in the target directory so the final rename never
// crosses filesystems. The file mode of an existing target is preserved.
// Cancelling ctx abandons the temp file; once the rename has happened the
// save is complete.
func Save(ctx context.Context, fsys afero.Fs, src Source, path string, opts Options) (Result, error) {
	if fsys == nil {
		fsys = afero.NewOsFs()
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}

	perm := defaultPerm
	exists := false
	switch st, err := fsys.Stat(path); {
	case err == nil:
		if st.IsDir() {
			return Result{}, types.IOError("save", path, errors.New("is a directory"))
		}
		perm = st.Mode().Perm()
		exists = true
	case errors.Is(err, fs.ErrNotExist):
	default:
		return Result{}, types.IOError("stat", path, err)
	}

	if opts.CheckFingerprint && exists {
		got, err := hashFile(fsys, path)
		if err != nil {
			return Result{}, types.IOError("read", path, err)
		}
		if got != opts.Fingerprint {
			return Result{}, fmt.Errorf("save %s: %w", path, types.ErrExternalChange)
		}
	}

	dir := filepath.Dir(path)
	tmp, err := afero.TempFile(fsys, dir, tempPattern)
	if err != nil {
		return Result{}, types.IOError("create temp file in", dir, err)
	}
	tmpPath := tmp.Name()

	// Clean up temp file on error
	defer func() {
		if tmp != nil {
			_ = tmp.Close()
		}
		if tmpPath != "" {
			_ = fsys.Remove(tmpPath)
		}
	}()

	h := xxhash.New()
	written, err := copyChunks(ctx, io.MultiWriter(tmp, h), src, opts.ChunkSize)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil && errors.Is(err, ctxErr) {
			return Result{}, err
		}
		return Result{}, types.IOError("write", tmpPath, err)
	}

	if err := syncFile(tmp, opts.Sync); err != nil {
		return Result{}, types.IOError("sync", tmpPath, err)
	}
	closeErr := tmp.Close()
	tmp = nil
	if closeErr != nil {
		return Result{}, types.IOError("close", tmpPath, closeErr)
	}
	if err := fsys.Chmod(tmpPath, perm); err != nil {
		return Result{}, types.IOError("chmod", tmpPath, err)
	}

	if opts.Precommit != nil {
		if err := opts.Precommit(); err != nil {
			return Result{}, err
		}
	}

	res := Result{Path: path, Size: written, Fingerprint: h.Sum64()}

	if opts.Backup && exists {
		res.BackupPath = path + backupExt
		if err := copyFile(fsys, path, res.BackupPath, perm); err != nil {
			return Result{}, types.IOError("backup", path, err)
		}
	}

	// Last check before the point of no return.
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}
	if err := fsys.Rename(tmpPath, path); err != nil {
		return Result{}, types.IOError("rename", path, err)
	}
	tmpPath = "" // Don't clean up in defer

	if opts.Sync == SyncFull {
		if err := syncDir(fsys, dir); err != nil {
			// The swap already happened; durability of the directory entry
			// is best effort.
			logger.Warn("directory sync failed", "dir", dir, "error", err)
		}
	}

	logger.Debug("saved", "path", path, "size", written, "sync", opts.Sync.String(), "backup", res.BackupPath)
	return res, nil
}

func copyChunks(ctx context.Context, w io.Writer, src Source, chunkSize int) (int64, error) {
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	size := src.Len()
	chunk := make([]byte, min(int64(chunkSize), max(size, 1)))

	var off int64
	for off < size {
		if err := ctx.Err(); err != nil {
			return off, err
		}
		n := min(int64(len(chunk)), size-off)
		got, err := src.ReadAt(chunk[:n], off)
		if int64(got) != n {
			if err == nil || errors.Is(err, io.EOF) {
				err = io.ErrUnexpectedEOF
			}
			return off, fmt.Errorf("read source at %d: %w", off, err)
		}
		if _, err := w.Write(chunk[:n]); err != nil {
			return off, err
		}
		off += n
	}
	return off, nil
}

func hashFile(fsys afero.Fs, path string) (uint64, error) {
	f, err := fsys.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()
	h := xxhash.New()
	if _, err := io.Copy(h, f); err != nil {
		return 0, err
	}
	return h.Sum64(), nil
}

// copyFile copies src to dst through a temp file, so a failed backup never
// leaves a truncated .bak behind.
func copyFile(fsys afero.Fs, src, dst string, perm fs.FileMode) (err error) {
	in, err := fsys.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := afero.TempFile(fsys, filepath.Dir(dst), tempPattern)
	if err != nil {
		return err
	}
	outPath := out.Name()
	defer func() {
		if err != nil {
			_ = out.Close()
			_ = fsys.Remove(outPath)
		}
	}()

	if _, err = io.Copy(out, in); err != nil {
		return err
	}
	if err = out.Close(); err != nil {
		return err
	}
	if err = fsys.Chmod(outPath, perm); err != nil {
		return err
	}
	return fsys.Rename(outPath, dst)
}

// HashFile returns the xxhash64 of the file at path.
func HashFile(fsys afero.Fs, path string) (uint64, error) {
	if fsys == nil {
		fsys = afero.NewOsFs()
	}
	return hashFile(fsys, path)
}
