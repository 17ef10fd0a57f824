package session_test

import (
	"bytes"
	"context"
	"io/fs"
	"math/rand/v2"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joshuapare/hexkit/display"
	"github.com/joshuapare/hexkit/internal/mmfile"
	"github.com/joshuapare/hexkit/internal/testutil"
	"github.com/joshuapare/hexkit/pkg/types"
	"github.com/joshuapare/hexkit/session"
)

func setup(t *testing.T, content []byte) (*session.Session, *testutil.FaultFs) {
	t.Helper()
	fsys := testutil.NewFaultFs(afero.NewMemMapFs())
	require.NoError(t, afero.WriteFile(fsys.Fs, "/data/file.bin", content, 0o644))
	opts := session.DefaultOptions()
	opts.Fs = fsys
	s := session.New(opts)
	require.NoError(t, s.Open("/data/file.bin"))
	return s, fsys
}

func readAll(t *testing.T, s *session.Session) []byte {
	t.Helper()
	data, err := s.Read(0, s.Len())
	require.NoError(t, err)
	return data
}

func onDisk(t *testing.T, fsys afero.Fs, path string) []byte {
	t.Helper()
	data, err := afero.ReadFile(fsys, path)
	require.NoError(t, err)
	return data
}

func TestTenByteScenario(t *testing.T) {
	s, fsys := setup(t, testutil.Seq(10))
	ctx := context.Background()
	require.Equal(t, session.Clean, s.State())

	require.NoError(t, s.Write(3, []byte{0xFF}))
	modified := []byte{0x00, 0x01, 0x02, 0xFF, 0x04, 0x05, 0x06, 0x07, 0x08, 0x09}
	require.Equal(t, modified, readAll(t, s))
	require.True(t, s.IsDirty())

	ch, err := s.Undo()
	require.NoError(t, err)
	assert.Equal(t, session.Change{Offset: 3, Removed: 1, Inserted: 1}, ch)
	require.Equal(t, testutil.Seq(10), readAll(t, s))
	require.False(t, s.IsDirty())

	// Saving the undone state does not touch the file.
	require.NoError(t, s.Save(ctx))
	require.Zero(t, fsys.Creates())
	require.Equal(t, testutil.Seq(10), onDisk(t, fsys, "/data/file.bin"))

	_, err = s.Redo()
	require.NoError(t, err)
	require.True(t, s.IsDirty())
	require.NoError(t, s.Save(ctx))
	require.False(t, s.IsDirty())
	require.Equal(t, modified, onDisk(t, fsys, "/data/file.bin"))
	require.Equal(t, []string{"file.bin"}, testutil.DirNames(t, fsys, "/data"))
}

func TestWritesThenEqualUndos_RestoreOriginal(t *testing.T) {
	original := testutil.Seq(256)
	s, _ := setup(t, original)
	rng := rand.New(rand.NewPCG(7, 11))

	const n = 200
	var afterEach [][]byte
	for range n {
		off := rng.Int64N(250)
		data := []byte{byte(rng.IntN(256)), byte(rng.IntN(256))}
		require.NoError(t, s.Write(off, data))
		afterEach = append(afterEach, readAll(t, s))
	}
	for range n {
		_, err := s.Undo()
		require.NoError(t, err)
	}
	require.Equal(t, original, readAll(t, s))
	require.False(t, s.IsDirty())

	// write, undo, redo lands on the state right after the write.
	_, err := s.Redo()
	require.NoError(t, err)
	require.Equal(t, afterEach[0], readAll(t, s))
}

func TestSaveReopenRoundTrip(t *testing.T) {
	s, fsys := setup(t, testutil.Seq(64))
	require.NoError(t, s.Write(0, []byte("HEAD")))
	require.NoError(t, s.Insert(32, []byte("inserted")))
	require.NoError(t, s.Delete(50, 5))
	require.NoError(t, s.Insert(s.Len(), []byte("tail")))
	want := readAll(t, s)

	require.NoError(t, s.Save(context.Background()))
	require.NoError(t, s.Close())

	again := session.New(session.Options{Fs: fsys})
	require.NoError(t, again.Open("/data/file.bin"))
	require.Equal(t, want, readAll(t, again))
}

func TestSaveFailure_FileUnchanged(t *testing.T) {
	s, fsys := setup(t, testutil.Seq(10))
	require.NoError(t, s.Write(0, []byte{0xAA, 0xBB}))

	fsys.FailRename = true
	err := s.Save(context.Background())
	require.ErrorIs(t, err, types.ErrIO)
	require.ErrorIs(t, err, testutil.ErrInjected)
	require.True(t, s.IsDirty())
	require.Equal(t, testutil.Seq(10), onDisk(t, fsys, "/data/file.bin"))
	require.Equal(t, []string{"file.bin"}, testutil.DirNames(t, fsys, "/data"))

	fsys.FailRename = false
	require.NoError(t, s.Save(context.Background()))
	require.False(t, s.IsDirty())
}

func TestFind_PlantedPattern(t *testing.T) {
	content := bytes.Repeat([]byte{0x00}, 4096)
	const k = 1234
	copy(content[k:], "MAGIC")
	s, _ := setup(t, content)
	ctx := context.Background()

	sc, err := s.Find([]byte("MAGIC"), 0, types.Forward)
	require.NoError(t, err)
	off, err := sc.Next(ctx)
	require.NoError(t, err)
	require.Equal(t, int64(k), off)

	off, err = s.FindNext(ctx, []byte("MAGIC"), s.Len(), types.Backward, false)
	require.NoError(t, err)
	require.Equal(t, int64(k), off)

	require.NoError(t, s.Write(k+2, []byte("X")))
	_, err = s.FindNext(ctx, []byte("MAGIC"), 0, types.Forward, true)
	require.ErrorIs(t, err, types.ErrNotFound)

	// Matches of the inserted bytes are visible before saving.
	require.NoError(t, s.Insert(10, []byte("MAGIC")))
	n, err := s.Count(ctx, []byte("MAGIC"))
	require.NoError(t, err)
	require.Equal(t, 1, n)

	_, err = s.Find(nil, 0, types.Forward)
	require.ErrorIs(t, err, types.ErrInvalidPattern)
	_, err = s.Find([]byte("x"), s.Len()+1, types.Forward)
	require.ErrorIs(t, err, types.ErrOutOfRange)
}

func TestFindScannerIgnoresLaterEdits(t *testing.T) {
	s, _ := setup(t, []byte("abcabcabc"))
	sc, err := s.Find([]byte("abc"), 0, types.Forward)
	require.NoError(t, err)

	require.NoError(t, s.Write(3, []byte("xyz")))

	var got []int64
	for off, err := range sc.All(context.Background()) {
		require.NoError(t, err)
		got = append(got, off)
	}
	require.Equal(t, []int64{0, 3, 6}, got)
}

func TestHistoryCap(t *testing.T) {
	const capacity = 5
	fsys := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fsys, "/f.bin", testutil.Seq(16), 0o644))
	s := session.New(session.Options{Fs: fsys, HistoryCap: capacity})
	require.NoError(t, s.Open("/f.bin"))

	for i := range capacity + 1 {
		require.NoError(t, s.Write(int64(i), []byte{0xEE}))
	}
	for range capacity {
		_, err := s.Undo()
		require.NoError(t, err)
	}
	_, err := s.Undo()
	require.ErrorIs(t, err, types.ErrNotAvailable)

	// The evicted first edit stays applied, so the session is still dirty.
	require.True(t, s.IsDirty())
	got, err := s.Read(0, 1)
	require.NoError(t, err)
	require.Equal(t, []byte{0xEE}, got)
}

func TestUndoRedoBoundaries(t *testing.T) {
	s, _ := setup(t, testutil.Seq(4))
	_, err := s.Undo()
	require.ErrorIs(t, err, types.ErrNotAvailable)
	_, err = s.Redo()
	require.ErrorIs(t, err, types.ErrNotAvailable)
	require.False(t, s.CanUndo())
	require.False(t, s.CanRedo())
	require.Equal(t, testutil.Seq(4), readAll(t, s))
}

func TestUndoRedoChanges(t *testing.T) {
	s, _ := setup(t, []byte("0123456789"))

	require.NoError(t, s.Insert(2, []byte("abc")))
	require.Equal(t, int64(13), s.Len())
	ch, err := s.Undo()
	require.NoError(t, err)
	assert.Equal(t, session.Change{Offset: 2, Removed: 3, Inserted: 0}, ch)
	ch, err = s.Redo()
	require.NoError(t, err)
	assert.Equal(t, session.Change{Offset: 2, Removed: 0, Inserted: 3}, ch)

	require.NoError(t, s.Delete(0, 2))
	require.Equal(t, []byte("abc23456789"), readAll(t, s))
	ch, err = s.Undo()
	require.NoError(t, err)
	assert.Equal(t, session.Change{Offset: 0, Removed: 0, Inserted: 2}, ch)
	require.Equal(t, []byte("01abc23456789"), readAll(t, s))
}

func TestEditErrors(t *testing.T) {
	s, _ := setup(t, testutil.Seq(10))
	require.ErrorIs(t, s.Write(9, []byte{1, 2}), types.ErrOutOfRange)
	require.ErrorIs(t, s.Write(-1, []byte{1}), types.ErrOutOfRange)
	require.ErrorIs(t, s.Delete(5, 6), types.ErrOutOfRange)
	require.ErrorIs(t, s.Insert(11, []byte{1}), types.ErrOutOfRange)
	_, err := s.Read(5, 6)
	require.ErrorIs(t, err, types.ErrOutOfRange)

	// Nothing was recorded.
	require.False(t, s.IsDirty())
	require.False(t, s.CanUndo())

	// Empty edits are accepted and not recorded either.
	require.NoError(t, s.Write(3, nil))
	require.False(t, s.CanUndo())
}

func TestCloseWhileDirty(t *testing.T) {
	s, _ := setup(t, testutil.Seq(10))
	require.NoError(t, s.Write(1, []byte{0x55}))

	require.ErrorIs(t, s.Close(), types.ErrUnsavedChanges)
	require.Equal(t, session.Dirty, s.State())

	require.NoError(t, s.Discard())
	require.Equal(t, testutil.Seq(10), readAll(t, s))
	require.False(t, s.CanUndo())
	require.NoError(t, s.Close())
	require.Equal(t, session.Unopened, s.State())

	_, err := s.Read(0, 1)
	require.ErrorIs(t, err, types.ErrNotOpen)
	require.ErrorIs(t, s.Write(0, []byte{1}), types.ErrNotOpen)
	_, err = s.Undo()
	require.ErrorIs(t, err, types.ErrNotOpen)
	require.ErrorIs(t, s.Save(context.Background()), types.ErrNotOpen)
	require.ErrorIs(t, s.Close(), types.ErrNotOpen)
	require.ErrorIs(t, s.Discard(), types.ErrNotOpen)
	require.Zero(t, s.Len())
}

func TestDiscardAfterSave(t *testing.T) {
	s, fsys := setup(t, testutil.Seq(8))
	require.NoError(t, s.Write(0, []byte{0xA0}))
	require.NoError(t, s.Save(context.Background()))
	saved := readAll(t, s)

	require.NoError(t, s.Write(1, []byte{0xB0}))
	require.NoError(t, s.Discard())
	require.Equal(t, saved, readAll(t, s))
	require.Equal(t, onDisk(t, fsys, "/data/file.bin"), readAll(t, s))
	require.False(t, s.IsDirty())
	require.NoError(t, s.Close())
}

func TestSavePointMovesWithUndo(t *testing.T) {
	s, _ := setup(t, testutil.Seq(8))
	require.NoError(t, s.Write(0, []byte{1}))
	require.NoError(t, s.Write(1, []byte{2}))
	require.NoError(t, s.Save(context.Background()))
	require.False(t, s.IsDirty())

	_, err := s.Undo()
	require.NoError(t, err)
	require.True(t, s.IsDirty())
	_, err = s.Redo()
	require.NoError(t, err)
	require.False(t, s.IsDirty())
}

func TestCreateAndSaveAs(t *testing.T) {
	fsys := afero.NewMemMapFs()
	require.NoError(t, fsys.MkdirAll("/out", 0o755))
	s := session.New(session.Options{Fs: fsys})
	require.NoError(t, s.Create(4))
	require.Equal(t, []byte{0, 0, 0, 0}, readAll(t, s))
	require.Empty(t, s.Path())
	require.False(t, s.IsDirty())

	require.NoError(t, s.Write(1, []byte{7}))
	require.ErrorIs(t, s.Save(context.Background()), types.ErrNoPath)
	require.ErrorIs(t, s.SaveAs(context.Background(), ""), types.ErrNoPath)

	require.NoError(t, s.SaveAs(context.Background(), "/out/new.bin"))
	require.Equal(t, "/out/new.bin", s.Path())
	require.False(t, s.IsDirty())
	require.Equal(t, []byte{0, 7, 0, 0}, onDisk(t, fsys, "/out/new.bin"))

	require.NoError(t, s.Write(3, []byte{9}))
	require.NoError(t, s.Save(context.Background()))
	require.Equal(t, []byte{0, 7, 0, 9}, onDisk(t, fsys, "/out/new.bin"))

	require.ErrorIs(t, s.Create(-1), types.ErrOutOfRange)
}

func TestSaveAs_LeavesOriginal(t *testing.T) {
	s, fsys := setup(t, testutil.Seq(6))
	require.NoError(t, s.Write(0, []byte{0xCC}))
	require.NoError(t, s.SaveAs(context.Background(), "/data/copy.bin"))

	require.Equal(t, testutil.Seq(6), onDisk(t, fsys, "/data/file.bin"))
	require.Equal(t, []byte{0xCC, 1, 2, 3, 4, 5}, onDisk(t, fsys, "/data/copy.bin"))
	require.Equal(t, "/data/copy.bin", s.Path())
	require.False(t, s.IsDirty())
}

func TestConcurrentSaveRejected(t *testing.T) {
	s, fsys := setup(t, testutil.Seq(10))
	require.NoError(t, s.Write(0, []byte{0x11}))

	entered, release := fsys.BlockCreates()

	done := make(chan error, 1)
	go func() { done <- s.Save(context.Background()) }()
	<-entered

	require.ErrorIs(t, s.Save(context.Background()), types.ErrSaveInProgress)
	require.ErrorIs(t, s.SaveAs(context.Background(), "/data/other.bin"), types.ErrSaveInProgress)
	require.ErrorIs(t, s.Discard(), types.ErrSaveInProgress)

	// Edits may continue while the save writes its snapshot.
	require.NoError(t, s.Write(1, []byte{0x22}))

	release()
	require.NoError(t, <-done)

	want := testutil.Seq(10)
	want[0] = 0x11
	require.Equal(t, want, onDisk(t, fsys, "/data/file.bin"))
	require.True(t, s.IsDirty(), "the edit made during the save is still unsaved")

	_, err := s.Undo()
	require.NoError(t, err)
	require.False(t, s.IsDirty())
}

func TestExternalChangeDetected(t *testing.T) {
	s, fsys := setup(t, testutil.Seq(10))
	require.NoError(t, s.Write(0, []byte{0x99}))

	require.NoError(t, afero.WriteFile(fsys.Fs, "/data/file.bin", []byte("changed elsewhere"), 0o644))
	err := s.Save(context.Background())
	require.ErrorIs(t, err, types.ErrExternalChange)
	require.True(t, s.IsDirty())
	require.Equal(t, []byte("changed elsewhere"), onDisk(t, fsys, "/data/file.bin"))

	// Writing elsewhere is still possible.
	require.NoError(t, s.SaveAs(context.Background(), "/data/other.bin"))
	require.False(t, s.IsDirty())
}

func TestMappedInPlaceRewriteDetected(t *testing.T) {
	if !mmfile.Supported {
		t.Skip("mmap not supported on this platform")
	}
	dir := t.TempDir()
	path := filepath.Join(dir, "mapped.bin")
	require.NoError(t, os.WriteFile(path, []byte("AAAAAAAA"), 0o644))

	// The check is on for mapped sessions even when the option is off.
	s := session.New(session.Options{Mmap: true})
	require.NoError(t, s.Open(path))
	require.NoError(t, s.Write(0, []byte("Z")))

	f, err := os.OpenFile(path, os.O_WRONLY, 0)
	require.NoError(t, err)
	_, err = f.WriteAt([]byte("BBBBBBBB"), 0)
	require.NoError(t, err)
	require.NoError(t, f.Close())

	require.ErrorIs(t, s.Save(context.Background()), types.ErrExternalChange)
	require.ErrorIs(t, s.SaveAs(context.Background(), filepath.Join(dir, "copy.bin")), types.ErrExternalChange)
	require.True(t, s.IsDirty())

	disk, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Equal(t, []byte("BBBBBBBB"), disk)
	_, err = os.Stat(filepath.Join(dir, "copy.bin"))
	require.ErrorIs(t, err, fs.ErrNotExist)

	// Dropping the edit lets Close succeed.
	require.NoError(t, s.Discard())
	require.NoError(t, s.Close())
}

func TestMappedSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "mapped.bin")
	require.NoError(t, os.WriteFile(path, testutil.Seq(16), 0o644))

	s := session.New(session.Options{Mmap: true})
	require.NoError(t, s.Open(path))
	require.NoError(t, s.Write(2, []byte{0xEE}))
	require.NoError(t, s.Save(context.Background()))
	require.False(t, s.IsDirty())

	want := testutil.Seq(16)
	want[2] = 0xEE
	disk, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Equal(t, want, disk)
	require.NoError(t, s.Close())
}

func TestExternalChangeCheckDisabled(t *testing.T) {
	fsys := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fsys, "/f.bin", testutil.Seq(4), 0o644))
	s := session.New(session.Options{Fs: fsys})
	require.NoError(t, s.Open("/f.bin"))
	require.NoError(t, s.Write(0, []byte{0x42}))
	require.NoError(t, afero.WriteFile(fsys, "/f.bin", testutil.Seq(5), 0o644))
	require.NoError(t, s.Save(context.Background()))
	require.Equal(t, []byte{0x42, 1, 2, 3}, onDisk(t, fsys, "/f.bin"))
}

func TestSaveWithBackup(t *testing.T) {
	fsys := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fsys, "/f.bin", testutil.Seq(4), 0o644))
	s := session.New(session.Options{Fs: fsys, Backup: true})
	require.NoError(t, s.Open("/f.bin"))
	require.NoError(t, s.Delete(0, 1))
	require.NoError(t, s.Save(context.Background()))

	require.Equal(t, []byte{1, 2, 3}, onDisk(t, fsys, "/f.bin"))
	require.Equal(t, testutil.Seq(4), onDisk(t, fsys, "/f.bin.bak"))
}

func TestSaveCancelled(t *testing.T) {
	s, fsys := setup(t, testutil.Seq(10))
	require.NoError(t, s.Write(0, []byte{0x01, 0x02}))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.ErrorIs(t, s.Save(ctx), context.Canceled)
	require.True(t, s.IsDirty())
	require.Equal(t, testutil.Seq(10), onDisk(t, fsys, "/data/file.bin"))
}

func TestOpenWhileDirtyRefused(t *testing.T) {
	s, fsys := setup(t, testutil.Seq(4))
	require.NoError(t, afero.WriteFile(fsys.Fs, "/data/second.bin", testutil.Seq(8), 0o644))
	require.NoError(t, s.Write(0, []byte{9}))

	require.ErrorIs(t, s.Open("/data/second.bin"), types.ErrUnsavedChanges)
	require.Equal(t, "/data/file.bin", s.Path())
	require.Equal(t, []byte{9, 1, 2, 3}, readAll(t, s))

	_, err := s.Undo()
	require.NoError(t, err)
	require.NoError(t, s.Open("/data/second.bin"))
	require.Equal(t, "/data/second.bin", s.Path())
	require.Equal(t, int64(8), s.Len())
}

func TestOpenMissingFile(t *testing.T) {
	s := session.New(session.Options{Fs: afero.NewMemMapFs()})
	err := s.Open("/nope.bin")
	require.ErrorIs(t, err, types.ErrIO)
	require.ErrorIs(t, err, fs.ErrNotExist)
	require.Equal(t, session.Unopened, s.State())
}

func TestOpenEmptyFile(t *testing.T) {
	s, _ := setup(t, nil)
	require.Zero(t, s.Len())
	data, err := s.Read(0, 0)
	require.NoError(t, err)
	require.Empty(t, data)
	require.NoError(t, s.Insert(0, []byte("x")))
	require.Equal(t, int64(1), s.Len())
}

func TestCopyGotoAndRanges(t *testing.T) {
	s, _ := setup(t, []byte("0123456789"))

	got, err := s.Copy(0, 3, display.Hex)
	require.NoError(t, err)
	assert.Equal(t, "30 31 32", got)
	got, err = s.Copy(0, 3, display.HexStream)
	require.NoError(t, err)
	assert.Equal(t, "303132", got)
	got, err = s.Copy(7, 3, display.Raw)
	require.NoError(t, err)
	assert.Equal(t, "789", got)
	_, err = s.Copy(8, 3, display.Raw)
	require.ErrorIs(t, err, types.ErrOutOfRange)

	require.NoError(t, s.Goto(0))
	require.NoError(t, s.Goto(10))
	require.ErrorIs(t, s.Goto(11), types.ErrOutOfRange)
	require.ErrorIs(t, s.Goto(-1), types.ErrOutOfRange)

	require.NoError(t, s.Write(2, []byte("ab")))
	require.NoError(t, s.Write(4, []byte("cd")))
	require.NoError(t, s.Write(8, []byte("z")))
	ranges, err := s.ModifiedRanges()
	require.NoError(t, err)
	assert.Equal(t, []types.Range{{Off: 2, Len: 4}, {Off: 8, Len: 1}}, ranges)
}

func TestDumpUsesDisplayOptions(t *testing.T) {
	s, _ := setup(t, []byte("hello, world"))
	s.SetDisplay(display.Options{BytesPerRow: 8, Format: display.HexStream})
	require.Equal(t, 8, s.Display().BytesPerRow)

	var out strings.Builder
	require.NoError(t, s.Dump(&out, 0, s.Len()))
	require.Equal(t, "68656c6c6f2c2077\n6f726c64\n", out.String())

	require.ErrorIs(t, s.Dump(&out, 5, 100), types.ErrOutOfRange)
}
