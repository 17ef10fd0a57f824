package testutil

import (
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/require"
)

func TestFaultFs_WriteLimit(t *testing.T) {
	fsys := NewFaultFs(afero.NewMemMapFs())
	fsys.FailWriteAfter = 3

	f, err := fsys.Create("/a")
	require.NoError(t, err)
	n, err := f.Write([]byte("hello"))
	require.ErrorIs(t, err, ErrInjected)
	require.Equal(t, 3, n)
	require.NoError(t, f.Close())

	got, err := afero.ReadFile(fsys, "/a")
	require.NoError(t, err)
	require.Equal(t, []byte("hel"), got)
	require.Equal(t, 1, fsys.Creates())
}

func TestFaultFs_SyncAndRename(t *testing.T) {
	fsys := NewFaultFs(afero.NewMemMapFs())
	f, err := fsys.Create("/a")
	require.NoError(t, err)
	require.NoError(t, f.Sync())

	fsys.FailSync = true
	require.ErrorIs(t, f.Sync(), ErrInjected)
	require.NoError(t, f.Close())

	fsys.FailRename = true
	require.ErrorIs(t, fsys.Rename("/a", "/b"), ErrInjected)
	fsys.FailRename = false
	require.NoError(t, fsys.Rename("/a", "/b"))
	require.Equal(t, []string{"b"}, DirNames(t, fsys, "/"))
}

func TestFaultFs_BlockCreates(t *testing.T) {
	fsys := NewFaultFs(afero.NewMemMapFs())
	entered, release := fsys.BlockCreates()

	done := make(chan error, 1)
	go func() {
		f, err := fsys.Create("/slow")
		if err == nil {
			err = f.Close()
		}
		done <- err
	}()

	<-entered
	select {
	case <-done:
		t.Fatal("create returned before release")
	default:
	}
	release()
	require.NoError(t, <-done)
	require.Equal(t, []byte{0, 1, 2}, Seq(3))
}
