package hexkit

import (
	"context"
	"errors"
	"io"
	"time"

	"github.com/spf13/afero"

	"github.com/joshuapare/hexkit/display"
	"github.com/joshuapare/hexkit/persist"
	"github.com/joshuapare/hexkit/pkg/types"
	"github.com/joshuapare/hexkit/search"
	"github.com/joshuapare/hexkit/session"
)

// FileInfo describes a file on disk.
type FileInfo struct {
	Path        string    `json:"path"`
	Size        int64     `json:"size"`
	Mode        string    `json:"mode"`
	ModTime     time.Time `json:"mod_time"`
	Fingerprint uint64    `json:"fingerprint"` // xxhash64 of the content
}

// Info stats and fingerprints the file at path.
func Info(path string, opts *OperationOptions) (FileInfo, error) {
	opts = opts.orDefault()
	fsys := opts.Fs
	if fsys == nil {
		fsys = afero.NewOsFs()
	}
	st, err := fsys.Stat(path)
	if err != nil {
		return FileInfo{}, types.IOError("stat", path, err)
	}
	if st.IsDir() {
		return FileInfo{}, types.IOError("info", path, errors.New("is a directory"))
	}
	fp, err := persist.HashFile(fsys, path)
	if err != nil {
		return FileInfo{}, types.IOError("read", path, err)
	}
	return FileInfo{
		Path:        path,
		Size:        st.Size(),
		Mode:        st.Mode().String(),
		ModTime:     st.ModTime(),
		Fingerprint: fp,
	}, nil
}

func open(path string, opts *OperationOptions, chunk int) (*session.Session, error) {
	s := session.New(session.Options{
		Fs:          opts.Fs,
		Logger:      opts.Logger,
		Mmap:        opts.Mmap,
		SearchChunk: chunk,
	})
	if err := s.Open(path); err != nil {
		return nil, err
	}
	return s, nil
}

// Find returns the offsets of pattern in the file at path, in scan order.
// Overlapping matches are included.
func Find(ctx context.Context, path string, pattern []byte, fopts *FindOptions, opts *OperationOptions) ([]int64, error) {
	opts = opts.orDefault()
	if fopts == nil {
		fopts = &FindOptions{}
	}
	s, err := open(path, opts, fopts.ChunkSize)
	if err != nil {
		return nil, err
	}
	defer s.Close()

	dir := types.Forward
	start := fopts.Start
	if fopts.Backward {
		dir = types.Backward
		if start < 0 {
			start = s.Len()
		}
	}
	sc, err := s.Find(pattern, start, dir)
	if err != nil {
		return nil, err
	}

	offsets := []int64{}
	for off, err := range sc.All(ctx) {
		if err != nil {
			return offsets, err
		}
		offsets = append(offsets, off)
		if fopts.MaxResults > 0 && len(offsets) >= fopts.MaxResults {
			break
		}
	}
	return offsets, nil
}

// Dump writes n bytes at off of the file at path to w. A negative n dumps
// to the end of the file.
func Dump(w io.Writer, path string, off, n int64, dopts display.Options, opts *OperationOptions) error {
	opts = opts.orDefault()
	s, err := open(path, opts, search.DefaultChunkSize)
	if err != nil {
		return err
	}
	defer s.Close()

	if n < 0 {
		n = max(s.Len()-off, 0)
	}
	s.SetDisplay(dopts)
	return s.Dump(w, off, n)
}
