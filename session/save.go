package session

import (
	"context"

	"github.com/joshuapare/hexkit/persist"
	"github.com/joshuapare/hexkit/pkg/types"
)

// Save writes the effective bytes to the session's path and moves the save
// point to the state captured when Save was called. Saving a clean session
// does nothing. Untitled sessions fail with types.ErrNoPath.
//
// Only one save runs at a time; a concurrent call fails with
// types.ErrSaveInProgress. On failure the file on disk is unchanged and the
// session stays dirty.
func (s *Session) Save(ctx context.Context) error {
	return s.save(ctx, "", false)
}

// SaveAs writes the effective bytes to path and makes it the session's
// path. The previously opened file is not touched. It writes even when the
// session is clean.
func (s *Session) SaveAs(ctx context.Context, path string) error {
	if path == "" {
		return types.ErrNoPath
	}
	return s.save(ctx, path, true)
}

func (s *Session) save(ctx context.Context, path string, as bool) error {
	if !s.saving.CompareAndSwap(false, true) {
		return types.ErrSaveInProgress
	}
	defer s.saving.Store(false)

	s.mu.RLock()
	if s.buf == nil {
		s.mu.RUnlock()
		return types.ErrNotOpen
	}
	if !as {
		if s.path == "" {
			s.mu.RUnlock()
			return types.ErrNoPath
		}
		if !s.log.Dirty() {
			s.mu.RUnlock()
			s.logger.Debug("save skipped, session clean", "path", s.path)
			return nil
		}
		path = s.path
	}

	popts := persist.Options{
		Sync:   s.opts.Sync,
		Backup: s.opts.Backup,
		Logger: s.logger,
	}
	mapped := s.buf.Mapped()
	if mapped {
		// In-place writers show through the mapping; saving would merge
		// their bytes into ours.
		if err := s.buf.Verify(); err != nil {
			s.mu.RUnlock()
			s.logger.Warn("save refused", "path", path, "error", err)
			return err
		}
		popts.Precommit = s.buf.Verify
	}
	if (s.opts.CheckExternalChange || mapped) && path == s.path {
		popts.CheckFingerprint = true
		popts.Fingerprint = s.diskFP
		if s.saves == 0 {
			popts.Fingerprint = s.buf.Fingerprint()
		}
	}
	snap := s.buf.Snapshot()
	mark := s.log.Current()
	s.mu.RUnlock()

	res, err := persist.Save(ctx, s.fs, snap, path, popts)
	if err != nil {
		s.logger.Warn("save failed", "path", path, "error", err)
		return err
	}

	// Close, Discard and Open are refused while saving, so buf and log are
	// still the ones the snapshot came from.
	s.mu.Lock()
	defer s.mu.Unlock()
	s.log.SetSaved(mark)
	s.path = path
	s.diskFP = res.Fingerprint
	s.saves++
	s.logger.Info("session saved", "path", path, "size", res.Size, "backup", res.BackupPath)
	return nil
}
