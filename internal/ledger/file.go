package ledger

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"spendbot/internal/core"
	"spendbot/internal/log"
)

// FileStore keeps the whole ledger in one JSON file. Every read-modify-write
// runs under a single mutex so that concurrent confirms cannot overwrite each
// other, and writes replace the file atomically through a rename.
//
// Reads for display fall back to an empty ledger. Reads that precede a write
// fail instead, unless the file is corrupt, in which case it is first copied
// to <path>.corrupt.
type FileStore struct {
	mu     sync.Mutex
	path   string
	logger *log.Logger
}

var _ Repository = (*FileStore)(nil)

// NewFileStore prepares path, creating its directory and an empty "{}" file
// when missing.
func NewFileStore(path string, logger *log.Logger) (*FileStore, error) {
	if logger == nil {
		logger = log.Discard()
	}
	s := &FileStore{
		path:   path,
		logger: logger.WithComponent(log.ComponentLedger).With(log.FieldBackend, "file"),
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create ledger directory: %w", err)
	}
	if err := s.ensureFile(); err != nil {
		return nil, err
	}
	return s, nil
}

// Path returns the location of the backing file.
func (s *FileStore) Path() string { return s.path }

func (s *FileStore) Load(ctx context.Context) core.LedgerData {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.read(ctx)
}

func (s *FileStore) Save(ctx context.Context, data core.LedgerData) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.write(ctx, data)
}

func (s *FileStore) History(ctx context.Context, userID int64) []core.ExpenseRecord {
	return s.User(ctx, userID).Spendings
}

func (s *FileStore) User(ctx context.Context, userID int64) core.UserLedger {
	return lookup(s.Load(ctx), userID)
}

func (s *FileStore) MergeAppend(ctx context.Context, userID int64, entries []core.ExpenseRecord) (core.UserLedger, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := s.readForUpdate(ctx)
	if err != nil {
		return core.UserLedger{}, err
	}
	u := appendEntries(lookup(data, userID), entries)
	data[userID] = u
	if err := s.write(ctx, data); err != nil {
		return core.UserLedger{}, err
	}
	s.logger.DebugContext(ctx, "Entries appended",
		log.FieldUserID, userID,
		log.FieldCount, len(entries))
	return u, nil
}

func (s *FileStore) SetAnchor(ctx context.Context, userID int64, menuID int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := s.readForUpdate(ctx)
	if err != nil {
		return err
	}
	u := lookup(data, userID)
	u.MenuID = menuID
	data[userID] = u
	return s.write(ctx, data)
}

func (s *FileStore) ensureFile() error {
	_, err := os.Stat(s.path)
	if err == nil {
		return nil
	}
	if !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("stat ledger file: %w", err)
	}
	if err := s.replace([]byte("{}\n")); err != nil {
		return fmt.Errorf("create ledger file: %w", err)
	}
	return nil
}

// read must be called with mu held.
func (s *FileStore) read(ctx context.Context) core.LedgerData {
	b, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			if err := s.ensureFile(); err != nil {
				s.logger.WarnContext(ctx, "Failed to recreate ledger file",
					log.FieldOperation, log.OpLoad,
					log.FieldError, err)
			}
		} else {
			s.logger.ErrorContext(ctx, "Failed to read ledger file",
				log.FieldOperation, log.OpLoad,
				log.FieldError, err,
				"path", s.path)
		}
		return core.LedgerData{}
	}
	data, err := Decode(b)
	if err != nil {
		s.logger.ErrorContext(ctx, "Ledger file is corrupt, starting from an empty ledger",
			log.FieldOperation, log.OpLoad,
			log.FieldErrorType, log.ErrorTypeStorage,
			log.FieldError, err,
			"path", s.path)
		return core.LedgerData{}
	}
	return data
}

// readForUpdate must be called with mu held. Only a missing or corrupt file
// yields an empty ledger; any other read error aborts the write.
func (s *FileStore) readForUpdate(ctx context.Context) (core.LedgerData, error) {
	b, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return core.LedgerData{}, nil
	}
	if err != nil {
		s.logger.ErrorContext(ctx, "Failed to read ledger file before update",
			log.FieldOperation, log.OpAppend,
			log.FieldErrorType, log.ErrorTypeStorage,
			log.FieldError, err,
			"path", s.path)
		return nil, fmt.Errorf("%w: read ledger file: %w", ErrPersist, err)
	}
	data, err := Decode(b)
	if err == nil {
		return data, nil
	}

	backup := s.path + ".corrupt"
	if werr := os.WriteFile(backup, b, 0o600); werr != nil {
		return nil, fmt.Errorf("%w: back up corrupt ledger file: %w", ErrPersist, werr)
	}
	s.logger.ErrorContext(ctx, "Ledger file is corrupt, kept a copy before replacing it",
		log.FieldOperation, log.OpAppend,
		log.FieldErrorType, log.ErrorTypeStorage,
		log.FieldError, err,
		"backup", backup)
	return core.LedgerData{}, nil
}

// write must be called with mu held.
func (s *FileStore) write(ctx context.Context, data core.LedgerData) error {
	b, err := Encode(data)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrPersist, err)
	}
	if err := s.replace(b); err != nil {
		s.logger.ErrorContext(ctx, "Failed to write ledger file",
			log.FieldOperation, log.OpSave,
			log.FieldErrorType, log.ErrorTypeStorage,
			log.FieldError, err,
			"path", s.path)
		return fmt.Errorf("%w: %w", ErrPersist, err)
	}
	return nil
}

func (s *FileStore) replace(b []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(s.path), "."+filepath.Base(s.path)+".*.tmp")
	if err != nil {
		return err
	}
	name := tmp.Name()
	if _, err := tmp.Write(b); err != nil {
		tmp.Close()
		os.Remove(name)
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(name)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(name)
		return err
	}
	if err := os.Rename(name, s.path); err != nil {
		os.Remove(name)
		return err
	}
	return nil
}
