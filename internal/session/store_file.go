package session

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// fileStateVersion is bumped whenever the persisted layout changes; a file
// with a different version is ignored and the store starts empty rather than
// guessing at a migration.
const fileStateVersion = 1

type fileState struct {
	Version  int        `json:"version"`
	SavedAt  time.Time  `json:"saved_at"`
	Sessions []*Session `json:"sessions"`
}

// FileStore is a MemoryStore that snapshots its state to a JSON file after
// every mutation. Persistence is best-effort: a failed write is logged and
// traffic continues on the in-memory state.
type FileStore struct {
	*MemoryStore
	path    string
	writeMu sync.Mutex
}

func NewFileStore(path string) (*FileStore, error) {
	fs := &FileStore{MemoryStore: NewMemoryStore(), path: path}

	sessions, err := loadFileState(path)
	if err != nil {
		return nil, err
	}
	fs.seed(sessions)

	fs.onMutate = func(*Session) { fs.save() }
	fs.onEvict = func([]int64) { fs.save() }
	return fs, nil
}

func (fs *FileStore) Close() error {
	fs.save()
	return nil
}

func (fs *FileStore) save() {
	state := fileState{
		Version:  fileStateVersion,
		SavedAt:  time.Now().UTC(),
		Sessions: fs.snapshotAll(),
	}
	data, err := json.Marshal(state)
	if err != nil {
		log.Error().Err(err).Msg("marshal session state")
		return
	}

	fs.writeMu.Lock()
	defer fs.writeMu.Unlock()
	tmp := fs.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		log.Error().Err(err).Str("path", fs.path).Msg("write session state")
		return
	}
	if err := os.Rename(tmp, fs.path); err != nil {
		log.Error().Err(err).Str("path", fs.path).Msg("replace session state")
	}
}

func loadFileState(path string) ([]*Session, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		if dir := filepath.Dir(path); dir != "." {
			if err := os.MkdirAll(dir, 0o700); err != nil {
				return nil, fmt.Errorf("create state dir: %w", err)
			}
		}
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read session state: %w", err)
	}

	var state fileState
	if err := json.Unmarshal(data, &state); err != nil {
		log.Warn().Err(err).Str("path", path).Msg("session state unreadable, starting empty")
		return nil, nil
	}
	if state.Version != fileStateVersion {
		log.Warn().Int("version", state.Version).Int("want", fileStateVersion).Msg("session state version mismatch, starting empty")
		return nil, nil
	}
	return state.Sessions, nil
}
