package upload

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	fileutil "dirupload/internal/file"
)

// SessionStore persists session state and owns the spool directories that
// hold selected blobs.
type SessionStore interface {
	SaveSession(ctx context.Context, s Session) error
	LoadSessions(ctx context.Context) ([]Session, error)
	SelectionDir(sessionID, selectionID string) string
	RemoveSelection(ctx context.Context, sessionID, selectionID string) error
}

// fileStore keeps everything under dataDir/sessions/<id>.
type fileStore struct {
	dataDir string
}

func NewFileStore(dataDir string) SessionStore { //nolint:ireturn
	if dataDir == "" {
		dataDir = defaultDataDir
	}
	return &fileStore{dataDir: dataDir}
}

func (s *fileStore) sessionsRoot() string {
	return filepath.Join(s.dataDir, "sessions")
}

func (s *fileStore) sessionDir(sessionID string) string {
	return filepath.Join(s.sessionsRoot(), sessionID)
}

func (s *fileStore) statusPath(sessionID string) string {
	return filepath.Join(s.sessionDir(sessionID), "status.json")
}

func (s *fileStore) SelectionDir(sessionID, selectionID string) string {
	return filepath.Join(s.sessionDir(sessionID), "selections", selectionID)
}

func (s *fileStore) SaveSession(_ context.Context, session Session) error {
	if err := fileutil.EnsureDir(s.sessionDir(session.ID)); err != nil {
		return fmt.Errorf("ensure session dir: %w", err)
	}
	return fileutil.WriteJSONAtomic(s.statusPath(session.ID), session) //nolint:wrapcheck
}

func (s *fileStore) RemoveSelection(_ context.Context, sessionID, selectionID string) error {
	if selectionID == "" {
		return nil
	}
	return fileutil.RemoveAll(s.SelectionDir(sessionID, selectionID)) //nolint:wrapcheck
}

func (s *fileStore) LoadSessions(_ context.Context) ([]Session, error) {
	entries, err := os.ReadDir(s.sessionsRoot())
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read dir: %w", err)
	}
	sessions := make([]Session, 0, len(entries))
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		raw, err := os.ReadFile(s.statusPath(e.Name())) //nolint:gosec // path is controlled by application
		if err != nil {
			continue
		}
		var session Session
		if err := json.Unmarshal(raw, &session); err != nil {
			continue
		}
		sessions = append(sessions, session)
	}
	return sessions, nil
}
