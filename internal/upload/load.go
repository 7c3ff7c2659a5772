package upload

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
)

// LoadFromDisk restores sessions saved by a previous run. Sessions that were
// uploading when the process stopped are marked failed; their selection is
// kept so the upload can be retried.
func (m *Manager) LoadFromDisk() error {
	if m.store == nil {
		return nil
	}
	loaded, err := m.store.LoadSessions(context.Background())
	if err != nil {
		return fmt.Errorf("load sessions: %w", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	for _, session := range loaded {
		state := &sessionState{Session: session}
		if state.Selection.Files == nil {
			state.Selection.Files = []File{}
		}
		if state.Status == StatusUploading {
			state.Status = StatusFailed
			state.UpdatedAt = time.Now()
			m.persistLocked(state)
			log.Warn().Str("session_id", state.ID).Msg("interrupted upload marked failed")
		}
		m.sessions[state.ID] = state
	}
	log.Info().Int("sessions", len(loaded)).Msg("sessions restored")
	return nil
}
