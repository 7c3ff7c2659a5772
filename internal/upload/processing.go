package upload

import (
	"context"
	"time"

	"dirupload/internal/nftstorage"

	"github.com/rs/zerolog/log"
)

// runUpload performs the storage call for one snapshot and applies the outcome.
func (m *Manager) runUpload(ctx context.Context, storer Storer, sessionID string, snapshot Selection, pending *Pending) {
	if ctx == nil {
		ctx = context.Background()
	}
	if m.uploadTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, m.uploadTimeout)
		defer cancel()
	}

	contentID, err := storer.StoreDirectory(ctx, directoryEntries(snapshot.Files))
	if err != nil {
		m.failUpload(sessionID, snapshot, err)
		pending.resolve("", err)
		return
	}
	resultURL := m.completeUpload(sessionID, snapshot, contentID)
	pending.resolve(resultURL, nil)
}

// completeUpload records the result link and clears the uploaded selection.
// A selection made while the upload was running is kept.
func (m *Manager) completeUpload(sessionID string, snapshot Selection, contentID string) string {
	resultURL := nftstorage.GatewayURL(m.gatewayHost, contentID)

	m.mu.Lock()
	defer m.mu.Unlock()
	state, ok := m.sessions[sessionID]
	if !ok {
		m.removeSelection(sessionID, snapshot.ID)
		return resultURL
	}
	state.Status = StatusSucceeded
	state.CID = contentID
	state.ResultURL = resultURL
	state.UpdatedAt = time.Now()
	state.inflightSelection = ""
	if state.Selection.ID == snapshot.ID {
		state.Selection = Selection{Files: []File{}}
	}
	m.removeSelection(sessionID, snapshot.ID)
	m.persistLocked(state)

	log.Info().Str("session_id", sessionID).Str("cid", contentID).Str("url", resultURL).Msg("upload succeeded")
	return resultURL
}

// failUpload marks the session failed. The selection stays so the user can retry.
func (m *Manager) failUpload(sessionID string, snapshot Selection, cause error) {
	log.Error().Str("session_id", sessionID).Int("files", len(snapshot.Files)).Err(cause).Msg("upload failed")
	if nftstorage.IsAuthError(cause) {
		log.Warn().Str("session_id", sessionID).Msg("pinning service rejected the API token; check NFT_STORAGE_API")
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	state, ok := m.sessions[sessionID]
	if !ok {
		m.removeSelection(sessionID, snapshot.ID)
		return
	}
	state.Status = StatusFailed
	state.UpdatedAt = time.Now()
	state.inflightSelection = ""
	if state.Selection.ID != snapshot.ID {
		m.removeSelection(sessionID, snapshot.ID)
	}
	m.persistLocked(state)
}
