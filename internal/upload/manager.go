package upload

import (
	"context"
	"sync"
	"time"

	"dirupload/internal/nftstorage"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// sessionState is a session plus bookkeeping that is never persisted.
type sessionState struct {
	Session
	// inflightSelection is the selection an in-flight upload is reading from.
	inflightSelection string
}

// Manager owns every upload session: its selection, status and result link.
// All state changes go through it, so a session is only ever uploaded once
// at a time.
type Manager struct {
	mu            sync.Mutex
	sessions      map[string]*sessionState
	storer        Storer
	store         SessionStore
	gatewayHost   string
	uploadTimeout time.Duration
	workersWG     sync.WaitGroup
	baseCtx       context.Context
}

// NewManager creates a manager. Without a Storer it uses an nft.storage
// client with no token, and the service rejects every upload it makes.
func NewManager(opts Options) *Manager {
	storer := opts.Storer
	if storer == nil {
		storer = nftstorage.NewClient(nftstorage.Options{})
	}
	gatewayHost := opts.GatewayHost
	if gatewayHost == "" {
		gatewayHost = nftstorage.DefaultGatewayHost
	}
	return &Manager{
		sessions:      make(map[string]*sessionState),
		storer:        storer,
		store:         NewFileStore(opts.DataDir),
		gatewayHost:   gatewayHost,
		uploadTimeout: opts.UploadTimeout,
		baseCtx:       context.Background(),
	}
}

// CreateSession starts a new idle session with an empty selection.
func (m *Manager) CreateSession() Session {
	now := time.Now()
	state := &sessionState{Session: Session{
		ID:        uuid.NewString(),
		CreatedAt: now,
		UpdatedAt: now,
		Status:    StatusIdle,
		Selection: Selection{Files: []File{}},
	}}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[state.ID] = state
	m.persistLocked(state)
	return state.snapshot()
}

// GetSession returns a copy of the session state.
func (m *Manager) GetSession(sessionID string) (Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	state, ok := m.sessions[sessionID]
	if !ok {
		return Session{}, false
	}
	return state.snapshot(), true
}

// SetSelection replaces the session's selection with incoming. Nothing is
// merged with the previous selection and the result link is left as is.
func (m *Manager) SetSelection(sessionID string, incoming []Incoming) (Session, error) {
	if _, ok := m.GetSession(sessionID); !ok {
		return Session{}, ErrSessionNotFound
	}

	selection := Selection{ID: uuid.NewString()}
	files, err := spoolFiles(m.store.SelectionDir(sessionID, selection.ID), incoming)
	if err != nil {
		m.removeSelection(sessionID, selection.ID)
		return Session{}, err
	}
	selection.Files = files

	m.mu.Lock()
	defer m.mu.Unlock()
	state, ok := m.sessions[sessionID]
	if !ok {
		m.removeSelection(sessionID, selection.ID)
		return Session{}, ErrSessionNotFound
	}
	previous := state.Selection.ID
	state.Selection = selection
	state.UpdatedAt = time.Now()
	if previous != state.inflightSelection {
		m.removeSelection(sessionID, previous)
	}
	m.persistLocked(state)

	log.Info().Str("session_id", sessionID).Int("files", len(files)).Msg("selection replaced")
	return state.snapshot(), nil
}

// Upload moves the session to uploading and stores its current selection in
// the background. The returned Session is the uploading state as of the
// transition, whatever the background upload does afterwards. An empty
// selection is a no-op reported as ErrNoFiles, and a session that is
// already uploading is rejected with ErrUploadInProgress.
func (m *Manager) Upload(sessionID string) (Session, *Pending, error) {
	m.mu.Lock()
	state, ok := m.sessions[sessionID]
	if !ok {
		m.mu.Unlock()
		return Session{}, nil, ErrSessionNotFound
	}
	if state.Status == StatusUploading {
		m.mu.Unlock()
		log.Warn().Str("session_id", sessionID).Msg("upload ignored: already uploading")
		return Session{}, nil, ErrUploadInProgress
	}
	if len(state.Selection.Files) == 0 {
		m.mu.Unlock()
		log.Error().Str("session_id", sessionID).Msg("no files selected")
		return Session{}, nil, ErrNoFiles
	}

	snapshot := state.Selection.clone()
	state.Status = StatusUploading
	state.ResultURL = ""
	state.CID = ""
	state.UpdatedAt = time.Now()
	state.inflightSelection = snapshot.ID
	m.persistLocked(state)
	started := state.snapshot()
	ctx, storer := m.baseCtx, m.storer
	m.workersWG.Add(1)
	m.mu.Unlock()

	log.Info().Str("session_id", sessionID).Int("files", len(snapshot.Files)).Msg("storing files")

	pending := newPending()
	go func() {
		defer m.workersWG.Done()
		m.runUpload(ctx, storer, sessionID, snapshot, pending)
	}()
	return started, pending, nil
}

// SetBaseContext sets the context in-flight uploads run under. Cancelling it
// aborts them; they end failed.
func (m *Manager) SetBaseContext(ctx context.Context) {
	m.mu.Lock()
	m.baseCtx = ctx
	m.mu.Unlock()
}

// WaitAll blocks until all in-flight uploads finish or the context is done.
// Returns true if all uploads finished, false if timed out.
func (m *Manager) WaitAll(ctx context.Context) bool {
	done := make(chan struct{})
	go func() {
		m.workersWG.Wait()
		close(done)
	}()
	select {
	case <-done:
		return true
	case <-ctx.Done():
		return false
	}
}

// UseStorer swaps the storage backend. Uploads already running keep the
// backend they started with; the next Upload uses the new one.
func (m *Manager) UseStorer(storer Storer) {
	m.mu.Lock()
	m.storer = storer
	m.mu.Unlock()
}

func (s *sessionState) snapshot() Session {
	out := s.Session
	out.Selection = s.Selection.clone()
	return out
}

// persistLocked writes the session to disk. Callers hold m.mu so writes
// for one session never land out of order.
func (m *Manager) persistLocked(state *sessionState) {
	if m.store == nil {
		return
	}
	if err := m.store.SaveSession(context.Background(), state.snapshot()); err != nil { // best-effort
		log.Warn().Str("session_id", state.ID).Err(err).Msg("persist session failed")
	}
}

func (m *Manager) removeSelection(sessionID, selectionID string) {
	if m.store == nil || selectionID == "" {
		return
	}
	if err := m.store.RemoveSelection(context.Background(), sessionID, selectionID); err != nil {
		log.Warn().Str("session_id", sessionID).Str("selection_id", selectionID).Err(err).Msg("remove selection failed")
	}
}
