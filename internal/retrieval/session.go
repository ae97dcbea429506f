package retrieval

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/google/uuid"

	"ragtutor/internal/domain"
	"ragtutor/internal/vectorstore"
)

// Session is one user's conversation context: the uploaded document and its
// index. The Index pointer is fixed for the life of the session; uploads
// replace its contents.
type Session struct {
	ID    uuid.UUID
	Index *vectorstore.Index

	mu        sync.Mutex
	document  string
	lastQuery string
	upload    sync.Mutex
}

// NewSession creates a session with an empty user index on the shared embedder.
func (o *Orchestrator) NewSession(document string) *Session {
	return &Session{
		ID:       uuid.New(),
		Index:    vectorstore.New(o.embedder),
		document: document,
	}
}

// Document returns the name of the uploaded document, empty before any upload.
func (s *Session) Document() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.document
}

// LastQuery returns the most recent query retrieved through this session.
func (s *Session) LastQuery() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastQuery
}

func (s *Session) setLastQuery(q string) {
	s.mu.Lock()
	s.lastQuery = q
	s.mu.Unlock()
}

func (s *Session) setDocument(name string) {
	s.mu.Lock()
	s.document = name
	s.mu.Unlock()
}

// Sessions tracks live sessions and persists each user index under
// <indexDir>/<session id>. An empty indexDir keeps user indexes in memory.
type Sessions struct {
	orch     *Orchestrator
	indexDir string

	mu       sync.RWMutex
	sessions map[uuid.UUID]*Session
}

// NewSessions creates a session manager.
func NewSessions(orch *Orchestrator, indexDir string) *Sessions {
	return &Sessions{orch: orch, indexDir: indexDir, sessions: make(map[uuid.UUID]*Session)}
}

// Create starts and registers a new session.
func (m *Sessions) Create() *Session {
	sess := m.orch.NewSession("")
	m.mu.Lock()
	m.sessions[sess.ID] = sess
	m.mu.Unlock()
	slog.Info("session created", "session_id", sess.ID)
	return sess
}

// Get looks up a session by id.
func (m *Sessions) Get(id uuid.UUID) (*Session, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	sess, ok := m.sessions[id]
	return sess, ok
}

// Len returns the number of live sessions.
func (m *Sessions) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// Dir returns the persistence directory of a session, empty when user
// indexes are not persisted.
func (m *Sessions) Dir(id uuid.UUID) string {
	if m.indexDir == "" {
		return ""
	}
	return filepath.Join(m.indexDir, id.String())
}

// Upload replaces the session's user corpus with chunks from document.
// Uploads to the same session are serialized. The new index is built and,
// when persisted, written to disk before it replaces the live one, so a
// failed upload leaves the previous corpus and document in place.
func (m *Sessions) Upload(ctx context.Context, sess *Session, document string, chunks []domain.Chunk) error {
	if sess == nil {
		return fmt.Errorf("%w: nil session", domain.ErrInvalidArgument)
	}
	sess.upload.Lock()
	defer sess.upload.Unlock()

	staged := vectorstore.New(sess.Index.Embedder())
	if err := staged.Build(ctx, chunks); err != nil {
		return fmt.Errorf("build user index: %w", err)
	}
	if dir := m.Dir(sess.ID); dir != "" {
		if err := replaceDir(dir, staged); err != nil {
			return err
		}
	}
	sess.Index.Replace(staged)
	sess.setDocument(document)
	slog.InfoContext(ctx, "user corpus replaced", "session_id", sess.ID, "document", document, "chunks", len(chunks))
	return nil
}

// replaceDir saves ix next to dir and then swaps it into place.
func replaceDir(dir string, ix *vectorstore.Index) error {
	next := dir + ".next"
	if err := os.RemoveAll(next); err != nil {
		return fmt.Errorf("%w: %w", domain.ErrStorageWrite, err)
	}
	if err := ix.Save(next); err != nil {
		return err
	}
	if err := os.RemoveAll(dir); err != nil {
		return fmt.Errorf("%w: remove old user index: %w", domain.ErrStorageWrite, err)
	}
	if err := os.Rename(next, dir); err != nil {
		return fmt.Errorf("%w: %w", domain.ErrStorageWrite, err)
	}
	return nil
}

// Restore reloads a persisted user index into the session.
func (m *Sessions) Restore(sess *Session, document string) error {
	dir := m.Dir(sess.ID)
	if dir == "" {
		return fmt.Errorf("%w: user indexes are not persisted", domain.ErrInvalidArgument)
	}
	sess.upload.Lock()
	defer sess.upload.Unlock()
	if err := sess.Index.Load(dir); err != nil {
		return err
	}
	sess.setDocument(document)
	return nil
}

// Close drops a session and deletes its persisted index.
func (m *Sessions) Close(id uuid.UUID) error {
	m.mu.Lock()
	_, ok := m.sessions[id]
	delete(m.sessions, id)
	m.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: session %s", domain.ErrInputNotFound, id)
	}
	if dir := m.Dir(id); dir != "" {
		if err := os.RemoveAll(dir); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("%w: %w", domain.ErrStorageWrite, err)
		}
	}
	slog.Info("session closed", "session_id", id)
	return nil
}
