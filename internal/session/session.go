// Package session keeps the per-user chat state: history, the escalation
// toggle and the store the answers are drawn from.
package session

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"docuchat/internal/domain"
	"docuchat/internal/logging"
	"docuchat/internal/service"
	"docuchat/internal/vectorstore"
)

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Turn is one message of the conversation.
type Turn struct {
	Role      Role
	Content   string
	Citations []domain.SourceCitation
	Warnings  []string
	At        time.Time
}

// Answerer is the pipeline surface a session needs.
type Answerer interface {
	Answer(ctx context.Context, query string, opts service.Options) service.Result
	Ingest(ctx context.Context, path string) (service.IngestReport, error)
	SearchAvailable() bool
}

// Session is safe for concurrent use. Ask, Upload and Reset are serialised
// on work so turns stay paired in history; mu only guards the fields below
// it and is never held across a pipeline call.
type Session struct {
	ID        string
	CreatedAt time.Time

	pipeline Answerer
	store    vectorstore.Store
	log      *zap.Logger

	work sync.Mutex

	mu         sync.Mutex
	history    []Turn
	escalation bool
	documents  []service.IngestReport
	closed     bool
}

// New starts a session with escalation enabled.
func New(pipeline Answerer, store vectorstore.Store, log *zap.Logger) *Session {
	id := uuid.NewString()
	return &Session{
		ID:         id,
		CreatedAt:  time.Now().UTC(),
		pipeline:   pipeline,
		store:      store,
		log:        logging.OrNop(log).With(zap.String("session", id)),
		escalation: true,
	}
}

// Ask answers query and records both sides of the exchange.
func (s *Session) Ask(ctx context.Context, query string) (service.Result, error) {
	s.work.Lock()
	defer s.work.Unlock()

	s.mu.Lock()
	closed, escalation := s.closed, s.escalation
	s.mu.Unlock()
	if closed {
		return service.Result{}, ErrClosed
	}

	res := s.pipeline.Answer(ctx, query, service.Options{Escalation: escalation})
	now := time.Now().UTC()

	s.mu.Lock()
	s.history = append(s.history,
		Turn{Role: RoleUser, Content: query, At: now},
		Turn{Role: RoleAssistant, Content: res.Text, Citations: res.Citations, Warnings: res.Warnings, At: now},
	)
	turns := len(s.history)
	s.mu.Unlock()

	s.log.Debug("turn recorded", zap.Int("turns", turns), zap.Stringer("state", res.State))
	return res, nil
}

// Upload ingests the PDF at path into the session's store.
func (s *Session) Upload(ctx context.Context, path string) (service.IngestReport, error) {
	s.work.Lock()
	defer s.work.Unlock()
	if s.isClosed() {
		return service.IngestReport{}, ErrClosed
	}

	report, err := s.pipeline.Ingest(ctx, path)
	if err != nil {
		return report, err
	}
	if !report.Skipped {
		s.mu.Lock()
		s.documents = append(s.documents, report)
		s.mu.Unlock()
	}
	return report, nil
}

func (s *Session) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// History returns a copy of the conversation so far.
func (s *Session) History() []Turn {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Turn, len(s.history))
	copy(out, s.history)
	return out
}

// Documents lists the files ingested during this session.
func (s *Session) Documents() []service.IngestReport {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]service.IngestReport, len(s.documents))
	copy(out, s.documents)
	return out
}

func (s *Session) ClearHistory() {
	s.mu.Lock()
	s.history = nil
	s.mu.Unlock()
	s.log.Info("history cleared")
}

// Escalation reports whether the model may request an external search.
func (s *Session) Escalation() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.escalation
}

func (s *Session) SetEscalation(on bool) {
	s.mu.Lock()
	s.escalation = on
	s.mu.Unlock()
}

// ToggleEscalation flips the escalation flag and returns the new value.
func (s *Session) ToggleEscalation() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.escalation = !s.escalation
	return s.escalation
}

// SearchAvailable reports whether escalation can actually reach the web.
func (s *Session) SearchAvailable() bool { return s.pipeline.SearchAvailable() }

// Reset empties the store and the conversation.
func (s *Session) Reset(ctx context.Context) error {
	s.work.Lock()
	defer s.work.Unlock()
	if s.isClosed() {
		return ErrClosed
	}
	if err := s.store.Reset(ctx); err != nil {
		return fmt.Errorf("resetting store: %w", err)
	}
	s.mu.Lock()
	s.history = nil
	s.documents = nil
	s.mu.Unlock()
	s.log.Info("session reset")
	return nil
}

// Close releases the store. Further calls fail with ErrClosed.
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	s.log.Info("session closed", zap.Duration("age", time.Since(s.CreatedAt)))
	return s.store.Close()
}
