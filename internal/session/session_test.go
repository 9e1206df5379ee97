package session

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docuchat/internal/domain"
	"docuchat/internal/service"
	"docuchat/internal/vectorstore/memory"
	"docuchat/internal/vectorstore/storetest"
)

type fakePipeline struct {
	opts    []service.Options
	reports map[string]service.IngestReport
	search  bool
}

func (f *fakePipeline) Answer(_ context.Context, query string, opts service.Options) service.Result {
	f.opts = append(f.opts, opts)
	return service.Result{
		Text:      "answer to " + query,
		Citations: []domain.SourceCitation{{Filename: "a.pdf", PageRange: "Pages 1-1"}},
		Warnings:  []string{"w"},
		State:     service.StateFinalize,
	}
}

func (f *fakePipeline) Ingest(_ context.Context, path string) (service.IngestReport, error) {
	r, ok := f.reports[path]
	if !ok {
		return service.IngestReport{}, errors.New("no such file")
	}
	return r, nil
}

func (f *fakePipeline) SearchAvailable() bool { return f.search }

// gatedPipeline blocks inside Answer until release is closed.
type gatedPipeline struct {
	fakePipeline
	entered chan struct{}
	release chan struct{}
}

func (g *gatedPipeline) Answer(ctx context.Context, query string, opts service.Options) service.Result {
	close(g.entered)
	<-g.release
	return g.fakePipeline.Answer(ctx, query, opts)
}

func newSession(t *testing.T) (*Session, *fakePipeline) {
	t.Helper()
	p := &fakePipeline{reports: map[string]service.IngestReport{
		"/a.pdf": {Filename: "a.pdf", Pages: 2, Chunks: 3},
		"/b.pdf": {Filename: "b.pdf", Skipped: true},
	}}
	store := memory.New(&storetest.LetterEmbedder{}, 1, nil)
	require.NoError(t, store.Add(context.Background(), storetest.Chunks("/a.pdf", "alpha")))
	return New(p, store, nil), p
}

func TestNew(t *testing.T) {
	s, _ := newSession(t)
	_, err := uuid.Parse(s.ID)
	assert.NoError(t, err)
	assert.False(t, s.CreatedAt.IsZero())
	assert.True(t, s.Escalation())
	assert.Empty(t, s.History())
}

func TestAskRecordsTurns(t *testing.T) {
	s, p := newSession(t)
	ctx := context.Background()

	_, err := s.Ask(ctx, "q1")
	require.NoError(t, err)
	assert.False(t, s.ToggleEscalation())
	res, err := s.Ask(ctx, "q2")
	require.NoError(t, err)
	assert.Equal(t, "answer to q2", res.Text)

	require.Len(t, p.opts, 2)
	assert.True(t, p.opts[0].Escalation)
	assert.False(t, p.opts[1].Escalation)

	h := s.History()
	require.Len(t, h, 4)
	assert.Equal(t, RoleUser, h[0].Role)
	assert.Equal(t, "q1", h[0].Content)
	assert.Equal(t, RoleAssistant, h[1].Role)
	assert.Equal(t, "answer to q1", h[1].Content)
	assert.Len(t, h[1].Citations, 1)
	assert.Equal(t, []string{"w"}, h[1].Warnings)

	// History hands out a copy.
	h[0].Content = "changed"
	assert.Equal(t, "q1", s.History()[0].Content)

	s.ClearHistory()
	assert.Empty(t, s.History())
}

func TestUploadTracksNewDocuments(t *testing.T) {
	s, _ := newSession(t)
	ctx := context.Background()

	r, err := s.Upload(ctx, "/a.pdf")
	require.NoError(t, err)
	assert.Equal(t, 3, r.Chunks)

	r, err = s.Upload(ctx, "/b.pdf")
	require.NoError(t, err)
	assert.True(t, r.Skipped)

	_, err = s.Upload(ctx, "/missing.pdf")
	assert.Error(t, err)

	docs := s.Documents()
	require.Len(t, docs, 1)
	assert.Equal(t, "a.pdf", docs[0].Filename)
}

func TestResetClearsStoreAndHistory(t *testing.T) {
	s, _ := newSession(t)
	ctx := context.Background()
	_, err := s.Ask(ctx, "q")
	require.NoError(t, err)
	_, err = s.Upload(ctx, "/a.pdf")
	require.NoError(t, err)

	require.NoError(t, s.Reset(ctx))

	assert.Empty(t, s.History())
	assert.Empty(t, s.Documents())
	n, err := s.store.Count(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestClose(t *testing.T) {
	s, _ := newSession(t)
	ctx := context.Background()

	require.NoError(t, s.Close())
	require.NoError(t, s.Close())

	_, err := s.Ask(ctx, "q")
	assert.ErrorIs(t, err, ErrClosed)
	_, err = s.Upload(ctx, "/a.pdf")
	assert.ErrorIs(t, err, ErrClosed)
	assert.ErrorIs(t, s.Reset(ctx), ErrClosed)
}

func TestSearchAvailable(t *testing.T) {
	s, p := newSession(t)
	assert.False(t, s.SearchAvailable())
	p.search = true
	assert.True(t, s.SearchAvailable())
}

func TestReadersDoNotWaitForAsk(t *testing.T) {
	p := &gatedPipeline{entered: make(chan struct{}), release: make(chan struct{})}
	s := New(p, memory.New(&storetest.LetterEmbedder{}, 1, nil), nil)

	done := make(chan error, 1)
	go func() {
		_, err := s.Ask(context.Background(), "slow")
		done <- err
	}()
	<-p.entered

	read := make(chan struct{})
	go func() {
		s.Escalation()
		s.History()
		s.Documents()
		s.SetEscalation(false)
		close(read)
	}()
	select {
	case <-read:
	case <-time.After(time.Second):
		close(p.release)
		t.Fatal("state accessors blocked while Ask was in flight")
	}
	assert.Empty(t, s.History())

	close(p.release)
	require.NoError(t, <-done)
	h := s.History()
	require.Len(t, h, 2)
	assert.Equal(t, "answer to slow", h[1].Content)
	// The flag was sampled when the question was asked.
	require.Len(t, p.opts, 1)
	assert.True(t, p.opts[0].Escalation)
	assert.False(t, s.Escalation())
}
