package assistant

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/matiasleandrokruk/askbot/internal/infra/config"
	"github.com/matiasleandrokruk/askbot/internal/infra/kandinsky"
	"github.com/matiasleandrokruk/askbot/internal/infra/llm"
)

// ============================================================================
// Fakes
// ============================================================================

type fakeProvider struct {
	mu       sync.Mutex
	replies  []string
	err      error
	requests []llm.ChatRequest
}

func (f *fakeProvider) ChatCompletion(_ context.Context, req llm.ChatRequest) (*llm.ChatResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, req)
	if f.err != nil {
		return nil, f.err
	}
	i := len(f.requests) - 1
	if i >= len(f.replies) {
		i = len(f.replies) - 1
	}
	return &llm.ChatResponse{Content: f.replies[i]}, nil
}

func (f *fakeProvider) ModelInfo() llm.ModelMeta            { return llm.ModelMeta{ID: "GigaChat", Provider: "fake"} }
func (f *fakeProvider) HealthCheck(_ context.Context) error { return nil }

func (f *fakeProvider) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.requests)
}

// authProvider adds token semantics to fakeProvider.
type authProvider struct {
	fakeProvider
	configured bool
	tokenOK    bool
	tokenCalls int
}

func (a *authProvider) Configured() bool { return a.configured }
func (a *authProvider) EnsureValidToken(context.Context) bool {
	a.tokenCalls++
	return a.tokenOK
}
func (a *authProvider) HasToken() bool { return a.tokenOK && a.tokenCalls > 0 }

type fakeSearch struct {
	result  string
	queries []string
}

func (f *fakeSearch) Search(_ context.Context, q string) string {
	f.queries = append(f.queries, q)
	return f.result
}

type fakeImages struct {
	err     error
	prompts []string
}

func (f *fakeImages) GenerateImage(_ context.Context, req kandinsky.Request) (*kandinsky.Image, error) {
	f.prompts = append(f.prompts, req.Prompt)
	if f.err != nil {
		return nil, f.err
	}
	return &kandinsky.Image{Data: []byte{1, 2, 3}, Prompt: req.Prompt, Service: kandinsky.ServiceName}, nil
}

func newTestOrchestrator(p llm.LLMProvider, s Searcher, opts ...Option) (*Orchestrator, *[]time.Duration) {
	var waits []time.Duration
	o := NewOrchestrator(p, s, opts...)
	o.wait = func(_ context.Context, d time.Duration) error {
		waits = append(waits, d)
		return nil
	}
	return o, &waits
}

// ============================================================================
// Strategy selection
// ============================================================================

func TestGenerateResponse_PlainAnswer(t *testing.T) {
	t.Parallel()

	p := &fakeProvider{replies: []string{"Hello there"}}
	s := &fakeSearch{result: "unused"}
	o, waits := newTestOrchestrator(p, s)

	reply, err := o.GenerateResponse(context.Background(), "hi", nil, &fakeImages{})
	require.NoError(t, err)

	assert.Equal(t, TextReply{Text: "Hello there"}, reply)
	assert.Equal(t, 1, p.calls())
	assert.Empty(t, s.queries)
	assert.Empty(t, *waits)
	assert.InDelta(t, 0.7, p.requests[0].Temperature, 0.001)
	assert.Equal(t, 512, p.requests[0].MaxTokens)
}

func TestGenerateResponse_SearchThenAnswer(t *testing.T) {
	t.Parallel()

	p := &fakeProvider{replies: []string{"ИЩУИНФОРМАЦИЮ: \"GPT-5 news\".", "GPT-5 shipped in August."}}
	s := &fakeSearch{result: "BUNDLE"}
	o, waits := newTestOrchestrator(p, s, WithSearchDelay(2*time.Second))

	reply, err := o.GenerateResponse(context.Background(), "What is the latest GPT-5 news", history(3), &fakeImages{})
	require.NoError(t, err)

	assert.Equal(t, TextReply{Text: "GPT-5 shipped in August."}, reply)
	assert.Equal(t, []string{"GPT-5 news"}, s.queries)
	assert.Equal(t, []time.Duration{2 * time.Second}, *waits)
	require.Equal(t, 2, p.calls())
	second := p.requests[1].Messages
	assert.Equal(t, defaultSearchSystemPrompt, second[0].Content)
	assert.Contains(t, second[len(second)-1].Content, "BUNDLE")
}

func TestGenerateResponse_SearchMarkerWithoutQuery_UsesUserMessage(t *testing.T) {
	t.Parallel()

	p := &fakeProvider{replies: []string{"ИЩУИНФОРМАЦИЮ:", "answer"}}
	s := &fakeSearch{result: "BUNDLE"}
	o, _ := newTestOrchestrator(p, s)

	_, err := o.GenerateResponse(context.Background(), "курс доллара", nil, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"курс доллара"}, s.queries)
}

func TestGenerateResponse_SearchEmpty_NoSecondCall(t *testing.T) {
	t.Parallel()

	p := &fakeProvider{replies: []string{"ИЩУИНФОРМАЦИЮ: something"}}
	o, waits := newTestOrchestrator(p, &fakeSearch{})

	reply, err := o.GenerateResponse(context.Background(), "q", nil, nil)
	require.NoError(t, err)

	tr, ok := reply.(TextReply)
	require.True(t, ok)
	require.NotNil(t, tr.Failure)
	assert.Equal(t, KindSearchUnavailable, tr.Failure.Kind)
	assert.Equal(t, msgSearchFailed, tr.Text)
	assert.Equal(t, 1, p.calls())
	assert.Empty(t, *waits)
}

func TestGenerateResponse_NilSearcher_SearchFails(t *testing.T) {
	t.Parallel()

	p := &fakeProvider{replies: []string{"ИЩУИНФОРМАЦИЮ: x"}}
	o, _ := newTestOrchestrator(p, nil)

	reply, err := o.GenerateResponse(context.Background(), "q", nil, nil)
	require.NoError(t, err)
	assert.Equal(t, KindSearchUnavailable, reply.(TextReply).Failure.Kind)
}

func TestGenerateResponse_SearchTakesPriorityOverImage(t *testing.T) {
	t.Parallel()

	p := &fakeProvider{replies: []string{
		"ГЕНЕРИРУЮ_ИЗОБРАЖЕНИЕ: cat ИЩУИНФОРМАЦИЮ: cats",
		"Cats are mammals.",
	}}
	images := &fakeImages{}
	o, _ := newTestOrchestrator(p, &fakeSearch{result: "B"})

	reply, err := o.GenerateResponse(context.Background(), "q", nil, images)
	require.NoError(t, err)
	assert.Equal(t, TextReply{Text: "Cats are mammals."}, reply)
	assert.Empty(t, images.prompts)
}

func TestGenerateResponse_SecondResponseImageMarker(t *testing.T) {
	t.Parallel()

	p := &fakeProvider{replies: []string{"ИЩУИНФОРМАЦИЮ: tesla logo", "ГЕНЕРИРУЮ_ИЗОБРАЖЕНИЕ: tesla logo in neon ИЩУИНФОРМАЦИЮ: ignored"}}
	images := &fakeImages{}
	s := &fakeSearch{result: "B"}
	o, _ := newTestOrchestrator(p, s)

	reply, err := o.GenerateResponse(context.Background(), "draw the tesla logo", nil, images)
	require.NoError(t, err)

	ir, ok := reply.(ImageReply)
	require.True(t, ok)
	assert.Equal(t, "tesla logo in neon ИЩУИНФОРМАЦИЮ: ignored", ir.Prompt)
	assert.Len(t, s.queries, 1, "second response is never re-scanned for search")
	assert.Equal(t, 2, p.calls())
}

func TestGenerateResponse_ImageMarker(t *testing.T) {
	t.Parallel()

	p := &fakeProvider{replies: []string{"Sure! ГЕНЕРИРУЮ_ИЗОБРАЖЕНИЕ: a robot cat."}}
	images := &fakeImages{}
	o, _ := newTestOrchestrator(p, &fakeSearch{})

	reply, err := o.GenerateResponse(context.Background(), "draw a robot cat", nil, images)
	require.NoError(t, err)

	assert.Equal(t, ImageReply{
		Text:    `Image "a robot cat" generated successfully`,
		Image:   []byte{1, 2, 3},
		Prompt:  "a robot cat",
		Service: kandinsky.ServiceName,
	}, reply)
}

func TestGenerateResponse_ImageMarkerWithoutClient_ReturnsTextVerbatim(t *testing.T) {
	t.Parallel()

	p := &fakeProvider{replies: []string{"ГЕНЕРИРУЮ_ИЗОБРАЖЕНИЕ: cat"}}
	o, _ := newTestOrchestrator(p, nil)

	reply, err := o.GenerateResponse(context.Background(), "draw", nil, nil)
	require.NoError(t, err)
	assert.Equal(t, TextReply{Text: "ГЕНЕРИРУЮ_ИЗОБРАЖЕНИЕ: cat"}, reply)
}

func TestGenerateResponse_ImageMarkerEmptyDescription_UsesUserMessage(t *testing.T) {
	t.Parallel()

	p := &fakeProvider{replies: []string{"ГЕНЕРИРУЮ_ИЗОБРАЖЕНИЕ:"}}
	images := &fakeImages{}
	o, _ := newTestOrchestrator(p, nil)

	_, err := o.GenerateResponse(context.Background(), "draw a sunset", nil, images)
	require.NoError(t, err)
	assert.Equal(t, []string{"draw a sunset"}, images.prompts)
}

func TestGenerateResponse_ImageFailure_DistinctReasons(t *testing.T) {
	t.Parallel()

	for _, reason := range []kandinsky.Reason{kandinsky.ReasonModerated, kandinsky.ReasonTimedOut, kandinsky.ReasonSubmitFailed} {
		p := &fakeProvider{replies: []string{"ГЕНЕРИРУЮ_ИЗОБРАЖЕНИЕ: x"}}
		genErr := &kandinsky.GenerationError{Reason: reason}
		o, _ := newTestOrchestrator(p, nil)

		reply, err := o.GenerateResponse(context.Background(), "draw", nil, &fakeImages{err: genErr})
		require.NoError(t, err)

		tr := reply.(TextReply)
		assert.Equal(t, "Could not create image: "+genErr.Error(), tr.Text)
		assert.Equal(t, KindImageGeneration, tr.Failure.Kind)
		assert.ErrorIs(t, tr.Failure, genErr)
	}
}

// ============================================================================
// Failures before and during completion
// ============================================================================

func TestGenerateResponse_BlankMessage_ValidationError(t *testing.T) {
	t.Parallel()

	p := &fakeProvider{replies: []string{"x"}}
	o, _ := newTestOrchestrator(p, nil)

	reply, err := o.GenerateResponse(context.Background(), "  \n", nil, nil)
	assert.Nil(t, reply)
	var e *Error
	require.ErrorAs(t, err, &e)
	assert.Equal(t, KindValidation, e.Kind)
	assert.Zero(t, p.calls())
}

func TestGenerateResponse_NotConfigured(t *testing.T) {
	t.Parallel()

	p := &authProvider{fakeProvider: fakeProvider{replies: []string{"x"}}}
	o, _ := newTestOrchestrator(p, nil)

	reply, err := o.GenerateResponse(context.Background(), "hi", nil, nil)
	require.NoError(t, err)

	tr := reply.(TextReply)
	assert.Equal(t, KindAuth, tr.Failure.Kind)
	assert.Contains(t, tr.Text, "not configured")
	assert.Zero(t, p.tokenCalls)
	assert.Zero(t, p.calls())
}

func TestGenerateResponse_TokenFailure_NoDownstreamCalls(t *testing.T) {
	t.Parallel()

	p := &authProvider{fakeProvider: fakeProvider{replies: []string{"x"}}, configured: true}
	s := &fakeSearch{result: "B"}
	images := &fakeImages{}
	o, _ := newTestOrchestrator(p, s)

	reply, err := o.GenerateResponse(context.Background(), "hi", nil, images)
	require.NoError(t, err)

	tr := reply.(TextReply)
	assert.Equal(t, KindAuth, tr.Failure.Kind)
	assert.Equal(t, "GigaChat authorization failed. Check the API key.", tr.Text)
	assert.Zero(t, p.calls())
	assert.Empty(t, s.queries)
	assert.Empty(t, images.prompts)
}

func TestGenerateResponse_ProviderStatusError(t *testing.T) {
	t.Parallel()

	p := &fakeProvider{err: &llm.StatusError{Provider: "gigachat", Op: "chat", Code: 500}}
	o, _ := newTestOrchestrator(p, nil)

	reply, err := o.GenerateResponse(context.Background(), "hi", nil, nil)
	require.NoError(t, err)

	tr := reply.(TextReply)
	assert.Equal(t, "GigaChat API error: 500", tr.Text)
	assert.Equal(t, KindProvider, tr.Failure.Kind)
}

func TestGenerateResponse_ProviderTransportError_Generic(t *testing.T) {
	t.Parallel()

	p := &fakeProvider{err: errors.New("dial tcp: connection refused")}
	o, _ := newTestOrchestrator(p, nil)

	reply, err := o.GenerateResponse(context.Background(), "hi", nil, nil)
	require.NoError(t, err)
	assert.Equal(t, msgProviderFailed, reply.Message())
	assert.NotContains(t, reply.Message(), "dial tcp")
}

func TestGenerateResponse_EmptyCompletion(t *testing.T) {
	t.Parallel()

	p := &fakeProvider{err: llm.ErrEmptyCompletion}
	o, _ := newTestOrchestrator(p, nil)

	reply, _ := o.GenerateResponse(context.Background(), "hi", nil, nil)
	assert.Equal(t, "Could not get a response from GigaChat.", reply.Message())
}

func TestGenerateResponse_CanceledDuringSearchDelay(t *testing.T) {
	t.Parallel()

	p := &fakeProvider{replies: []string{"ИЩУИНФОРМАЦИЮ: x", "never"}}
	o := NewOrchestrator(p, &fakeSearch{result: "B"}, WithSearchDelay(time.Hour))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	reply, err := o.GenerateResponse(ctx, "q", nil, nil)
	require.NoError(t, err)
	assert.Equal(t, KindProvider, reply.(TextReply).Failure.Kind)
	assert.Equal(t, 1, p.calls())
}

func TestGenerateResponse_HistoryTruncatedToTen(t *testing.T) {
	t.Parallel()

	p := &fakeProvider{replies: []string{"ok"}}
	o, _ := newTestOrchestrator(p, nil)

	_, err := o.GenerateResponse(context.Background(), "now", history(25), nil)
	require.NoError(t, err)
	assert.Len(t, p.requests[0].Messages, ModelContextTurns+2)
}

func TestWithPolicy_OverridesMarkersAndPrompts(t *testing.T) {
	t.Parallel()

	p := &fakeProvider{replies: []string{"SEARCH: go 1.25", "done"}}
	s := &fakeSearch{result: "B"}
	o, _ := newTestOrchestrator(p, s, WithPolicy(config.Policy{
		SearchMarker:       "SEARCH:",
		SystemPrompt:       "use {{search_marker}} or {{image_marker}}",
		SearchUserTemplate: "Q={{question}} R={{search_results}}",
	}))

	reply, err := o.GenerateResponse(context.Background(), "latest go", nil, nil)
	require.NoError(t, err)

	assert.Equal(t, "done", reply.Message())
	assert.Equal(t, []string{"go 1.25"}, s.queries)
	assert.Equal(t, "use SEARCH: or "+ImageMarker, p.requests[0].Messages[0].Content)
	assert.Equal(t, "Q=latest go R=B", p.requests[1].Messages[1].Content)
}

// ============================================================================
// Status
// ============================================================================

func TestStatus(t *testing.T) {
	t.Parallel()

	o := NewOrchestrator(&authProvider{}, nil)
	assert.Equal(t, ModelError, o.Status(context.Background()).Status)

	ap := &authProvider{configured: true, tokenOK: true}
	o = NewOrchestrator(ap, nil)
	assert.Equal(t, ModelLoading, o.Status(context.Background()).Status)

	ap.EnsureValidToken(context.Background())
	st := o.Status(context.Background())
	assert.Equal(t, ModelReady, st.Status)
	assert.Equal(t, "GigaChat API", st.Model)

	assert.Equal(t, ModelReady, NewOrchestrator(&fakeProvider{}, nil).Status(context.Background()).Status)
}
