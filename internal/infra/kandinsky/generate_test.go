package kandinsky

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func reasonOf(t *testing.T, err error) Reason {
	t.Helper()
	var ge *GenerationError
	require.ErrorAs(t, err, &ge)
	return ge.Reason
}

func TestGenerateImage_RunningThenDone(t *testing.T) {
	t.Parallel()

	f := newFakeBackend(t, statusInitial, statusProcessing, statusDone())
	rec := &recorder{}
	c := f.client(func(cfg *Config) { cfg.Events = rec })

	img, err := c.GenerateImage(context.Background(), Request{Prompt: "a robot cat"})
	require.NoError(t, err)

	assert.Equal(t, pngBytes, img.Data)
	assert.Equal(t, "a robot cat", img.Prompt)
	assert.Equal(t, ServiceName, img.Service)
	assert.Equal(t, "job-42", img.JobID)
	assert.Equal(t, 1024, img.Width)
	assert.Equal(t, 1024, img.Height)
	assert.Equal(t, DefaultStyle, img.Style)

	_, runs, polls := f.hits()
	assert.Equal(t, 1, runs)
	assert.Equal(t, 3, polls)
	assert.Equal(t, []Status{StatusPending, StatusRunning, StatusDone}, rec.statuses())

	assert.Equal(t, "pipe-1", f.lastPipelineID)
	assert.Equal(t, "Key key", f.lastKey)
	assert.Equal(t, "Secret secret", f.lastSecret)
	assert.Equal(t, "GENERATE", f.lastParams.Type)
	assert.Equal(t, 1, f.lastParams.NumImages)
	assert.Equal(t, "a robot cat", f.lastParams.GenerateParams.Query)
	assert.Empty(t, f.lastParams.Style, "DEFAULT style is omitted")
	assert.Empty(t, f.lastParams.NegativePromptDecoder)
}

func TestGenerateImage_StyleAndNegativePromptSent(t *testing.T) {
	t.Parallel()

	f := newFakeBackend(t, statusDone())
	_, err := f.client().GenerateImage(context.Background(), Request{
		Prompt: "city", Width: 512, Height: 768, Style: "ANIME", NegativePrompt: "  blur  ",
	})
	require.NoError(t, err)

	assert.Equal(t, "ANIME", f.lastParams.Style)
	assert.Equal(t, "blur", f.lastParams.NegativePromptDecoder)
	assert.Equal(t, 512, f.lastParams.Width)
	assert.Equal(t, 768, f.lastParams.Height)
}

func TestGenerateImage_AlwaysRunning_TimesOutAfterExactlyMaxAttempts(t *testing.T) {
	t.Parallel()

	f := newFakeBackend(t, statusProcessing)
	rec := &recorder{}
	c := f.client(func(cfg *Config) { cfg.MaxAttempts = 7; cfg.Events = rec })

	_, err := c.GenerateImage(context.Background(), Request{Prompt: "slow"})
	assert.Equal(t, ReasonTimedOut, reasonOf(t, err))
	assert.Equal(t, "generation exceeded time budget", err.Error())

	_, _, polls := f.hits()
	assert.Equal(t, 7, polls)
	assert.Equal(t, []Status{StatusPending, StatusRunning, StatusTimedOut}, rec.statuses())
}

func TestGenerateImage_TransientErrorsCountAgainstBudget(t *testing.T) {
	t.Parallel()

	f := newFakeBackend(t, "http500", "garbage", statusProcessing, statusDone())
	img, err := f.client().GenerateImage(context.Background(), Request{Prompt: "x"})
	require.NoError(t, err)
	assert.NotEmpty(t, img.Data)

	f2 := newFakeBackend(t, "http500", "garbage", "http500")
	_, err = f2.client(func(cfg *Config) { cfg.MaxAttempts = 3 }).GenerateImage(context.Background(), Request{Prompt: "x"})
	assert.Equal(t, ReasonTimedOut, reasonOf(t, err))
	_, _, polls := f2.hits()
	assert.Equal(t, 3, polls)
}

func TestGenerateImage_CensoredWithFiles_IsModerated(t *testing.T) {
	t.Parallel()

	f := newFakeBackend(t, `{"status":"DONE","result":{"files":["aGVsbG8="],"censored":true}}`)
	_, err := f.client().GenerateImage(context.Background(), Request{Prompt: "x"})
	assert.Equal(t, ReasonModerated, reasonOf(t, err))
}

func TestGenerateImage_DoneWithoutFiles(t *testing.T) {
	t.Parallel()

	f := newFakeBackend(t, `{"status":"DONE","result":{"files":[],"censored":false}}`)
	_, err := f.client().GenerateImage(context.Background(), Request{Prompt: "x"})
	assert.Equal(t, ReasonNoImage, reasonOf(t, err))
}

func TestGenerateImage_BackendFailure_ReasonVerbatim(t *testing.T) {
	t.Parallel()

	f := newFakeBackend(t, statusProcessing, `{"status":"FAIL","errorDescription":"GPU quota exhausted"}`)
	_, err := f.client().GenerateImage(context.Background(), Request{Prompt: "x"})

	var ge *GenerationError
	require.ErrorAs(t, err, &ge)
	assert.Equal(t, ReasonBackendFailed, ge.Reason)
	assert.Equal(t, "GPU quota exhausted", ge.Detail)
	assert.Contains(t, err.Error(), "GPU quota exhausted")
}

func TestGenerateImage_BlankPrompt_NoNetwork(t *testing.T) {
	t.Parallel()

	f := newFakeBackend(t, statusDone())
	_, err := f.client().GenerateImage(context.Background(), Request{Prompt: " \n\t"})
	assert.Equal(t, ReasonInvalidPrompt, reasonOf(t, err))

	pipes, runs, polls := f.hits()
	assert.Zero(t, pipes+runs+polls)
}

func TestGenerateImage_PromptTruncatedTo1000Runes(t *testing.T) {
	t.Parallel()

	f := newFakeBackend(t, statusDone())
	long := strings.Repeat("ж", 1500)
	img, err := f.client().GenerateImage(context.Background(), Request{Prompt: long})
	require.NoError(t, err)

	assert.Equal(t, 1000, len([]rune(img.Prompt)))
	assert.Equal(t, img.Prompt, f.lastParams.GenerateParams.Query)

	exact := strings.Repeat("a", 1000)
	img, err = f.client().GenerateImage(context.Background(), Request{Prompt: exact})
	require.NoError(t, err)
	assert.Equal(t, exact, img.Prompt)
}

func TestGenerateImage_SubmitRejected_NoPolling(t *testing.T) {
	t.Parallel()

	f := newFakeBackend(t, statusDone())
	f.runStatus = 500
	rec := &recorder{}
	_, err := f.client(func(cfg *Config) { cfg.Events = rec }).GenerateImage(context.Background(), Request{Prompt: "x"})
	assert.Equal(t, ReasonSubmitFailed, reasonOf(t, err))

	_, runs, polls := f.hits()
	assert.Equal(t, 1, runs)
	assert.Zero(t, polls)
	assert.Equal(t, []Status{StatusFailed}, rec.statuses())
}

func TestGenerateImage_PipelineFailure_RetriedOnNextCall(t *testing.T) {
	t.Parallel()

	f := newFakeBackend(t, statusDone())
	f.pipelineStatus = 503
	c := f.client()

	_, err := c.GenerateImage(context.Background(), Request{Prompt: "x"})
	assert.Equal(t, ReasonNotConfigured, reasonOf(t, err))
	assert.False(t, c.PipelineResolved())

	f.mu.Lock()
	f.pipelineStatus = 200
	f.mu.Unlock()

	_, err = c.GenerateImage(context.Background(), Request{Prompt: "x"})
	require.NoError(t, err)
	assert.True(t, c.PipelineResolved())

	_, err = c.GenerateImage(context.Background(), Request{Prompt: "y"})
	require.NoError(t, err)
	pipes, _, _ := f.hits()
	assert.Equal(t, 2, pipes, "pipeline id is cached once resolved")
}

func TestPipeline_SlowLookupDoesNotBlockStatus(t *testing.T) {
	t.Parallel()

	started := make(chan struct{})
	release := make(chan struct{})
	var once sync.Once
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		once.Do(func() { close(started) })
		<-release
		w.Write([]byte(`[{"id":"pipe-1","name":"Kandinsky"}]`)) //nolint:errcheck
	}))
	defer srv.Close()

	c := New(Config{BaseURL: srv.URL, APIKey: "key", SecretKey: "secret", HTTPClient: srv.Client()})
	done := make(chan struct{})
	go func() {
		c.Init(context.Background())
		close(done)
	}()
	<-started

	resolved := make(chan bool, 1)
	go func() { resolved <- c.PipelineResolved() }()
	select {
	case got := <-resolved:
		assert.False(t, got)
	case <-time.After(time.Second):
		t.Fatal("PipelineResolved blocked on the pipeline lookup")
	}

	// A canceled caller gives up without failing the shared lookup.
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := c.GenerateImage(ctx, Request{Prompt: "x"})
	assert.Equal(t, ReasonCanceled, reasonOf(t, err))

	close(release)
	<-done
	assert.True(t, c.PipelineResolved())
}

func TestGenerateImage_NoPipelines(t *testing.T) {
	t.Parallel()

	f := newFakeBackend(t, statusDone())
	f.pipelines = `[]`
	_, err := f.client().GenerateImage(context.Background(), Request{Prompt: "x"})
	assert.Equal(t, ReasonNotConfigured, reasonOf(t, err))
}

func TestGenerateImage_MissingKeys(t *testing.T) {
	t.Parallel()

	f := newFakeBackend(t, statusDone())
	c := f.client(func(cfg *Config) { cfg.SecretKey = "" })
	assert.False(t, c.Configured())

	_, err := c.GenerateImage(context.Background(), Request{Prompt: "x"})
	assert.Equal(t, ReasonNotConfigured, reasonOf(t, err))
	pipes, _, _ := f.hits()
	assert.Zero(t, pipes)
}

func TestGenerateImage_CancelStopsPolling(t *testing.T) {
	t.Parallel()

	f := newFakeBackend(t, statusProcessing)
	rec := &recorder{}
	c := f.client(func(cfg *Config) {
		cfg.PollInterval = 20 * time.Millisecond
		cfg.MaxAttempts = 1000
		cfg.Events = rec
	})

	ctx, cancel := context.WithTimeout(context.Background(), 70*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err := c.GenerateImage(ctx, Request{Prompt: "x"})
	assert.Equal(t, ReasonCanceled, reasonOf(t, err))
	assert.Less(t, time.Since(start), time.Second)

	_, _, polls := f.hits()
	assert.Less(t, polls, 1000)
	st := rec.statuses()
	assert.Equal(t, StatusCanceled, st[len(st)-1])

	time.Sleep(60 * time.Millisecond)
	_, _, after := f.hits()
	assert.Equal(t, polls, after, "no polling after cancellation")
}

func TestNew_Defaults(t *testing.T) {
	t.Parallel()

	c := New(Config{BaseURL: "http://x.example"})
	assert.Equal(t, "http://x.example/", c.baseURL)
	assert.Equal(t, DefaultStylesURL, c.stylesURL)
	assert.Equal(t, DefaultPollInterval, c.pollInterval)
	assert.Equal(t, DefaultMaxAttempts, c.maxAttempts)
}
