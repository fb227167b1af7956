package kandinsky

import (
	"encoding/base64"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"
)

// fakeBackend imitates the Fusion Brain endpoints. statuses is consumed one
// entry per poll; the last entry repeats.
type fakeBackend struct {
	t   *testing.T
	srv *httptest.Server

	mu             sync.Mutex
	pipelineStatus int
	pipelines      string
	runStatus      int
	statuses       []string
	pipelineHits   int
	runHits        int
	statusHits     int
	lastParams     generateParams
	lastPipelineID string
	lastKey        string
	lastSecret     string
}

func newFakeBackend(t *testing.T, statuses ...string) *fakeBackend {
	t.Helper()
	f := &fakeBackend{
		t:              t,
		pipelineStatus: http.StatusOK,
		pipelines:      `[{"id":"pipe-1","name":"Kandinsky","version":3.1}]`,
		runStatus:      http.StatusCreated,
		statuses:       statuses,
	}
	mux := http.NewServeMux()
	mux.HandleFunc("/key/api/v1/pipelines", f.handlePipelines)
	mux.HandleFunc("/key/api/v1/pipeline/run", f.handleRun)
	mux.HandleFunc("/key/api/v1/pipeline/status/", f.handleStatus)
	f.srv = httptest.NewServer(mux)
	t.Cleanup(f.srv.Close)
	return f
}

func (f *fakeBackend) client(opts ...func(*Config)) *Client {
	cfg := Config{
		BaseURL:      f.srv.URL,
		StylesURL:    f.srv.URL + "/styles",
		APIKey:       "key",
		SecretKey:    "secret",
		PollInterval: time.Millisecond,
		MaxAttempts:  5,
		HTTPClient:   f.srv.Client(),
	}
	for _, o := range opts {
		o(&cfg)
	}
	return New(cfg)
}

func (f *fakeBackend) handlePipelines(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pipelineHits++
	f.lastKey = r.Header.Get("X-Key")
	f.lastSecret = r.Header.Get("X-Secret")
	if f.pipelineStatus != http.StatusOK {
		http.Error(w, "nope", f.pipelineStatus)
		return
	}
	io.WriteString(w, f.pipelines) //nolint:errcheck
}

func (f *fakeBackend) handleRun(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.runHits++
	if err := r.ParseMultipartForm(1 << 20); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	f.lastPipelineID = r.FormValue("pipeline_id")
	// params arrives as a part with its own content type, so it may land in File.
	raw := r.FormValue("params")
	if raw == "" && r.MultipartForm != nil {
		if fhs := r.MultipartForm.File["params"]; len(fhs) > 0 {
			file, _ := fhs[0].Open()
			b, _ := io.ReadAll(file)
			raw = string(b)
		}
	}
	if err := json.Unmarshal([]byte(raw), &f.lastParams); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if f.runStatus != http.StatusCreated && f.runStatus != http.StatusOK {
		http.Error(w, "rejected", f.runStatus)
		return
	}
	w.WriteHeader(f.runStatus)
	io.WriteString(w, `{"uuid":"job-42","status":"INITIAL"}`) //nolint:errcheck
}

func (f *fakeBackend) handleStatus(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !strings.HasSuffix(r.URL.Path, "/job-42") {
		http.NotFound(w, r)
		return
	}
	i := f.statusHits
	if i >= len(f.statuses) {
		i = len(f.statuses) - 1
	}
	f.statusHits++
	switch s := f.statuses[i]; s {
	case "http500":
		http.Error(w, "boom", http.StatusInternalServerError)
	case "garbage":
		io.WriteString(w, "{not json") //nolint:errcheck
	default:
		io.WriteString(w, s) //nolint:errcheck
	}
}

func (f *fakeBackend) hits() (pipelines, runs, statuses int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.pipelineHits, f.runHits, f.statusHits
}

var pngBytes = []byte{0x89, 'P', 'N', 'G', 1, 2, 3}

const (
	statusProcessing = `{"uuid":"job-42","status":"PROCESSING"}`
	statusInitial    = `{"uuid":"job-42","status":"INITIAL"}`
)

func statusDone() string {
	return `{"uuid":"job-42","status":"DONE","result":{"files":["` + base64.StdEncoding.EncodeToString(pngBytes) + `"],"censored":false}}`
}

// recorder collects published events.
type recorder struct {
	mu     sync.Mutex
	events []JobEvent
}

func (r *recorder) Publish(topic string, payload any) {
	if topic != JobTopic {
		return
	}
	r.mu.Lock()
	r.events = append(r.events, payload.(JobEvent))
	r.mu.Unlock()
}

func (r *recorder) statuses() []Status {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Status, len(r.events))
	for i, e := range r.events {
		out[i] = e.Status
	}
	return out
}
