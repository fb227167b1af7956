package handlers

import (
	"context"
	"net/http"

	"github.com/sourcegraph/conc"

	"github.com/matiasleandrokruk/askbot/internal/domain/assistant"
	"github.com/matiasleandrokruk/askbot/internal/infra/kandinsky"
)

const (
	msgImageKeysMissing  = "API keys are not configured"
	msgStylesUnavailable = "Kandinsky API keys are not configured"
)

// ModelStatuser reports text provider readiness.
type ModelStatuser interface {
	Status(ctx context.Context) assistant.ModelStatus
}

// ImageService is the part of the image client the status endpoints read.
type ImageService interface {
	ServiceStatus(ctx context.Context) kandinsky.ServiceStatus
	Styles(ctx context.Context) []kandinsky.Style
}

// JobCounter exposes image job counters.
type JobCounter interface {
	Stats() kandinsky.JobStats
}

// StatusHandler serves the status and style endpoints.
type StatusHandler struct {
	model  ModelStatuser
	images ImageService
	jobs   JobCounter
}

// NewStatusHandler creates a StatusHandler. images and jobs are nil when
// image generation is off.
func NewStatusHandler(model ModelStatuser, images ImageService, jobs JobCounter) *StatusHandler {
	return &StatusHandler{model: model, images: images, jobs: jobs}
}

type imageStatus struct {
	kandinsky.ServiceStatus
	Jobs *kandinsky.JobStats `json:"jobs,omitempty"`
}

type imageUnavailable struct {
	Status    string `json:"status"`
	Message   string `json:"message"`
	Available bool   `json:"available"`
}

// ModelStatus handles GET /api/model_status.
func (h *StatusHandler) ModelStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.model.Status(r.Context()))
}

// ImageStatus handles GET /api/image_status.
func (h *StatusHandler) ImageStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"kandinsky": h.imageStatus(r.Context()),
		"service":   kandinsky.ServiceName,
	})
}

// Overview handles GET /api/status: both probes run concurrently.
func (h *StatusHandler) Overview(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var (
		wg    conc.WaitGroup
		model assistant.ModelStatus
		image any
	)
	wg.Go(func() { model = h.model.Status(ctx) })
	wg.Go(func() { image = h.imageStatus(ctx) })
	wg.Wait()

	writeJSON(w, http.StatusOK, map[string]any{
		"model":     model,
		"kandinsky": image,
		"service":   kandinsky.ServiceName,
	})
}

// Styles handles GET /api/kandinsky/styles.
func (h *StatusHandler) Styles(w http.ResponseWriter, r *http.Request) {
	if h.images == nil {
		writeError(w, http.StatusInternalServerError, msgStylesUnavailable)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"styles": h.images.Styles(r.Context()),
		"status": statusSuccess,
	})
}

func (h *StatusHandler) imageStatus(ctx context.Context) any {
	if h.images == nil {
		return imageUnavailable{Status: statusError, Message: msgImageKeysMissing}
	}
	out := imageStatus{ServiceStatus: h.images.ServiceStatus(ctx)}
	if h.jobs != nil {
		stats := h.jobs.Stats()
		out.Jobs = &stats
	}
	return out
}
