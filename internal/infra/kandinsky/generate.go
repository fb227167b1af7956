package kandinsky

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

// Generation defaults.
const (
	DefaultWidth   = 1024
	DefaultHeight  = 1024
	DefaultStyle   = "DEFAULT"
	MaxPromptRunes = 1000
)

// Request describes one image. Zero Width, Height and Style take the defaults.
type Request struct {
	Prompt         string
	Width          int
	Height         int
	Style          string
	NegativePrompt string
}

// Image is a finished generation.
type Image struct {
	JobID   string
	Data    []byte
	Prompt  string // as submitted, after truncation
	Width   int
	Height  int
	Style   string
	Service string
}

// GenerateImage submits req and waits for the job to finish.
// Every failure is a *GenerationError.
func (c *Client) GenerateImage(ctx context.Context, req Request) (*Image, error) {
	if strings.TrimSpace(req.Prompt) == "" {
		return nil, fail(ReasonInvalidPrompt)
	}
	req = normalize(req)

	if !c.Configured() {
		return nil, fail(ReasonNotConfigured)
	}
	pipelineID, err := c.pipeline(ctx)
	if err != nil && ctx.Err() != nil {
		return nil, fail(ReasonCanceled)
	}
	if err != nil {
		log.Error().Err(err).Msg("kandinsky pipeline unavailable")
		return nil, fail(ReasonNotConfigured)
	}

	job := &Job{}
	id, err := c.submit(ctx, pipelineID, req)
	if err != nil {
		log.Error().Err(err).Msg("kandinsky submit failed")
		c.transition(job, StatusFailed, ReasonSubmitFailed)
		return nil, fail(ReasonSubmitFailed)
	}
	job.ID = id
	c.transition(job, StatusPending, "")
	log.Info().Str("job", id).Msg("kandinsky generation started")

	c.await(ctx, job)
	if job.Status != StatusDone {
		return nil, &GenerationError{Reason: job.Reason, Detail: job.Detail}
	}
	return &Image{
		JobID:   job.ID,
		Data:    job.Image,
		Prompt:  req.Prompt,
		Width:   req.Width,
		Height:  req.Height,
		Style:   req.Style,
		Service: ServiceName,
	}, nil
}

func normalize(req Request) Request {
	if r := []rune(req.Prompt); len(r) > MaxPromptRunes {
		req.Prompt = string(r[:MaxPromptRunes])
	}
	if req.Width <= 0 {
		req.Width = DefaultWidth
	}
	if req.Height <= 0 {
		req.Height = DefaultHeight
	}
	if req.Style == "" {
		req.Style = DefaultStyle
	}
	return req
}

type generateParams struct {
	Type                  string `json:"type"`
	NumImages             int    `json:"numImages"`
	Width                 int    `json:"width"`
	Height                int    `json:"height"`
	Style                 string `json:"style,omitempty"`
	NegativePromptDecoder string `json:"negativePromptDecoder,omitempty"`
	GenerateParams        struct {
		Query string `json:"query"`
	} `json:"generateParams"`
}

func buildParams(req Request) generateParams {
	p := generateParams{Type: "GENERATE", NumImages: 1, Width: req.Width, Height: req.Height}
	p.GenerateParams.Query = req.Prompt
	if req.Style != DefaultStyle {
		p.Style = req.Style
	}
	p.NegativePromptDecoder = strings.TrimSpace(req.NegativePrompt)
	return p
}

// submit posts the multipart run request and returns the job uuid.
func (c *Client) submit(ctx context.Context, pipelineID string, req Request) (string, error) {
	params, err := json.Marshal(buildParams(req))
	if err != nil {
		return "", errors.Wrap(err, "kandinsky run: encode params")
	}

	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	if err := w.WriteField("pipeline_id", pipelineID); err != nil {
		return "", errors.Wrap(err, "kandinsky run: write pipeline_id")
	}
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", `form-data; name="params"`)
	h.Set("Content-Type", "application/json")
	part, err := w.CreatePart(h)
	if err != nil {
		return "", errors.Wrap(err, "kandinsky run: create params part")
	}
	if _, err := part.Write(params); err != nil {
		return "", errors.Wrap(err, "kandinsky run: write params")
	}
	if err := w.Close(); err != nil {
		return "", errors.Wrap(err, "kandinsky run: close multipart")
	}

	ctx, cancel := context.WithTimeout(ctx, submitTimeout)
	defer cancel()
	resp, err := c.do(ctx, http.MethodPost, "key/api/v1/pipeline/run", &body, w.FormDataContentType())
	if err != nil {
		return "", err
	}
	defer resp.Body.Close() //nolint:errcheck
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		log.Error().Int("status", resp.StatusCode).Str("body", string(snippet)).Msg("kandinsky run rejected")
		return "", &statusError{op: "run", code: resp.StatusCode}
	}

	var out struct {
		UUID string `json:"uuid"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", errors.Wrap(err, "kandinsky run: decode response")
	}
	if out.UUID == "" {
		return "", errors.New("kandinsky run: response has no uuid")
	}
	return out.UUID, nil
}

type statusResponse struct {
	UUID             string `json:"uuid"`
	Status           string `json:"status"`
	ErrorDescription string `json:"errorDescription"`
	Result           struct {
		Files    []string `json:"files"`
		Censored bool     `json:"censored"`
	} `json:"result"`
}

// await polls until the job reaches a terminal status, spending at most
// maxAttempts status requests. The first poll is immediate.
func (c *Client) await(ctx context.Context, job *Job) {
	timer := time.NewTimer(0)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
		case <-timer.C:
		}
		if ctx.Err() != nil {
			c.transition(job, StatusCanceled, ReasonCanceled)
			log.Info().Str("job", job.ID).Int("attempts", job.Attempts).Msg("kandinsky polling canceled")
			return
		}

		job.Attempts++
		if c.pollOnce(ctx, job) {
			return
		}
		if job.Attempts%10 == 0 {
			log.Info().Str("job", job.ID).Int("attempt", job.Attempts).Int("max", c.maxAttempts).Msg("kandinsky generation in progress")
		}
		if job.Attempts >= c.maxAttempts {
			c.transition(job, StatusTimedOut, ReasonTimedOut)
			log.Warn().Str("job", job.ID).Int("attempts", job.Attempts).Msg("kandinsky generation timed out")
			return
		}
		timer.Reset(c.pollInterval)
	}
}

// pollOnce performs one status request and reports whether the job is finished.
// Transport, decode and HTTP errors leave the job running.
func (c *Client) pollOnce(ctx context.Context, job *Job) bool {
	st, err := c.status(ctx, job.ID)
	if err != nil {
		if ctx.Err() == nil {
			log.Warn().Err(err).Str("job", job.ID).Int("attempt", job.Attempts).Msg("kandinsky status check failed")
		}
		c.transition(job, StatusRunning, "")
		return false
	}

	switch st.Status {
	case "DONE":
		if st.Result.Censored {
			c.transition(job, StatusFailed, ReasonModerated)
			return true
		}
		if len(st.Result.Files) == 0 {
			c.transition(job, StatusFailed, ReasonNoImage)
			return true
		}
		img, err := base64.StdEncoding.DecodeString(st.Result.Files[0])
		if err != nil || len(img) == 0 {
			log.Error().Err(err).Str("job", job.ID).Msg("kandinsky image payload undecodable")
			c.transition(job, StatusFailed, ReasonNoImage)
			return true
		}
		job.Image = img
		c.transition(job, StatusDone, "")
		return true
	case "FAIL":
		job.Detail = st.ErrorDescription
		c.transition(job, StatusFailed, ReasonBackendFailed)
		return true
	case "INITIAL", "PROCESSING":
	default:
		log.Warn().Str("job", job.ID).Str("status", st.Status).Msg("kandinsky unknown job status")
	}
	c.transition(job, StatusRunning, "")
	return false
}

func (c *Client) status(ctx context.Context, id string) (*statusResponse, error) {
	ctx, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()
	resp, err := c.do(ctx, http.MethodGet, "key/api/v1/pipeline/status/"+id, nil, "")
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close() //nolint:errcheck
	if resp.StatusCode != http.StatusOK {
		return nil, &statusError{op: "status", code: resp.StatusCode}
	}
	var out statusResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, errors.Wrap(err, "kandinsky status: decode response")
	}
	return &out, nil
}
