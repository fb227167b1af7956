package kandinsky

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

// Style is one entry of the public style catalogue.
type Style struct {
	Name    string `json:"name"`
	Title   string `json:"title"`
	TitleEn string `json:"titleEn,omitempty"`
	Image   string `json:"image,omitempty"`
}

// FallbackStyles is served when the catalogue cannot be fetched.
var FallbackStyles = []Style{
	{Name: "DEFAULT", Title: "Default"},
	{Name: "ANIME", Title: "Anime"},
	{Name: "UHD", Title: "High detail"},
}

// Styles fetches the style catalogue. Any failure yields FallbackStyles.
func (c *Client) Styles(ctx context.Context) []Style {
	styles, err := c.fetchStyles(ctx)
	if err != nil {
		log.Warn().Err(err).Msg("kandinsky styles unavailable, using fallback")
		return append([]Style(nil), FallbackStyles...)
	}
	return styles
}

func (c *Client) fetchStyles(ctx context.Context) ([]Style, error) {
	ctx, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.stylesURL, nil)
	if err != nil {
		return nil, errors.Wrap(err, "kandinsky styles: build request")
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, "kandinsky styles")
	}
	defer resp.Body.Close() //nolint:errcheck
	if resp.StatusCode != http.StatusOK {
		return nil, &statusError{op: "styles", code: resp.StatusCode}
	}
	var out []Style
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, errors.Wrap(err, "kandinsky styles: decode response")
	}
	if len(out) == 0 {
		return nil, errors.New("kandinsky styles: empty catalogue")
	}
	return out, nil
}

// Availability status values.
const (
	AvailabilityOnline       = "online"
	AvailabilityNoModels     = "no_models"
	AvailabilityUnauthorized = "unauthorized"
	AvailabilityForbidden    = "forbidden"
	AvailabilityError        = "error"
)

// Availability is the result of a health probe.
type Availability struct {
	Available bool   `json:"available"`
	Status    string `json:"status"`
	Message   string `json:"message"`
}

// CheckAvailability probes the pipeline listing. It is a health signal only and
// does not touch the cached pipeline id.
func (c *Client) CheckAvailability(ctx context.Context) Availability {
	pipelines, err := c.listPipelines(ctx)
	if err == nil {
		if len(pipelines) == 0 {
			return Availability{Status: AvailabilityNoModels, Message: "no models available"}
		}
		return Availability{Available: true, Status: AvailabilityOnline, Message: "service available"}
	}

	var se *statusError
	if errors.As(err, &se) {
		switch se.code {
		case http.StatusUnauthorized:
			return Availability{Status: AvailabilityUnauthorized, Message: "API key rejected"}
		case http.StatusForbidden:
			return Availability{Status: AvailabilityForbidden, Message: "access denied"}
		default:
			return Availability{Status: fmt.Sprintf("http_%d", se.code), Message: fmt.Sprintf("HTTP error: %d", se.code)}
		}
	}
	return Availability{Status: AvailabilityError, Message: "connection error: " + err.Error()}
}

// ServiceStatus is the health summary served by the status endpoint.
type ServiceStatus struct {
	Service       string `json:"service"`
	Status        string `json:"status"` // online | offline
	Available     bool   `json:"available"`
	Message       string `json:"message"`
	PipelineID    bool   `json:"pipeline_id"`
	APIConfigured bool   `json:"api_configured"`
}

// ServiceStatus combines availability, pipeline readiness and key presence.
func (c *Client) ServiceStatus(ctx context.Context) ServiceStatus {
	a := c.CheckAvailability(ctx)
	status := "offline"
	if a.Available {
		status = "online"
	}
	return ServiceStatus{
		Service:       ServiceName,
		Status:        status,
		Available:     a.Available,
		Message:       a.Message,
		PipelineID:    c.PipelineResolved(),
		APIConfigured: c.Configured(),
	}
}
