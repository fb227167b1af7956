package assistant

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/matiasleandrokruk/askbot/internal/infra/llm"
)

// Model status values.
const (
	ModelError   = "error"
	ModelLoading = "loading"
	ModelReady   = "ready"
)

// ModelStatus backs the model status endpoint.
type ModelStatus struct {
	Status  string `json:"status"`
	Message string `json:"message"`
	Model   string `json:"model,omitempty"`
}

// Status reports whether the text provider can serve requests. It never
// triggers a token exchange.
func (o *Orchestrator) Status(ctx context.Context) ModelStatus {
	name := o.provider.ModelInfo().ID
	if auth, ok := o.provider.(llm.Authenticator); ok {
		switch {
		case !auth.Configured():
			return ModelStatus{Status: ModelError, Message: "API key is not configured"}
		case !auth.HasToken():
			return ModelStatus{Status: ModelLoading, Message: "Acquiring access token..."}
		}
	} else if err := o.provider.HealthCheck(ctx); err != nil {
		log.Warn().Err(err).Msg("provider health check failed")
		return ModelStatus{Status: ModelError, Message: fmt.Sprintf("%s is unreachable", name)}
	}
	return ModelStatus{Status: ModelReady, Message: fmt.Sprintf("%s is ready", name), Model: name + " API"}
}
