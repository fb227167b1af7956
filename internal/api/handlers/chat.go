package handlers

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"github.com/matiasleandrokruk/askbot/internal/domain/assistant"
	"github.com/matiasleandrokruk/askbot/internal/domain/session"
)

const (
	msgEmptyMessage   = "Message must not be empty"
	msgInvalidBody    = "invalid request body"
	msgChatFailed     = "An error occurred while generating the response. Please try again."
	msgMissingSession = "missing session"
	msgHistoryCleared = "Chat history cleared"

	imageDataURLPrefix = "data:image/png;base64,"
)

// Responder is the orchestration entry point the chat handler drives.
type Responder interface {
	GenerateResponse(ctx context.Context, userMessage string, history []assistant.Turn, images assistant.ImageGenerator) (assistant.Reply, error)
}

// HistoryStore keeps per-session turns.
type HistoryStore interface {
	History(id string) []session.Turn
	Append(id string, turns ...session.Turn) []session.Turn
	Clear(id string)
}

// ChatHandler serves the chat and history endpoints.
type ChatHandler struct {
	responder Responder
	sessions  HistoryStore
	images    assistant.ImageGenerator
}

// NewChatHandler creates a ChatHandler. images is nil when image generation is off.
func NewChatHandler(responder Responder, sessions HistoryStore, images assistant.ImageGenerator) *ChatHandler {
	return &ChatHandler{responder: responder, sessions: sessions, images: images}
}

type chatRequest struct {
	Message string `json:"message"`
}

type chatResponse struct {
	Response string `json:"response"`
	Type     string `json:"type,omitempty"`
	ImageURL string `json:"image_url,omitempty"`
	Prompt   string `json:"prompt,omitempty"`
	Service  string `json:"service,omitempty"`
	Status   string `json:"status"`
}

// Chat handles POST /api/chat.
func (h *ChatHandler) Chat(w http.ResponseWriter, r *http.Request) {
	sid, err := getSessionID(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, msgMissingSession)
		return
	}

	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, msgInvalidBody)
		return
	}
	message := strings.TrimSpace(req.Message)
	if message == "" {
		writeError(w, http.StatusBadRequest, msgEmptyMessage)
		return
	}

	history := session.ModelHistory(h.sessions.History(sid))
	reply, err := h.responder.GenerateResponse(r.Context(), message, history, h.images)
	if err != nil {
		var ae *assistant.Error
		if errors.As(err, &ae) && ae.Kind == assistant.KindValidation {
			writeError(w, http.StatusBadRequest, msgEmptyMessage)
			return
		}
		log.Error().Err(err).Str("session_id", sid).Msg("chat failed")
		writeError(w, http.StatusInternalServerError, msgChatFailed)
		return
	}
	if tr, ok := reply.(assistant.TextReply); ok && tr.Failure != nil {
		log.Warn().Str("kind", string(tr.Failure.Kind)).Str("session_id", sid).Msg("chat answered with failure text")
	}

	h.sessions.Append(sid, session.UserTurn(message), session.ReplyTurn(reply))
	writeJSON(w, http.StatusOK, toChatResponse(reply))
}

func toChatResponse(reply assistant.Reply) chatResponse {
	if img, ok := reply.(assistant.ImageReply); ok {
		return chatResponse{
			Response: img.Text,
			Type:     session.TurnTypeImage,
			ImageURL: imageDataURLPrefix + base64.StdEncoding.EncodeToString(img.Image),
			Prompt:   img.Prompt,
			Service:  img.Service,
			Status:   statusSuccess,
		}
	}
	return chatResponse{Response: reply.Message(), Status: statusSuccess}
}

// Clear handles POST /api/clear.
func (h *ChatHandler) Clear(w http.ResponseWriter, r *http.Request) {
	sid, err := getSessionID(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, msgMissingSession)
		return
	}
	h.sessions.Clear(sid)
	writeJSON(w, http.StatusOK, map[string]string{"status": statusSuccess, "message": msgHistoryCleared})
}

// History handles GET /api/history.
func (h *ChatHandler) History(w http.ResponseWriter, r *http.Request) {
	sid, err := getSessionID(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, msgMissingSession)
		return
	}
	writeJSON(w, http.StatusOK, map[string][]session.Turn{"history": h.sessions.History(sid)})
}
