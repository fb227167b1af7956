// Package session keeps per-visitor conversation history in process memory.
// Entries expire after a period of inactivity; nothing is persisted.
package session

import (
	"sync"
	"time"

	cache "github.com/patrickmn/go-cache"

	"github.com/matiasleandrokruk/askbot/internal/domain/assistant"
	"github.com/matiasleandrokruk/askbot/internal/infra/llm"
)

// MaxStoredTurns caps the history kept per session.
const MaxStoredTurns = 20

// TurnTypeImage marks an assistant turn that produced an image.
const TurnTypeImage = "image"

// Turn is one stored message. Image bytes are never kept, only the prompt.
type Turn struct {
	Role     string `json:"role"`
	Content  string `json:"content"`
	Type     string `json:"type,omitempty"`
	Prompt   string `json:"prompt,omitempty"`
	Service  string `json:"service,omitempty"`
	HasImage bool   `json:"has_image,omitempty"`
}

// UserTurn builds a user message turn.
func UserTurn(content string) Turn {
	return Turn{Role: llm.RoleUser, Content: content}
}

// ReplyTurn converts an orchestration result into the assistant turn to store.
func ReplyTurn(r assistant.Reply) Turn {
	if img, ok := r.(assistant.ImageReply); ok {
		return Turn{
			Role:     llm.RoleAssistant,
			Content:  img.Text,
			Type:     TurnTypeImage,
			Prompt:   img.Prompt,
			Service:  img.Service,
			HasImage: true,
		}
	}
	return Turn{Role: llm.RoleAssistant, Content: r.Message()}
}

// Store maps session ids to their history. Safe for concurrent use.
type Store struct {
	items *cache.Cache
	mu    sync.Mutex // serializes read-modify-write in Append
}

// NewStore creates a store whose idle sessions expire after ttl.
func NewStore(ttl time.Duration) *Store {
	if ttl <= 0 {
		ttl = cache.NoExpiration
	}
	cleanup := ttl / 2
	if ttl == cache.NoExpiration || cleanup < time.Minute {
		cleanup = time.Minute
	}
	return &Store{items: cache.New(ttl, cleanup)}
}

// History returns a copy of the session's turns, oldest first.
func (s *Store) History(id string) []Turn {
	turns := s.get(id)
	out := make([]Turn, len(turns))
	copy(out, turns)
	return out
}

// Append adds turns and trims the history to the last MaxStoredTurns.
// It refreshes the session's expiry.
func (s *Store) Append(id string, turns ...Turn) []Turn {
	s.mu.Lock()
	defer s.mu.Unlock()

	cur := s.get(id)
	next := make([]Turn, 0, len(cur)+len(turns))
	next = append(next, cur...)
	next = append(next, turns...)
	if len(next) > MaxStoredTurns {
		next = next[len(next)-MaxStoredTurns:]
	}
	s.items.Set(id, next, cache.DefaultExpiration)

	out := make([]Turn, len(next))
	copy(out, next)
	return out
}

// Clear drops the session's history.
func (s *Store) Clear(id string) {
	s.items.Delete(id)
}

// Len reports how many sessions are live.
func (s *Store) Len() int {
	return s.items.ItemCount()
}

func (s *Store) get(id string) []Turn {
	v, found := s.items.Get(id)
	if !found {
		return nil
	}
	turns, _ := v.([]Turn)
	return turns
}

// ModelHistory projects stored turns onto what the orchestrator consumes.
func ModelHistory(turns []Turn) []assistant.Turn {
	out := make([]assistant.Turn, 0, len(turns))
	for _, t := range turns {
		out = append(out, assistant.Turn{Role: t.Role, Content: t.Content})
	}
	return out
}
