package assistant

import (
	"strings"

	"github.com/matiasleandrokruk/askbot/internal/infra/llm"
)

// ModelContextTurns is how many trailing history turns reach the model.
const ModelContextTurns = 10

// Placeholders understood by prompt texts.
const (
	phSearchMarker  = "{{search_marker}}"
	phImageMarker   = "{{image_marker}}"
	phQuestion      = "{{question}}"
	phSearchResults = "{{search_results}}"
)

// Turn is one prior message of the conversation.
type Turn struct {
	Role    string // llm.RoleUser | llm.RoleAssistant
	Content string
}

// Prompts holds the three prompt texts.
type Prompts struct {
	System             string
	SearchSystem       string
	SearchUserTemplate string
}

const defaultSystemPrompt = `You are an AI assistant with internet search and image generation through Kandinsky 3.0.

You have three capabilities:

1. CURRENT INFORMATION SEARCH
   Always search for questions about:
   - new product versions (GPT-5, Claude, Gemini)
   - current events, news, exchange rates
   - definitions of modern technologies and terms
   - fresh data and facts

   Format: "{{search_marker}} [specific search query in English]"

   Translate every Russian term into English.

   Examples:
   - "что такое GPT-5" -> {{search_marker}} GPT-5 latest information
   - "искусственный интеллект новости" -> {{search_marker}} artificial intelligence news today
   - "курс биткойна сегодня" -> {{search_marker}} Bitcoin price today
   - "погода в Москве" -> {{search_marker}} weather Moscow

2. IMAGE GENERATION
   - Requests for advice or options: answer in text with suggestions
   - Concrete requests to create a picture: "{{image_marker}} [detailed description]"

3. REGULAR ANSWERS
   Answer everything else from your own knowledge.

IMPORTANT:
- Do NOT say you have no internet access. You can search.
- Do NOT say you cannot generate images. You can.
- Decide the request type first, then act.

Answer in the user's language, briefly and to the point.`

const defaultSearchSystemPrompt = `IMPORTANT! You are given CURRENT data from the internet for the user's request.

MANDATORY INSTRUCTIONS:
1. Use ONLY the provided search data in your answer
2. Do NOT add information from your own knowledge
3. Do NOT say "there is no official information" when the search has data
4. Base the answer only on the information found
5. Quote concrete facts from the search when there are any

Answer in the user's language, structured and informative.`

const defaultSearchUserTemplate = `The user asks: {{question}}

=== CURRENT DATA FROM THE INTERNET ===
{{search_results}}

=== INSTRUCTION ===
Answer the user's question using ONLY the current information above. Do not mention internet access limits: you have fresh data!`

// DefaultPrompts returns the built-in prompt texts.
func DefaultPrompts() Prompts {
	return Prompts{
		System:             defaultSystemPrompt,
		SearchSystem:       defaultSearchSystemPrompt,
		SearchUserTemplate: defaultSearchUserTemplate,
	}
}

// buildMessages assembles the completion input. A non-empty searchResults
// switches to the search-grounded system prompt and user template.
func buildMessages(p Prompts, m Markers, userMessage string, history []Turn, searchResults string) []llm.Message {
	system := strings.NewReplacer(phSearchMarker, m.Search, phImageMarker, m.Image).Replace(p.System)
	current := userMessage
	if searchResults != "" {
		system = p.SearchSystem
		current = strings.NewReplacer(phQuestion, userMessage, phSearchResults, searchResults).Replace(p.SearchUserTemplate)
	}

	recent := lastTurns(history, ModelContextTurns)
	msgs := make([]llm.Message, 0, len(recent)+2)
	msgs = append(msgs, llm.Message{Role: llm.RoleSystem, Content: system})
	for _, t := range recent {
		if t.Role != llm.RoleUser && t.Role != llm.RoleAssistant {
			continue
		}
		msgs = append(msgs, llm.Message{Role: t.Role, Content: t.Content})
	}
	return append(msgs, llm.Message{Role: llm.RoleUser, Content: current})
}

func lastTurns(history []Turn, n int) []Turn {
	if len(history) > n {
		return history[len(history)-n:]
	}
	return history
}
