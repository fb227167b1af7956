package search

import "strings"

// Phrase maps a native-language query fragment to its search-language form.
type Phrase struct {
	From string
	To   string
}

// DefaultTranslations is applied top to bottom; each replacement sees the
// output of the ones before it.
var DefaultTranslations = []Phrase{
	// informational
	{"что такое", "what is"},
	{"кто такой", "who is"},
	{"расскажи о", "tell about"},
	{"расскажи про", "tell about"},
	{"информация о", "information about"},
	{"данные о", "data about"},
	{"определение", "definition"},
	{"история", "history"},
	{"биография", "biography"},
	// news
	{"последние новости", "latest news"},
	{"свежие новости", "recent news"},
	{"что происходит", "what happens"},
	{"актуальная информация", "current information"},
	{"что нового", "what's new"},
	{"новости", "news"},
	// tech
	{"последняя версия", "latest version"},
	{"новая версия", "new version"},
	{"обновление", "update"},
	{"выпуск", "release"},
	{"последняя информация", "latest information"},
	{"информация про", "information about"},
	{"про чат жпт", "about ChatGPT"},
	{"чат жпт", "ChatGPT"},
	{"жпт", "GPT"},
	{"жпт-5", "GPT-5"},
	{"жпт5", "GPT-5"},
	{"последние новости про", "latest news about"},
	{"релиз", "release"},
	{"анонс", "announcement"},
	// finance
	{"курс", "exchange rate"},
	{"цена", "price"},
	{"стоимость", "cost"},
	{"котировки", "quotes"},
	// weather
	{"погода", "weather"},
	{"прогноз", "forecast"},
	{"температура", "temperature"},
	{"климат", "climate"},
}

// Translate lowercases and trims query, then applies every phrase in table as a
// literal substring replacement. If no phrase matched, query is returned as given.
func Translate(query string, table []Phrase) string {
	normalized := strings.ToLower(strings.TrimSpace(query))
	translated := normalized
	for _, p := range table {
		if p.From == "" {
			continue
		}
		translated = strings.ReplaceAll(translated, p.From, p.To)
	}
	if translated != normalized {
		return translated
	}
	return query
}
