package search

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTranslate(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name, in, want string
	}{
		{"news phrase", "Последние новости жпт-5", "latest news GPT-5"},
		{"definition question", "что такое блокчейн", "what is блокчейн"},
		{"weather", "  Погода в Москве ", "weather в москве"},
		{"no match keeps original verbatim", "  GPT-5 Release Date ", "  GPT-5 Release Date "},
		{"english stays untouched", "latest golang version", "latest golang version"},
		{"finance", "курс доллара", "exchange rate доллара"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tc.want, Translate(tc.in, DefaultTranslations))
		})
	}
}

func TestTranslate_CustomTableOrder(t *testing.T) {
	t.Parallel()

	table := []Phrase{{From: "ab", To: "x"}, {From: "x", To: "y"}, {From: "", To: "ignored"}}
	assert.Equal(t, "y", Translate("AB", table))
}
