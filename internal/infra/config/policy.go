package config

import (
	"os"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// Phrase is one entry of the ordered query translation table.
type Phrase struct {
	From string `yaml:"from"`
	To   string `yaml:"to"`
}

// Policy holds prompt and keyword data that operators may override without a rebuild.
// Zero-valued fields mean "use the built-in default" of the consuming package.
type Policy struct {
	SearchMarker       string   `yaml:"search_marker"`
	ImageMarker        string   `yaml:"image_marker"`
	SystemPrompt       string   `yaml:"system_prompt"`
	SearchSystemPrompt string   `yaml:"search_system_prompt"`
	SearchUserTemplate string   `yaml:"search_user_template"`
	Translations       []Phrase `yaml:"translations"`
}

// LoadPolicy reads a policy file. An empty path yields an empty Policy.
// The translation table is a YAML list so its order survives decoding.
func LoadPolicy(path string) (Policy, error) {
	var p Policy
	if path == "" {
		return p, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return p, errors.Wrapf(err, "read policy file %s", path)
	}
	if err := yaml.Unmarshal(raw, &p); err != nil {
		return Policy{}, errors.Wrapf(err, "parse policy file %s", path)
	}
	return p, nil
}
