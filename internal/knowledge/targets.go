package knowledge

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Target overrides the collection naming for one pair. Keys in the
// targets file are pair identities ("org/project:environment").
type Target struct {
	Name        string `yaml:"name"`
	Description string `yaml:"description"`
	Skip        bool   `yaml:"skip"`
}

// targetsFile is the on-disk shape of the overrides document.
type targetsFile struct {
	Targets map[string]Target `yaml:"targets"`
}

// LoadTargets reads collection overrides from a YAML file. An empty path
// yields no overrides.
func LoadTargets(path string) (map[string]Target, error) {
	if path == "" {
		return nil, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading targets file: %w", err)
	}

	var doc targetsFile
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parsing targets file: %w", err)
	}

	return doc.Targets, nil
}
