package tokenizer

import (
	_ "embed"
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/davidbz/sidecar/internal/domain"
)

//go:embed families.yaml
var familiesYAML []byte

// Family binds models to one BPE encoding.
type Family struct {
	Name         string           `yaml:"name"`
	Encoding     string           `yaml:"encoding"`
	ChatOverhead bool             `yaml:"chat_overhead"`
	Models       []domain.ModelID `yaml:"models"`
}

type familyFile struct {
	Families []Family `yaml:"families"`
}

// ParseFamilies decodes a family table and rejects models listed twice.
func ParseFamilies(data []byte) ([]Family, error) {
	var file familyFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse tokenizer families: %w", err)
	}

	seen := make(map[domain.ModelID]string)
	for _, family := range file.Families {
		if family.Encoding == "" {
			return nil, fmt.Errorf("tokenizer family %s has no encoding", family.Name)
		}
		for _, model := range family.Models {
			if other, exists := seen[model]; exists {
				return nil, fmt.Errorf("model %s listed in families %s and %s", model, other, family.Name)
			}
			seen[model] = family.Name
		}
	}
	return file.Families, nil
}

// DefaultFamilies returns the built-in family table.
func DefaultFamilies() []Family {
	families, err := ParseFamilies(familiesYAML)
	if err != nil {
		panic(err)
	}
	return families
}
