package routing

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/hadlocna/operations/internal/domain/entity"
)

// Registry is the ordered routing table. Entry order is the tie-break.
type Registry struct {
	LegalSuffixes []string               `yaml:"legal_suffixes"`
	Entries       []entity.RegistryEntry `yaml:"entries"`
}

// LoadRegistry loads the routing registry from a YAML file
func LoadRegistry(path string) (*Registry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read registry file: %w", err)
	}

	var reg Registry
	if err := yaml.Unmarshal(data, &reg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal registry: %w", err)
	}

	if err := reg.Validate(); err != nil {
		return nil, err
	}

	return &reg, nil
}

// Validate rejects entries that could never route correctly
func (r *Registry) Validate() error {
	if len(r.Entries) == 0 {
		return fmt.Errorf("%w: routing registry has no entries", entity.ErrConfiguration)
	}
	for i, e := range r.Entries {
		if e.Category == "" || e.FolderName == "" {
			return fmt.Errorf("%w: registry entry %d needs category and folder_name", entity.ErrConfiguration, i)
		}
		if e.Category == entity.CategoryUnsorted {
			return fmt.Errorf("%w: registry entry %d uses reserved category %q", entity.ErrConfiguration, i, e.Category)
		}
		if len(e.Aliases) == 0 {
			return fmt.Errorf("%w: registry entry %q has no aliases", entity.ErrConfiguration, e.FolderName)
		}
	}
	return nil
}
