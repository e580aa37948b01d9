package agent

import (
	_ "embed"
	"fmt"
	"os"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

// defaultCatalog is the built-in agent catalog, compiled into the binary so
// the pipeline works without any external configuration.
//
//go:embed catalog.yaml
var defaultCatalog []byte

// catalogFile is the YAML shape of an agent catalog.
type catalogFile struct {
	Agents []Card `yaml:"agents"`
}

// LoadCatalog parses a YAML catalog and registers every card. Cards without
// an id or without at least one stage are rejected.
func LoadCatalog(data []byte, reg *Registry) error {
	var file catalogFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return fmt.Errorf("parse agent catalog: %w", err)
	}

	for i, card := range file.Agents {
		if card.ID == "" {
			return fmt.Errorf("agent catalog entry %d: missing id", i)
		}
		if len(card.Stages) == 0 {
			return fmt.Errorf("agent %q: no supported stages", card.ID)
		}
		for _, stage := range card.Stages {
			if !stage.Valid() {
				return fmt.Errorf("agent %q: unknown stage %q", card.ID, stage)
			}
		}
		reg.Register(card)
	}
	return nil
}

// LoadCatalogFile registers cards from a YAML file on disk.
func LoadCatalogFile(path string, reg *Registry) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read agent catalog %s: %w", path, err)
	}
	return LoadCatalog(data, reg)
}

// DefaultRegistry returns a Registry populated with the embedded catalog.
func DefaultRegistry(logger *zap.Logger) (*Registry, error) {
	reg := NewRegistry(logger)
	if err := LoadCatalog(defaultCatalog, reg); err != nil {
		return nil, err
	}
	return reg, nil
}
