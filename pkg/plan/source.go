package plan

import (
	"context"
	"errors"
	"maps"
	"os"

	"gopkg.in/yaml.v3"
)

// StaticSource serves a fixed set of plan entries. Useful for tests and
// for wiring the compiled-in defaults through the Source interface.
type StaticSource struct {
	entries map[Plan]Entry
}

// NewStaticSource creates a source returning a copy of the given entries.
func NewStaticSource(entries map[Plan]Entry) *StaticSource {
	copied := make(map[Plan]Entry, len(entries))
	maps.Copy(copied, entries)
	return &StaticSource{entries: copied}
}

func (s *StaticSource) Load(_ context.Context) (map[Plan]Entry, error) {
	copied := make(map[Plan]Entry, len(s.entries))
	maps.Copy(copied, s.entries)
	return copied, nil
}

// YAMLSource loads plan entries from a YAML file, letting operators
// adjust quotas without a redeploy. The file maps plan IDs to entries:
//
//	gratuito:
//	  quota: 5
//	  label: Gratuito
//	  features: [export_pdf]
type YAMLSource struct {
	path string
}

// NewYAMLSource creates a source reading from the given file path.
func NewYAMLSource(path string) *YAMLSource {
	return &YAMLSource{path: path}
}

func (s *YAMLSource) Load(_ context.Context) (map[Plan]Entry, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return nil, errors.Join(ErrFailedToLoadCatalog, err)
	}

	var entries map[Plan]Entry
	if err := yaml.Unmarshal(data, &entries); err != nil {
		return nil, errors.Join(ErrFailedToLoadCatalog, err)
	}

	return entries, nil
}
