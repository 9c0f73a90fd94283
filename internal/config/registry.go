// Package config defines the resource-type registry: per-type advisory
// schemas, conflict allow-lists, and realtime room mapping.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/planhub/core/internal/models"
)

// ResourceDef describes one synchronized resource type.
type ResourceDef struct {
	// Schema is the advisory validation applied at the REST decode
	// boundary. Violations are logged, never gate-keeping.
	Schema models.Schema `yaml:"schema"`
	// ConflictFields is the allow-list inspected during conflict
	// detection. Empty means the default allow-list.
	ConflictFields []string `yaml:"conflict_fields"`
	// Room is the realtime room carrying events for this type. Empty
	// means no dedicated room.
	Room string `yaml:"room"`
}

// Registry maps resource types to their definitions.
type Registry map[models.ResourceType]ResourceDef

// DefaultRegistry returns the built-in definitions for the dashboard's
// resource types.
func DefaultRegistry() Registry {
	return Registry{
		models.ResourceProjects: {
			Schema: models.Schema{
				Required: []string{"name"},
				Percent:  []string{"completion_percent"},
				Email:    []string{"owner_email"},
			},
			Room: "projects",
		},
		models.ResourceResources: {
			Schema: models.Schema{
				Required: []string{"name"},
				Percent:  []string{"allocation_percent"},
				Email:    []string{"email"},
			},
			Room: "resources",
		},
		models.ResourceRisks: {
			Schema: models.Schema{
				Required: []string{"name"},
				Percent:  []string{"probability_percent"},
			},
			Room: "risks",
		},
		models.ResourceFeatures: {
			Schema: models.Schema{Required: []string{"name"}},
		},
		models.ResourceBacklog: {
			Schema: models.Schema{Required: []string{"name"}},
		},
		models.ResourceTasks: {
			Schema: models.Schema{
				Required: []string{"name"},
				Percent:  []string{"progress_percent"},
			},
		},
	}
}

// LoadRegistry reads a YAML registry file and overlays it on the
// defaults: types in the file replace the built-in definition, unknown
// built-in types stay untouched.
func LoadRegistry(path string) (Registry, error) {
	registry := DefaultRegistry()
	if path == "" {
		return registry, nil
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read registry file: %w", err)
	}

	var overrides map[models.ResourceType]ResourceDef
	if err := yaml.Unmarshal(raw, &overrides); err != nil {
		return nil, fmt.Errorf("parse registry file: %w", err)
	}
	for rt, def := range overrides {
		if !rt.Valid() {
			return nil, fmt.Errorf("registry file names unknown resource type %q", rt)
		}
		registry[rt] = def
	}
	return registry, nil
}

// Schemas extracts the per-type advisory schemas for the REST client.
func (r Registry) Schemas() map[models.ResourceType]models.Schema {
	out := make(map[models.ResourceType]models.Schema, len(r))
	for rt, def := range r {
		out[rt] = def.Schema
	}
	return out
}

// ConflictFields returns the allow-list for one type; nil selects the
// resolver's default.
func (r Registry) ConflictFields(rt models.ResourceType) []string {
	return r[rt].ConflictFields
}

// Rooms returns the distinct rooms named by the registry, in resource
// type sync order.
func (r Registry) Rooms() []string {
	seen := make(map[string]bool)
	var rooms []string
	for _, rt := range models.ResourceTypes() {
		room := r[rt].Room
		if room == "" || seen[room] {
			continue
		}
		seen[room] = true
		rooms = append(rooms, room)
	}
	return rooms
}
