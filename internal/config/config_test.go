// Package config tests for env parsing and the resource registry.
package config

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"

	"github.com/planhub/core/internal/models"
)

func TestFromEnv_Defaults(t *testing.T) {
	cfg, err := FromEnv()
	if err != nil {
		t.Fatalf("FromEnv: %v", err)
	}
	if cfg.APIURL != "http://localhost:8090" {
		t.Errorf("APIURL = %q", cfg.APIURL)
	}
	if cfg.SyncInterval != 30*time.Second {
		t.Errorf("SyncInterval = %v, want 30s", cfg.SyncInterval)
	}
	if cfg.RetryBackoff != 5*time.Second {
		t.Errorf("RetryBackoff = %v, want 5s", cfg.RetryBackoff)
	}
	wantRooms := []string{"dashboard", "projects", "risks", "resources"}
	if !reflect.DeepEqual(cfg.Rooms, wantRooms) {
		t.Errorf("Rooms = %v, want %v", cfg.Rooms, wantRooms)
	}
}

func TestFromEnv_Overrides(t *testing.T) {
	t.Setenv("PLANHUB_API_URL", "https://api.example.com")
	t.Setenv("PLANHUB_SYNC_INTERVAL", "2m")
	t.Setenv("PLANHUB_ROOMS", "dashboard,projects")

	cfg, err := FromEnv()
	if err != nil {
		t.Fatalf("FromEnv: %v", err)
	}
	if cfg.APIURL != "https://api.example.com" {
		t.Errorf("APIURL = %q", cfg.APIURL)
	}
	if cfg.SyncInterval != 2*time.Minute {
		t.Errorf("SyncInterval = %v, want 2m", cfg.SyncInterval)
	}
	if !reflect.DeepEqual(cfg.Rooms, []string{"dashboard", "projects"}) {
		t.Errorf("Rooms = %v", cfg.Rooms)
	}
}

func TestDefaultRegistry_CoversAllTypes(t *testing.T) {
	registry := DefaultRegistry()
	for _, rt := range models.ResourceTypes() {
		if _, ok := registry[rt]; !ok {
			t.Errorf("registry is missing %s", rt)
		}
	}
	rooms := registry.Rooms()
	if !reflect.DeepEqual(rooms, []string{"projects", "resources", "risks"}) {
		t.Errorf("Rooms() = %v", rooms)
	}
}

func TestLoadRegistry_OverlaysFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "registry.yaml")
	content := `
projects:
  schema:
    required: [name, owner]
  conflict_fields: [name, status]
  room: everything
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write registry: %v", err)
	}

	registry, err := LoadRegistry(path)
	if err != nil {
		t.Fatalf("LoadRegistry: %v", err)
	}

	projects := registry[models.ResourceProjects]
	if !reflect.DeepEqual(projects.Schema.Required, []string{"name", "owner"}) {
		t.Errorf("overridden schema = %+v", projects.Schema)
	}
	if !reflect.DeepEqual(registry.ConflictFields(models.ResourceProjects), []string{"name", "status"}) {
		t.Errorf("ConflictFields = %v", registry.ConflictFields(models.ResourceProjects))
	}
	// Types absent from the file keep their defaults.
	if len(registry[models.ResourceRisks].Schema.Required) == 0 {
		t.Error("risks lost its default schema")
	}
}

func TestLoadRegistry_UnknownType(t *testing.T) {
	path := filepath.Join(t.TempDir(), "registry.yaml")
	if err := os.WriteFile(path, []byte("gadgets:\n  room: nope\n"), 0o644); err != nil {
		t.Fatalf("write registry: %v", err)
	}
	if _, err := LoadRegistry(path); err == nil {
		t.Fatal("LoadRegistry accepted an unknown resource type")
	}
}

func TestLoadRegistry_EmptyPathUsesDefaults(t *testing.T) {
	registry, err := LoadRegistry("")
	if err != nil {
		t.Fatalf("LoadRegistry: %v", err)
	}
	if len(registry) != len(models.ResourceTypes()) {
		t.Errorf("registry has %d types, want %d", len(registry), len(models.ResourceTypes()))
	}
}
