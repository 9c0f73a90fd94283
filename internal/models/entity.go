// Package models provides data model definitions for the Planhub client core.
package models

import (
	"database/sql/driver"
	"fmt"
	"reflect"
	"time"
)

// UUID is a wrapper around string for UUID v4 type safety.
type UUID string

// Value implements driver.Valuer for UUID.
func (u UUID) Value() (driver.Value, error) {
	return string(u), nil
}

// Scan implements sql.Scanner for UUID.
func (u *UUID) Scan(value interface{}) error {
	switch v := value.(type) {
	case nil:
		*u = ""
	case string:
		*u = UUID(v)
	case []byte:
		*u = UUID(v)
	default:
		return fmt.Errorf("cannot scan %T into UUID", value)
	}
	return nil
}

// String returns the string representation of the UUID.
func (u UUID) String() string {
	return string(u)
}

// ResourceType identifies one of the synchronized dashboard collections.
type ResourceType string

const (
	ResourceProjects  ResourceType = "projects"
	ResourceResources ResourceType = "resources"
	ResourceRisks     ResourceType = "risks"
	ResourceFeatures  ResourceType = "features"
	ResourceBacklog   ResourceType = "backlog"
	ResourceTasks     ResourceType = "tasks"
)

// ResourceTypes returns all known resource types in canonical sync order.
func ResourceTypes() []ResourceType {
	return []ResourceType{
		ResourceProjects,
		ResourceResources,
		ResourceRisks,
		ResourceFeatures,
		ResourceBacklog,
		ResourceTasks,
	}
}

// Valid reports whether rt is one of the known resource types.
func (rt ResourceType) Valid() bool {
	switch rt {
	case ResourceProjects, ResourceResources, ResourceRisks,
		ResourceFeatures, ResourceBacklog, ResourceTasks:
		return true
	}
	return false
}

// String returns the string representation of the resource type.
func (rt ResourceType) String() string {
	return string(rt)
}

// Entity is a single dashboard record in its JSON wire shape.
// Records are schemaless at this layer; the server owns the canonical
// field set per resource type.
type Entity map[string]any

// ID returns the entity identifier, or "" when absent or not a string.
func (e Entity) ID() string {
	id, _ := e["id"].(string)
	return id
}

// CreatedAt returns the parsed created_at field.
func (e Entity) CreatedAt() (time.Time, bool) {
	return e.timeField("created_at")
}

// UpdatedAt returns the parsed updated_at field.
func (e Entity) UpdatedAt() (time.Time, bool) {
	return e.timeField("updated_at")
}

// Timestamp returns the effective recency of the entity: updated_at when
// present, otherwise created_at. The zero time means the entity carries
// no usable timestamp and always loses a recency comparison.
func (e Entity) Timestamp() time.Time {
	if ts, ok := e.UpdatedAt(); ok {
		return ts
	}
	if ts, ok := e.CreatedAt(); ok {
		return ts
	}
	return time.Time{}
}

// NewerThan reports whether e is strictly more recent than other.
func (e Entity) NewerThan(other Entity) bool {
	return e.Timestamp().After(other.Timestamp())
}

func (e Entity) timeField(key string) (time.Time, bool) {
	v, ok := e[key]
	if !ok {
		return time.Time{}, false
	}
	switch ts := v.(type) {
	case string:
		parsed, err := time.Parse(time.RFC3339Nano, ts)
		if err != nil {
			return time.Time{}, false
		}
		return parsed, true
	case time.Time:
		return ts, true
	}
	return time.Time{}, false
}

// Clone returns a deep copy of the entity. Nested maps and slices from
// JSON decoding are copied; callers may mutate the result freely.
func (e Entity) Clone() Entity {
	if e == nil {
		return nil
	}
	return cloneMap(e)
}

// Equal reports deep equality with another entity.
func (e Entity) Equal(other Entity) bool {
	return reflect.DeepEqual(e, other)
}

func cloneMap(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v any) any {
	switch val := v.(type) {
	case map[string]any:
		return cloneMap(val)
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = cloneValue(item)
		}
		return out
	default:
		return val
	}
}
