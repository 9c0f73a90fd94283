// Package conflict provides conflict resolution for concurrent edits
// discovered while reconciling pulled entities against local state.
package conflict

import (
	"reflect"

	"github.com/planhub/core/internal/logging"
	"github.com/planhub/core/internal/models"
	"github.com/planhub/core/internal/sync/scheduler"
)

// StrategyKind names a resolution strategy.
type StrategyKind string

const (
	StrategyLastWriteWins StrategyKind = "last_write_wins"
	StrategyFieldMerge    StrategyKind = "field_merge"
	StrategyManual        StrategyKind = "manual"
)

// DecideFunc picks the resolved entity for a conflict under the manual
// strategy. Returning ok=false defers to last-write-wins.
type DecideFunc func(models.Conflict) (models.Entity, bool)

// Strategy selects how detected conflicts are resolved. Construct it with
// LastWriteWins, FieldMerge, or Manual.
type Strategy struct {
	kind   StrategyKind
	decide DecideFunc
}

// LastWriteWins keeps the server copy and annotates it for audit.
func LastWriteWins() Strategy {
	return Strategy{kind: StrategyLastWriteWins}
}

// FieldMerge keeps the server copy for conflicting fields and carries
// over local values everywhere else.
func FieldMerge() Strategy {
	return Strategy{kind: StrategyFieldMerge}
}

// Manual defers each conflict to decide, falling back to last-write-wins
// when decide is nil or declines.
func Manual(decide DecideFunc) Strategy {
	return Strategy{kind: StrategyManual, decide: decide}
}

// Kind returns the strategy's tag.
func (s Strategy) Kind() StrategyKind {
	if s.kind == "" {
		return StrategyLastWriteWins
	}
	return s.kind
}

// DefaultAllowList is the field set inspected for conflicting values when
// a resource type configures nothing narrower.
func DefaultAllowList() []string {
	return []string{"name", "description", "status", "priority", "updated_at"}
}

// Config holds resolver construction parameters.
type Config struct {
	Strategy Strategy
	Clock    scheduler.Clock
	Logger   *logging.Logger
}

// Resolver detects and resolves concurrent-edit conflicts. Resolution is
// deterministic for a given strategy and input pair.
type Resolver struct {
	strategy Strategy
	clock    scheduler.Clock
	log      *logging.Logger
}

// New creates a Resolver. The zero Strategy means last-write-wins.
func New(cfg Config) *Resolver {
	if cfg.Clock == nil {
		cfg.Clock = scheduler.System()
	}
	if cfg.Logger == nil {
		cfg.Logger = logging.Get()
	}
	return &Resolver{
		strategy: cfg.Strategy,
		clock:    cfg.Clock,
		log:      cfg.Logger.WithComponent("conflict"),
	}
}

// Strategy returns the configured strategy.
func (r *Resolver) Strategy() Strategy {
	return r.strategy
}

// Detect reports whether applying remote over local is a concurrent-edit
// conflict: both sides exist under the same id and the local copy is
// strictly newer than the incoming one. An equal timestamp is not a
// conflict; the remote copy simply applies. Conflicting fields are
// computed over the allow list only.
func (r *Resolver) Detect(rt models.ResourceType, local, remote models.Entity, allowList []string) (models.Conflict, bool) {
	if local == nil || remote == nil {
		return models.Conflict{}, false
	}
	if local.ID() == "" || local.ID() != remote.ID() {
		return models.Conflict{}, false
	}
	if !local.NewerThan(remote) {
		return models.Conflict{}, false
	}

	if len(allowList) == 0 {
		allowList = DefaultAllowList()
	}
	var fields []string
	for _, field := range allowList {
		if !reflect.DeepEqual(local[field], remote[field]) {
			fields = append(fields, field)
		}
	}

	conflict := models.Conflict{
		ResourceType: rt,
		Local:        local.Clone(),
		Remote:       remote.Clone(),
		Fields:       fields,
		DetectedAt:   r.clock.Now(),
	}

	r.log.Warn("concurrent edit conflict detected", map[string]interface{}{
		"resource_type":    string(rt),
		"entity_id":        local.ID(),
		"local_timestamp":  local.Timestamp(),
		"remote_timestamp": remote.Timestamp(),
		"fields":           fields,
	})

	return conflict, true
}

// Resolve picks the surviving entity for a conflict. It never fails:
// every strategy yields a usable entity, annotated for audit with
// conflict_resolved and the overwritten local timestamp.
func (r *Resolver) Resolve(conflict models.Conflict) models.Entity {
	var resolved models.Entity
	strategy := r.strategy.Kind()

	switch strategy {
	case StrategyFieldMerge:
		resolved = r.fieldMerge(conflict)
	case StrategyManual:
		if r.strategy.decide != nil {
			if chosen, ok := r.strategy.decide(conflict); ok && chosen != nil {
				resolved = chosen.Clone()
				break
			}
		}
		strategy = StrategyLastWriteWins
		resolved = r.lastWriteWins(conflict)
	default:
		resolved = r.lastWriteWins(conflict)
	}

	annotate(resolved, conflict)

	r.log.Info("conflict resolved", map[string]interface{}{
		"resource_type": string(conflict.ResourceType),
		"entity_id":     conflict.EntityID(),
		"strategy":      string(strategy),
		"fields":        conflict.Fields,
	})

	return resolved
}

// lastWriteWins keeps the server copy. The local edit was concurrent with
// a remote one the server already accepted; the server stays the source
// of truth and the annotation preserves visibility of the overwrite.
func (r *Resolver) lastWriteWins(conflict models.Conflict) models.Entity {
	return conflict.Remote.Clone()
}

// fieldMerge starts from the server copy, keeps it for every conflicting
// field, and carries over local values for the rest, so local-only edits
// outside the allow list survive.
func (r *Resolver) fieldMerge(conflict models.Conflict) models.Entity {
	merged := conflict.Remote.Clone()
	local := conflict.Local.Clone()
	conflicting := make(map[string]bool, len(conflict.Fields))
	for _, field := range conflict.Fields {
		conflicting[field] = true
	}
	for field, value := range local {
		if conflicting[field] {
			continue
		}
		merged[field] = value
	}
	return merged
}

// annotate marks a resolution so consumers can surface it.
func annotate(resolved models.Entity, conflict models.Conflict) {
	if resolved == nil {
		return
	}
	resolved["conflict_resolved"] = true
	if v, ok := conflict.Local["updated_at"]; ok {
		resolved["conflict_local_updated_at"] = v
	}
}
