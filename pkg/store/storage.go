package store

import (
	"context"

	"github.com/legitrack/relnet/backend/pkg/common"
)

// EdgeQuery describes a read from the co-occurrence table.
//
// An empty EntityID reads the whole table, otherwise only rows touching that
// entity are returned. A nil MinStrength disables the threshold. Limit <= 0
// means no limit.
type EdgeQuery struct {
	EntityID    string
	MinStrength *float64
	Limit       int
}

// CooccurrenceStore reads the precomputed co-occurrence statistics. Rows are
// returned ordered by relationship strength, strongest first. Rows with equal
// strength keep the natural order of the backend.
type CooccurrenceStore interface {
	Edges(ctx context.Context, q EdgeQuery) ([]common.CooccurrenceEdge, error)
}

// EntityCatalog resolves entity identity records. Unknown ids are absent from
// the result, they are not an error.
type EntityCatalog interface {
	EntitiesByIDs(ctx context.Context, ids []string) ([]common.Entity, error)
}

// Storage bundles both collaborators. Every backend in this module implements
// it.
type Storage interface {
	CooccurrenceStore
	EntityCatalog
	Close(ctx context.Context) error
}

// Threshold is a convenience for building EdgeQuery.MinStrength.
func Threshold(v float64) *float64 {
	return &v
}
