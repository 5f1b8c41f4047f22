// Package repositories defines the persistence interfaces consumed by the
// routing core. Persistence is best-effort read-through caching: the
// in-memory registry remains the source of truth for selection decisions,
// and store failures never abort a routing operation.
package repositories

import (
	"context"

	"github.com/google/uuid"

	"github.com/Arashek/ADE-stable-1.0-sub004/models"
)

// ProviderFilter narrows List results. Zero values match everything.
type ProviderFilter struct {
	// Type restricts results to one provider type
	Type string

	// Capability restricts results to providers declaring the capability
	Capability string
}

// ProviderStore persists provider registrations
type ProviderStore interface {
	// List returns all records matching the filter
	List(ctx context.Context, filter ProviderFilter) ([]*models.ProviderRecord, error)

	// GetByID retrieves a record by id; returns nil without error on miss
	GetByID(ctx context.Context, id uuid.UUID) (*models.ProviderRecord, error)

	// Create inserts a new record
	Create(ctx context.Context, record *models.ProviderRecord) error

	// Update replaces an existing record
	Update(ctx context.Context, id uuid.UUID, record *models.ProviderRecord) error

	// Delete removes a record
	Delete(ctx context.Context, id uuid.UUID) error
}
