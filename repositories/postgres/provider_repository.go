// Package postgres implements the provider store on PostgreSQL.
package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	_ "github.com/lib/pq"
	"go.uber.org/zap"

	"github.com/Arashek/ADE-stable-1.0-sub004/models"
	"github.com/Arashek/ADE-stable-1.0-sub004/repositories"
)

// ProviderRepository implements repositories.ProviderStore on PostgreSQL.
// Map-valued columns (model_map, default_parameters, capability_scores)
// are stored as JSONB.
type ProviderRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewProviderRepository creates a provider repository
func NewProviderRepository(db *sql.DB, logger *zap.Logger) *ProviderRepository {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ProviderRepository{db: db, logger: logger}
}

const providerColumns = `id, instance_id, provider_type, encrypted_credential, model_map, default_parameters, capability_scores, created_at, updated_at`

// Create inserts a new provider record
func (r *ProviderRepository) Create(ctx context.Context, record *models.ProviderRecord) error {
	query := `
		INSERT INTO providers (` + providerColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`

	modelMap, defaults, scores, err := marshalMaps(record)
	if err != nil {
		return err
	}

	_, err = r.db.ExecContext(ctx, query,
		record.ID,
		record.InstanceID,
		record.Type,
		record.EncryptedCredential,
		modelMap,
		defaults,
		scores,
		record.CreatedAt,
		record.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create provider record: %w", err)
	}

	r.logger.Debug("provider record created", zap.String("id", record.ID.String()))
	return nil
}

// GetByID retrieves a provider record, returning nil without error on miss
func (r *ProviderRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.ProviderRecord, error) {
	query := `
		SELECT ` + providerColumns + `
		FROM providers
		WHERE id = $1
	`

	record, err := scanProvider(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get provider record: %w", err)
	}
	return record, nil
}

// List returns records matching the filter
func (r *ProviderRepository) List(ctx context.Context, filter repositories.ProviderFilter) ([]*models.ProviderRecord, error) {
	query := `
		SELECT ` + providerColumns + `
		FROM providers
	`
	args := []interface{}{}
	if filter.Type != "" {
		query += ` WHERE provider_type = $1`
		args = append(args, filter.Type)
	}
	query += ` ORDER BY created_at`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list provider records: %w", err)
	}
	defer rows.Close()

	var records []*models.ProviderRecord
	for rows.Next() {
		record, err := scanProvider(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan provider record: %w", err)
		}
		if filter.Capability != "" {
			if _, ok := record.CapabilityScores[filter.Capability]; !ok {
				continue
			}
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate provider records: %w", err)
	}
	return records, nil
}

// Update replaces an existing record
func (r *ProviderRepository) Update(ctx context.Context, id uuid.UUID, record *models.ProviderRecord) error {
	query := `
		UPDATE providers
		SET provider_type = $2, encrypted_credential = $3, model_map = $4,
			default_parameters = $5, capability_scores = $6, updated_at = $7
		WHERE id = $1
	`

	modelMap, defaults, scores, err := marshalMaps(record)
	if err != nil {
		return err
	}

	result, err := r.db.ExecContext(ctx, query,
		id,
		record.Type,
		record.EncryptedCredential,
		modelMap,
		defaults,
		scores,
		record.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to update provider record: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check update result: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("provider record not found: %s", id)
	}
	return nil
}

// Delete removes a record
func (r *ProviderRepository) Delete(ctx context.Context, id uuid.UUID) error {
	query := `DELETE FROM providers WHERE id = $1`

	if _, err := r.db.ExecContext(ctx, query, id); err != nil {
		return fmt.Errorf("failed to delete provider record: %w", err)
	}
	r.logger.Debug("provider record deleted", zap.String("id", id.String()))
	return nil
}

// rowScanner covers both *sql.Row and *sql.Rows
type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanProvider(row rowScanner) (*models.ProviderRecord, error) {
	record := &models.ProviderRecord{}
	var modelMap, defaults, scores []byte

	err := row.Scan(
		&record.ID,
		&record.InstanceID,
		&record.Type,
		&record.EncryptedCredential,
		&modelMap,
		&defaults,
		&scores,
		&record.CreatedAt,
		&record.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal(modelMap, &record.ModelMap); err != nil {
		return nil, fmt.Errorf("failed to decode model_map: %w", err)
	}
	if err := json.Unmarshal(defaults, &record.DefaultParameters); err != nil {
		return nil, fmt.Errorf("failed to decode default_parameters: %w", err)
	}
	if err := json.Unmarshal(scores, &record.CapabilityScores); err != nil {
		return nil, fmt.Errorf("failed to decode capability_scores: %w", err)
	}
	return record, nil
}

func marshalMaps(record *models.ProviderRecord) (modelMap, defaults, scores []byte, err error) {
	if modelMap, err = json.Marshal(record.ModelMap); err != nil {
		return nil, nil, nil, fmt.Errorf("failed to encode model_map: %w", err)
	}
	if defaults, err = json.Marshal(record.DefaultParameters); err != nil {
		return nil, nil, nil, fmt.Errorf("failed to encode default_parameters: %w", err)
	}
	if scores, err = json.Marshal(record.CapabilityScores); err != nil {
		return nil, nil, nil, fmt.Errorf("failed to encode capability_scores: %w", err)
	}
	return modelMap, defaults, scores, nil
}
