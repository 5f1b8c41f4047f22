package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Arashek/ADE-stable-1.0-sub004/models"
	"github.com/Arashek/ADE-stable-1.0-sub004/repositories"
)

func testRecord() *models.ProviderRecord {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	return &models.ProviderRecord{
		ID:                  uuid.New(),
		InstanceID:          "inst-abc123",
		Type:                "openai",
		EncryptedCredential: "enc:abcdef",
		ModelMap:            map[string]string{"chat": "gpt-4o"},
		DefaultParameters:   map[string]interface{}{"temperature": 0.2},
		CapabilityScores:    map[string]float64{"chat": 0.95},
		CreatedAt:           now,
		UpdatedAt:           now,
	}
}

func providerRows(record *models.ProviderRecord) *sqlmock.Rows {
	return sqlmock.NewRows([]string{
		"id", "instance_id", "provider_type", "encrypted_credential",
		"model_map", "default_parameters", "capability_scores",
		"created_at", "updated_at",
	}).AddRow(
		record.ID, record.InstanceID, record.Type, record.EncryptedCredential,
		[]byte(`{"chat":"gpt-4o"}`), []byte(`{"temperature":0.2}`), []byte(`{"chat":0.95}`),
		record.CreatedAt, record.UpdatedAt,
	)
}

func TestProviderRepository_Create(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := NewProviderRepository(db, zap.NewNop())
	record := testRecord()

	mock.ExpectExec("INSERT INTO providers").
		WithArgs(record.ID, record.InstanceID, record.Type, record.EncryptedCredential,
			sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(),
			record.CreatedAt, record.UpdatedAt).
		WillReturnResult(sqlmock.NewResult(1, 1))

	err = repo.Create(context.Background(), record)
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestProviderRepository_GetByID(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := NewProviderRepository(db, zap.NewNop())
	record := testRecord()

	t.Run("found", func(t *testing.T) {
		mock.ExpectQuery("SELECT (.+) FROM providers").
			WithArgs(record.ID).
			WillReturnRows(providerRows(record))

		got, err := repo.GetByID(context.Background(), record.ID)
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, record.InstanceID, got.InstanceID)
		assert.Equal(t, "gpt-4o", got.ModelMap["chat"])
		assert.Equal(t, 0.95, got.CapabilityScores["chat"])
	})

	t.Run("miss returns nil without error", func(t *testing.T) {
		missing := uuid.New()
		mock.ExpectQuery("SELECT (.+) FROM providers").
			WithArgs(missing).
			WillReturnRows(sqlmock.NewRows([]string{"id"}))

		got, err := repo.GetByID(context.Background(), missing)
		assert.NoError(t, err)
		assert.Nil(t, got)
	})

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestProviderRepository_List(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := NewProviderRepository(db, zap.NewNop())
	record := testRecord()

	t.Run("filter by type", func(t *testing.T) {
		mock.ExpectQuery("SELECT (.+) FROM providers").
			WithArgs("openai").
			WillReturnRows(providerRows(record))

		records, err := repo.List(context.Background(), repositories.ProviderFilter{Type: "openai"})
		require.NoError(t, err)
		require.Len(t, records, 1)
		assert.Equal(t, "openai", records[0].Type)
	})

	t.Run("capability filter applied in memory", func(t *testing.T) {
		mock.ExpectQuery("SELECT (.+) FROM providers").
			WillReturnRows(providerRows(record))

		records, err := repo.List(context.Background(), repositories.ProviderFilter{Capability: "vision"})
		require.NoError(t, err)
		assert.Empty(t, records)
	})

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestProviderRepository_Update(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := NewProviderRepository(db, zap.NewNop())
	record := testRecord()

	t.Run("existing row", func(t *testing.T) {
		mock.ExpectExec("UPDATE providers").
			WithArgs(record.ID, record.Type, record.EncryptedCredential,
				sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), record.UpdatedAt).
			WillReturnResult(sqlmock.NewResult(0, 1))

		assert.NoError(t, repo.Update(context.Background(), record.ID, record))
	})

	t.Run("missing row", func(t *testing.T) {
		mock.ExpectExec("UPDATE providers").
			WillReturnResult(sqlmock.NewResult(0, 0))

		err := repo.Update(context.Background(), record.ID, record)
		assert.ErrorContains(t, err, "not found")
	})

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestProviderRepository_Delete(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := NewProviderRepository(db, zap.NewNop())
	id := uuid.New()

	mock.ExpectExec("DELETE FROM providers").
		WithArgs(id).
		WillReturnResult(sqlmock.NewResult(0, 1))

	assert.NoError(t, repo.Delete(context.Background(), id))
	assert.NoError(t, mock.ExpectationsWereMet())
}
