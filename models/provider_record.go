package models

import (
	"time"

	"github.com/google/uuid"
)

// ProviderRecord is the persisted form of a registered provider.
// The credential is always stored encrypted; the plaintext credential
// never reaches the repository layer.
type ProviderRecord struct {
	// ID is the record identifier
	ID uuid.UUID `json:"id"`

	// InstanceID is the routing instance this record belongs to
	InstanceID string `json:"instance_id"`

	// Type is the provider type (e.g., "openai", "local")
	Type string `json:"type"`

	// EncryptedCredential is the cipher output for the API credential
	EncryptedCredential string `json:"encrypted_credential"`

	// ModelMap maps logical model names to provider-specific model ids
	ModelMap map[string]string `json:"model_map"`

	// DefaultParameters holds provider default request parameters
	DefaultParameters map[string]interface{} `json:"default_parameters"`

	// CapabilityScores maps capability names to confidence scores in [0,1]
	CapabilityScores map[string]float64 `json:"capability_scores"`

	// CreatedAt is the record creation time
	CreatedAt time.Time `json:"created_at"`

	// UpdatedAt is the last modification time
	UpdatedAt time.Time `json:"updated_at"`
}
