package models

import (
	"time"
)

// File lifecycle states.
const (
	FileStatusUploaded   = "uploaded"
	FileStatusProcessing = "processing"
	FileStatusReady      = "ready"
	FileStatusFailed     = "failed"
)

// User represents an authenticated user of the system.
type User struct {
	ID           string    `db:"id" json:"id"`
	FirstName    string    `db:"first_name" json:"first_name"`
	Email        string    `db:"email" json:"email"`
	PasswordHash string    `db:"password" json:"-"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time `db:"updated_at" json:"updated_at"`
}

// UploadedFile is the metadata row created before the content is processed.
type UploadedFile struct {
	ID         string    `db:"id" json:"id"`
	UserID     string    `db:"user_id" json:"user_id"`
	Name       string    `db:"name" json:"name"`
	Size       int64     `db:"size" json:"size"`
	Type       string    `db:"type" json:"type"`               // declared MIME type or extension
	StorageURL string    `db:"storage_url" json:"storage_url"` // blob locator
	Tokens     int       `db:"tokens" json:"tokens"`           // sum of chunk token counts
	Status     string    `db:"status" json:"status"`           // uploaded | processing | ready | failed
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
	UpdatedAt  time.Time `db:"updated_at" json:"updated_at"`
}

// HasChunks reports whether an ingestion run has committed a chunk set for f.
// A committed set is never empty, so its token total is positive.
func (f *UploadedFile) HasChunks() bool { return f.Tokens > 0 }

// FileChunk is one embedded slice of a file's text.
type FileChunk struct {
	ID         string    `db:"id" json:"id"`
	FileID     string    `db:"file_id" json:"file_id"`
	UserID     string    `db:"user_id" json:"user_id"`
	Position   int       `db:"position" json:"position"`
	Content    string    `db:"content" json:"content"`
	TokenCount int       `db:"tokens" json:"tokens"`
	Embedding  []float32 `db:"embedding" json:"-"`       // pgvector column
	Provider   string    `db:"provider" json:"provider"` // embedding space tag
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
}

// UserSettings holds optional per-user credentials. Empty fields fall back to server defaults.
type UserSettings struct {
	UserID              string    `db:"user_id" json:"user_id"`
	DocumentServiceKey  string    `db:"unstructured_api_key" json:"unstructured_api_key,omitempty"`
	OpenAIAPIKey        string    `db:"openai_api_key" json:"openai_api_key,omitempty"`
	UseAzureOpenAI      bool      `db:"use_azure_openai" json:"use_azure_openai"`
	AzureOpenAIAPIKey   string    `db:"azure_openai_api_key" json:"azure_openai_api_key,omitempty"`
	AzureOpenAIEndpoint string    `db:"azure_openai_endpoint" json:"azure_openai_endpoint,omitempty"`
	AzureEmbeddingsID   string    `db:"azure_openai_embeddings_id" json:"azure_openai_embeddings_id,omitempty"`
	UpdatedAt           time.Time `db:"updated_at" json:"updated_at"`
}
