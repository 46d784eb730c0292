package core

import (
	"context"
	"io"

	"github.com/markdave123-py/ragdesk/internal/models"
)

// DbClient is the storage gateway. It abstracts Postgres/pgvector so higher layers
// never depend on a specific DB.
type DbClient interface {
	CreateUser(ctx context.Context, user *models.User) error
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)

	CreateFile(ctx context.Context, file *models.UploadedFile) error
	GetFileMetadata(ctx context.Context, id string) (*models.UploadedFile, error)
	ListFilesByUser(ctx context.Context, userID string) ([]models.UploadedFile, error)
	UpdateFileStatus(ctx context.Context, id string, status string) error
	DeleteFile(ctx context.Context, id string) error

	// ReplaceFileChunks swaps the file's chunk set for chunks and records tokenTotal
	// in one transaction: either the full new set is visible or the old one is.
	ReplaceFileChunks(ctx context.Context, fileID string, chunks []models.FileChunk, tokenTotal int) error
	GetChunksByFile(ctx context.Context, fileID string) ([]models.FileChunk, error)
	SearchFileChunks(ctx context.Context, fileID, provider string, queryVec []float32, limit int) ([]models.FileChunk, error)

	GetUserSettings(ctx context.Context, userID string) (*models.UserSettings, error)
	UpsertUserSettings(ctx context.Context, settings *models.UserSettings) error

	Close() error
}

// ObjectClient defines interactions with S3 or any object storage.
type ObjectClient interface {
	UploadFile(ctx context.Context, bucket, key string, data io.Reader, contentType string) (url string, err error)
	DeleteFile(ctx context.Context, bucket, key string) error
	GetFile(ctx context.Context, bucket, key string) ([]byte, error)
}
