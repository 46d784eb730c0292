package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/markdave123-py/ragdesk/internal/core"
	objectclient "github.com/markdave123-py/ragdesk/internal/core/object-client"
	"github.com/markdave123-py/ragdesk/internal/logger"
	"github.com/markdave123-py/ragdesk/internal/models"
)

// DocumentService manages uploaded files: blob plus metadata row.
type DocumentService struct {
	db      core.DbClient
	storage core.ObjectClient
	bucket  string
}

func NewDocumentService(db core.DbClient, storage core.ObjectClient, bucket string) *DocumentService {
	return &DocumentService{db: db, storage: storage, bucket: bucket}
}

// Upload stores data and records the file as uploaded. The token total starts at 0.
func (s *DocumentService) Upload(ctx context.Context, userID, filename, contentType string, data io.Reader, size int64) (*models.UploadedFile, error) {
	filename = strings.TrimSpace(filename)
	if userID == "" || filename == "" {
		return nil, fmt.Errorf("%w: user and file name are required", core.ErrInvalidRequest)
	}
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	fileID := uuid.NewString()
	key := s.objectKey(userID, fileID, filename)
	url, err := s.storage.UploadFile(ctx, s.bucket, key, data, contentType)
	if err != nil {
		return nil, err
	}

	f := &models.UploadedFile{
		ID:         fileID,
		UserID:     userID,
		Name:       filename,
		Size:       size,
		Type:       contentType,
		StorageURL: url,
		Status:     models.FileStatusUploaded,
	}
	if err := s.db.CreateFile(ctx, f); err != nil {
		if derr := s.storage.DeleteFile(ctx, s.bucket, key); derr != nil {
			logger.FromContext(ctx).Warn("orphaned upload", zap.String("key", key), zap.Error(derr))
		}
		return nil, err
	}
	return f, nil
}

// Get returns the file if userID owns it.
func (s *DocumentService) Get(ctx context.Context, userID, fileID string) (*models.UploadedFile, error) {
	f, err := s.db.GetFileMetadata(ctx, fileID)
	if err != nil {
		return nil, err
	}
	if f.UserID != userID {
		return nil, fmt.Errorf("%w: file %s belongs to another user", core.ErrUnauthorized, fileID)
	}
	return f, nil
}

func (s *DocumentService) ListByUser(ctx context.Context, userID string) ([]models.UploadedFile, error) {
	return s.db.ListFilesByUser(ctx, userID)
}

// Delete removes the blob and the file row; chunks cascade with the row.
func (s *DocumentService) Delete(ctx context.Context, userID, fileID string) error {
	f, err := s.Get(ctx, userID, fileID)
	if err != nil {
		return err
	}
	if bucket, key, perr := objectclient.ParseLocator(f.StorageURL); perr == nil {
		if derr := s.storage.DeleteFile(ctx, bucket, key); derr != nil && !errors.Is(derr, core.ErrNotFound) {
			logger.FromContext(ctx).Warn("blob delete failed", zap.String("file_id", fileID), zap.Error(derr))
		}
	} else {
		logger.FromContext(ctx).Warn("unparseable storage url", zap.String("file_id", fileID), zap.Error(perr))
	}
	return s.db.DeleteFile(ctx, fileID)
}

// objectKey creates a consistent S3 key layout.
func (s *DocumentService) objectKey(userID, fileID, filename string) string {
	filename = strings.ReplaceAll(path.Base(filename), " ", "_")
	return path.Join("users", userID, "files", fileID, filename)
}
