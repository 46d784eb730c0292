// Package memstore is an in-process twin of the Postgres gateway and the S3
// client, used by tests and by `serve --memory` for local runs.
package memstore

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/markdave123-py/ragdesk/internal/core"
	"github.com/markdave123-py/ragdesk/internal/models"
)

type Store struct {
	mu       sync.RWMutex
	users    map[string]*models.User // by email
	files    map[string]*models.UploadedFile
	chunks   map[string][]models.FileChunk // by file id
	settings map[string]*models.UserSettings

	// replaces counts ReplaceFileChunks commits, for tests
	replaces int
}

func New() *Store {
	return &Store{
		users:    map[string]*models.User{},
		files:    map[string]*models.UploadedFile{},
		chunks:   map[string][]models.FileChunk{},
		settings: map[string]*models.UserSettings{},
	}
}

func (s *Store) CreateUser(ctx context.Context, user *models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[user.Email]; ok {
		return fmt.Errorf("%w: user %s already exists", core.ErrInvalidRequest, user.Email)
	}
	u := *user
	s.users[user.Email] = &u
	return nil
}

func (s *Store) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[email]
	if !ok {
		return nil, fmt.Errorf("%w: user %s", core.ErrNotFound, email)
	}
	cp := *u
	return &cp, nil
}

func (s *Store) CreateFile(ctx context.Context, file *models.UploadedFile) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.files[file.ID]; ok {
		return fmt.Errorf("%w: file %s already exists", core.ErrStorage, file.ID)
	}
	f := *file
	now := time.Now()
	if f.CreatedAt.IsZero() {
		f.CreatedAt = now
	}
	f.UpdatedAt = now
	s.files[f.ID] = &f
	return nil
}

func (s *Store) GetFileMetadata(ctx context.Context, id string) (*models.UploadedFile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	f, ok := s.files[id]
	if !ok {
		return nil, fmt.Errorf("%w: file %s", core.ErrNotFound, id)
	}
	cp := *f
	return &cp, nil
}

func (s *Store) ListFilesByUser(ctx context.Context, userID string) ([]models.UploadedFile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []models.UploadedFile
	for _, f := range s.files {
		if f.UserID == userID {
			out = append(out, *f)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (s *Store) UpdateFileStatus(ctx context.Context, id string, status string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	f, ok := s.files[id]
	if !ok {
		return fmt.Errorf("%w: file %s", core.ErrNotFound, id)
	}
	f.Status = status
	f.UpdatedAt = time.Now()
	return nil
}

func (s *Store) DeleteFile(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.files[id]; !ok {
		return fmt.Errorf("%w: file %s", core.ErrNotFound, id)
	}
	delete(s.files, id)
	delete(s.chunks, id)
	return nil
}

func (s *Store) ReplaceFileChunks(ctx context.Context, fileID string, chunks []models.FileChunk, tokenTotal int) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %v", core.ErrStorage, err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	f, ok := s.files[fileID]
	if !ok {
		return fmt.Errorf("%w: file %s", core.ErrNotFound, fileID)
	}
	set := make([]models.FileChunk, len(chunks))
	copy(set, chunks)
	s.chunks[fileID] = set
	f.Tokens = tokenTotal
	f.Status = models.FileStatusReady
	f.UpdatedAt = time.Now()
	s.replaces++
	return nil
}

func (s *Store) GetChunksByFile(ctx context.Context, fileID string) ([]models.FileChunk, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.FileChunk, len(s.chunks[fileID]))
	copy(out, s.chunks[fileID])
	sort.Slice(out, func(i, j int) bool { return out[i].Position < out[j].Position })
	return out, nil
}

// SearchFileChunks ranks by euclidean distance, like pgvector's <-> operator.
func (s *Store) SearchFileChunks(ctx context.Context, fileID, provider string, queryVec []float32, limit int) ([]models.FileChunk, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	type scored struct {
		chunk models.FileChunk
		dist  float64
	}
	var candidates []scored
	for _, ch := range s.chunks[fileID] {
		if ch.Provider != provider || len(ch.Embedding) != len(queryVec) {
			continue
		}
		candidates = append(candidates, scored{chunk: ch, dist: l2(ch.Embedding, queryVec)})
	}
	sort.SliceStable(candidates, func(i, j int) bool { return candidates[i].dist < candidates[j].dist })
	if limit > 0 && len(candidates) > limit {
		candidates = candidates[:limit]
	}
	out := make([]models.FileChunk, len(candidates))
	for i, c := range candidates {
		out[i] = c.chunk
	}
	return out, nil
}

func (s *Store) GetUserSettings(ctx context.Context, userID string) (*models.UserSettings, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if st, ok := s.settings[userID]; ok {
		cp := *st
		return &cp, nil
	}
	return &models.UserSettings{UserID: userID}, nil
}

func (s *Store) UpsertUserSettings(ctx context.Context, settings *models.UserSettings) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := *settings
	st.UpdatedAt = time.Now()
	s.settings[st.UserID] = &st
	return nil
}

func (s *Store) Close() error { return nil }

// Replaces reports how many chunk sets have been committed.
func (s *Store) Replaces() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.replaces
}

func l2(a, b []float32) float64 {
	var sum float64
	for i := range a {
		d := float64(a[i]) - float64(b[i])
		sum += d * d
	}
	return math.Sqrt(sum)
}

// Objects is an in-memory object store.
type Objects struct {
	mu      sync.RWMutex
	objects map[string][]byte
}

func NewObjects() *Objects {
	return &Objects{objects: map[string][]byte{}}
}

func (o *Objects) UploadFile(ctx context.Context, bucket, key string, data io.Reader, contentType string) (string, error) {
	b, err := io.ReadAll(data)
	if err != nil {
		return "", fmt.Errorf("read upload: %w", err)
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	o.objects[bucket+"/"+key] = b
	return "s3://" + bucket + "/" + key, nil
}

func (o *Objects) DeleteFile(ctx context.Context, bucket, key string) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	delete(o.objects, bucket+"/"+key)
	return nil
}

func (o *Objects) GetFile(ctx context.Context, bucket, key string) ([]byte, error) {
	o.mu.RLock()
	defer o.mu.RUnlock()
	b, ok := o.objects[bucket+"/"+key]
	if !ok {
		return nil, fmt.Errorf("%w: object %s/%s", core.ErrNotFound, bucket, key)
	}
	return bytes.Clone(b), nil
}

var (
	_ core.DbClient     = (*Store)(nil)
	_ core.ObjectClient = (*Objects)(nil)
)
