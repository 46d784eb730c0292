package memstore

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/markdave123-py/ragdesk/internal/core"
	"github.com/markdave123-py/ragdesk/internal/models"
)

func TestReplaceFileChunksSwapsSet(t *testing.T) {
	ctx := context.Background()
	s := New()
	require.NoError(t, s.CreateFile(ctx, &models.UploadedFile{ID: "f1", UserID: "u1", Name: "a.txt"}))

	first := []models.FileChunk{{ID: "c1", FileID: "f1", Position: 0, TokenCount: 3}, {ID: "c2", FileID: "f1", Position: 1, TokenCount: 4}}
	require.NoError(t, s.ReplaceFileChunks(ctx, "f1", first, 7))
	second := []models.FileChunk{{ID: "c3", FileID: "f1", Position: 0, TokenCount: 5}}
	require.NoError(t, s.ReplaceFileChunks(ctx, "f1", second, 5))

	chunks, err := s.GetChunksByFile(ctx, "f1")
	require.NoError(t, err)
	require.Len(t, chunks, 1)
	assert.Equal(t, "c3", chunks[0].ID)

	f, err := s.GetFileMetadata(ctx, "f1")
	require.NoError(t, err)
	assert.Equal(t, 5, f.Tokens)
	assert.Equal(t, models.FileStatusReady, f.Status)
	assert.Equal(t, 2, s.Replaces())
}

func TestReplaceFileChunksCancelledWritesNothing(t *testing.T) {
	s := New()
	require.NoError(t, s.CreateFile(context.Background(), &models.UploadedFile{ID: "f1"}))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := s.ReplaceFileChunks(ctx, "f1", []models.FileChunk{{ID: "c1"}}, 1)
	assert.ErrorIs(t, err, core.ErrStorage)
	chunks, _ := s.GetChunksByFile(context.Background(), "f1")
	assert.Empty(t, chunks)
}

func TestDeleteFileCascades(t *testing.T) {
	ctx := context.Background()
	s := New()
	require.NoError(t, s.CreateFile(ctx, &models.UploadedFile{ID: "f1"}))
	require.NoError(t, s.ReplaceFileChunks(ctx, "f1", []models.FileChunk{{ID: "c1"}}, 1))

	require.NoError(t, s.DeleteFile(ctx, "f1"))
	_, err := s.GetFileMetadata(ctx, "f1")
	assert.ErrorIs(t, err, core.ErrNotFound)
	chunks, _ := s.GetChunksByFile(ctx, "f1")
	assert.Empty(t, chunks)
}

func TestSearchFiltersByProvider(t *testing.T) {
	ctx := context.Background()
	s := New()
	require.NoError(t, s.CreateFile(ctx, &models.UploadedFile{ID: "f1"}))
	require.NoError(t, s.ReplaceFileChunks(ctx, "f1", []models.FileChunk{
		{ID: "near", Provider: "hosted:a", Embedding: []float32{1, 0}},
		{ID: "far", Provider: "hosted:a", Embedding: []float32{5, 5}},
		{ID: "other-space", Provider: "hosted:b", Embedding: []float32{1, 0}},
	}, 3))

	got, err := s.SearchFileChunks(ctx, "f1", "hosted:a", []float32{1, 0}, 5)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "near", got[0].ID)
	assert.Equal(t, "far", got[1].ID)
}

func TestSettingsDefaultToEmpty(t *testing.T) {
	s := New()
	st, err := s.GetUserSettings(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, "u1", st.UserID)
	assert.Empty(t, st.OpenAIAPIKey)
}

func TestObjectsRoundTrip(t *testing.T) {
	ctx := context.Background()
	o := NewObjects()
	url, err := o.UploadFile(ctx, "bucket", "u1/f1/a.txt", strings.NewReader("hello"), "text/plain")
	require.NoError(t, err)
	assert.Equal(t, "s3://bucket/u1/f1/a.txt", url)

	b, err := o.GetFile(ctx, "bucket", "u1/f1/a.txt")
	require.NoError(t, err)
	assert.Equal(t, "hello", string(b))

	require.NoError(t, o.DeleteFile(ctx, "bucket", "u1/f1/a.txt"))
	_, err = o.GetFile(ctx, "bucket", "u1/f1/a.txt")
	assert.ErrorIs(t, err, core.ErrNotFound)
}

func TestCreateUserRejectsDuplicateEmail(t *testing.T) {
	ctx := context.Background()
	s := New()
	require.NoError(t, s.CreateUser(ctx, &models.User{ID: "u1", Email: "ada@example.com"}))

	err := s.CreateUser(ctx, &models.User{ID: "u2", Email: "ada@example.com"})
	assert.ErrorIs(t, err, core.ErrInvalidRequest)
}
