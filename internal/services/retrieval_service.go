package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"go.uber.org/zap"

	"github.com/markdave123-py/ragdesk/internal/core"
	"github.com/markdave123-py/ragdesk/internal/core/embedding"
	"github.com/markdave123-py/ragdesk/internal/logger"
	"github.com/markdave123-py/ragdesk/internal/models"
)

const (
	defaultTopK     = 5
	queryCacheSize  = 1024
	queryCacheTTL   = 15 * time.Minute
	answerSysPrompt = "You answer questions about a user's document. Use only the provided excerpts. " +
		"If the excerpts do not contain the answer, say so."
)

// Answer is the outcome of a retrieval query. Answer is empty when no
// generator is configured; the matching chunks are always returned.
type Answer struct {
	Answer   string             `json:"answer,omitempty"`
	Provider string             `json:"provider"`
	Chunks   []models.FileChunk `json:"chunks"`
}

// RetrievalService embeds a question in the same space as a file's chunks
// and returns the nearest ones, optionally with a generated answer.
type RetrievalService struct {
	db       core.DbClient
	embedder core.EmbeddingProvider
	llm      core.LLMProvider
	defaults embedding.Defaults
	topK     int
	cache    *expirable.LRU[string, []float32]
}

// NewRetrievalService builds the service. llm may be nil.
func NewRetrievalService(db core.DbClient, embedder core.EmbeddingProvider, llm core.LLMProvider, defaults embedding.Defaults) *RetrievalService {
	return &RetrievalService{
		db:       db,
		embedder: embedder,
		llm:      llm,
		defaults: defaults,
		topK:     defaultTopK,
		cache:    expirable.NewLRU[string, []float32](queryCacheSize, nil, queryCacheTTL),
	}
}

func (s *RetrievalService) Query(ctx context.Context, userID, fileID, question, provider string) (*Answer, error) {
	question = strings.TrimSpace(question)
	if fileID == "" || question == "" {
		return nil, fmt.Errorf("%w: file_id and question are required", core.ErrInvalidRequest)
	}
	if provider == "" {
		provider = core.ProviderHosted
	}

	file, err := s.db.GetFileMetadata(ctx, fileID)
	if err != nil {
		return nil, err
	}
	if file.UserID != userID {
		return nil, fmt.Errorf("%w: file %s belongs to another user", core.ErrUnauthorized, fileID)
	}
	// a re-ingest in progress or one that failed keeps the previous chunk set searchable
	if !file.HasChunks() {
		return nil, fmt.Errorf("%w: file %s is %s, ingest it first", core.ErrInvalidRequest, fileID, file.Status)
	}

	settings, err := s.db.GetUserSettings(ctx, userID)
	if err != nil {
		return nil, err
	}
	cfg, err := embedding.Resolve(provider, settings, s.defaults)
	if err != nil {
		return nil, err
	}

	vec, err := s.embedQuestion(ctx, question, cfg)
	if err != nil {
		return nil, err
	}
	chunks, err := s.db.SearchFileChunks(ctx, fileID, cfg.Tag(), vec, s.topK)
	if err != nil {
		return nil, err
	}

	out := &Answer{Provider: cfg.Tag(), Chunks: chunks}
	if s.llm == nil || len(chunks) == 0 {
		return out, nil
	}
	answer, err := s.llm.Generate(ctx, answerSysPrompt, buildPrompt(question, chunks))
	if err != nil {
		// chunks are still useful without the generated answer
		logger.FromContext(ctx).Warn("answer generation failed", zap.String("file_id", fileID), zap.Error(err))
		return out, nil
	}
	out.Answer = answer
	return out, nil
}

func (s *RetrievalService) embedQuestion(ctx context.Context, question string, cfg core.EmbeddingConfig) ([]float32, error) {
	key := cfg.Tag() + "\x00" + question
	if vec, ok := s.cache.Get(key); ok {
		return vec, nil
	}
	vecs, err := s.embedder.EmbedBatch(ctx, []string{question}, cfg)
	if err != nil {
		return nil, err
	}
	if len(vecs) != 1 {
		return nil, fmt.Errorf("%w: got %d vectors for one question", core.ErrEmbeddingFailed, len(vecs))
	}
	s.cache.Add(key, vecs[0])
	return vecs[0], nil
}

func buildPrompt(question string, chunks []models.FileChunk) string {
	var b strings.Builder
	b.WriteString("Excerpts:\n")
	for i, c := range chunks {
		fmt.Fprintf(&b, "\n[%d] %s\n", i+1, strings.TrimSpace(c.Content))
	}
	b.WriteString("\nQuestion: ")
	b.WriteString(question)
	return b.String()
}
