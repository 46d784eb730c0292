package ingestion_engine

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/markdave123-py/ragdesk/internal/core"
	"github.com/markdave123-py/ragdesk/internal/core/embedding"
	"github.com/markdave123-py/ragdesk/internal/core/extractors"
	objectclient "github.com/markdave123-py/ragdesk/internal/core/object-client"
	"github.com/markdave123-py/ragdesk/internal/core/textsplitter"
	"github.com/markdave123-py/ragdesk/internal/logger"
	"github.com/markdave123-py/ragdesk/internal/models"
)

// DocumentIngestor orchestrates one ingestion run:
//
// db:        file metadata, user settings and the chunk set.
// obj:       blob storage holding the raw upload.
// docs:      preferred extraction path for rich formats.
// local:     built-in extractors, also the fallback for docs.
// embedder:  embedding provider, called once per run.
// cfg:       timeouts and credential defaults.
type DocumentIngestor struct {
	db       core.DbClient
	obj      core.ObjectClient
	docs     core.DocumentService
	local    *extractors.Registry
	embedder core.EmbeddingProvider
	cfg      *IngestConfig
}

func NewDocumentIngestor(
	db core.DbClient,
	obj core.ObjectClient,
	docs core.DocumentService,
	local *extractors.Registry,
	embedder core.EmbeddingProvider,
	cfg *IngestConfig,
) *DocumentIngestor {
	return &DocumentIngestor{db: db, obj: obj, docs: docs, local: local, embedder: embedder, cfg: cfg}
}

// plan is everything validation settles before any extraction work.
type plan struct {
	file       *models.UploadedFile
	ext        string
	raw        []byte
	embed      core.EmbeddingConfig
	docKey     string
	usePrimary bool
	hasLocal   bool
}

// run tracks the states one ingestion passes through.
type run struct {
	states []State
	log    *zap.Logger
}

func (r *run) enter(s State) {
	r.states = append(r.states, s)
	r.log.Debug("ingestion state", zap.String("state", string(s)))
}

func (r *run) fail(s State, err error) error {
	r.states = append(r.states, StateFailed)
	return &Failure{State: s, Err: err}
}

// Ingest extracts, embeds and persists one file. The file's chunk set is
// either fully replaced or left untouched.
func (i *DocumentIngestor) Ingest(ctx context.Context, req Request) (*Result, error) {
	if req.Provider == "" {
		req.Provider = core.ProviderHosted
	}
	r := &run{log: logger.FromContext(ctx).With(zap.String("file_id", req.FileID), zap.String("provider", req.Provider))}

	r.enter(StateValidating)
	p, err := i.validate(ctx, req)
	if err != nil {
		return nil, r.fail(StateValidating, err)
	}

	if err := i.db.UpdateFileStatus(ctx, p.file.ID, models.FileStatusProcessing); err != nil {
		return nil, r.fail(StateValidating, err)
	}

	res, state, err := i.process(ctx, r, p)
	if err != nil {
		i.markFailed(ctx, r, p.file.ID)
		return nil, r.fail(state, err)
	}

	r.enter(StateDone)
	res.States = r.states
	r.log.Info("ingestion complete",
		zap.Int("chunks", res.ChunkCount),
		zap.Int("tokens", res.TokenTotal),
		zap.String("path", string(res.Path)))
	return res, nil
}

// validate checks the request and loads what the run needs. Nothing is
// mutated before it returns.
func (i *DocumentIngestor) validate(ctx context.Context, req Request) (*plan, error) {
	if req.FileID == "" {
		return nil, fmt.Errorf("%w: file id is required", core.ErrInvalidRequest)
	}
	switch req.Provider {
	case core.ProviderHosted:
	case core.ProviderLocal:
		return nil, fmt.Errorf("%w: local embeddings are not available in this deployment, use %q",
			core.ErrNotSupported, core.ProviderHosted)
	default:
		return nil, fmt.Errorf("%w: unknown embedding provider %q", core.ErrInvalidRequest, req.Provider)
	}

	file, err := i.db.GetFileMetadata(ctx, req.FileID)
	if err != nil {
		return nil, err
	}
	if file.UserID != req.UserID {
		return nil, fmt.Errorf("%w: file %s belongs to another user", core.ErrUnauthorized, file.ID)
	}

	settings, err := i.db.GetUserSettings(ctx, file.UserID)
	if err != nil {
		return nil, err
	}
	embedCfg, err := embedding.Resolve(req.Provider, settings, i.cfg.Embedding)
	if err != nil {
		return nil, err
	}

	p := &plan{file: file, ext: fileExt(file), embed: embedCfg, docKey: settings.DocumentServiceKey}
	if p.docKey == "" {
		p.docKey = i.cfg.DocServiceKey
	}
	p.usePrimary = i.docs != nil && p.docKey != "" && i.docs.Supports(p.ext)
	_, p.hasLocal = i.local.Lookup(p.ext)
	if !p.usePrimary && !p.hasLocal {
		return nil, fmt.Errorf("%w: %q files cannot be ingested", core.ErrUnsupportedFormat, p.ext)
	}

	bucket, key, err := objectclient.ParseLocator(file.StorageURL)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", core.ErrStorage, err)
	}
	if p.raw, err = i.obj.GetFile(ctx, bucket, key); err != nil {
		if !errors.Is(err, core.ErrNotFound) && !errors.Is(err, core.ErrStorage) {
			err = fmt.Errorf("%w: %v", core.ErrStorage, err)
		}
		return nil, err
	}
	return p, nil
}

// process runs extraction, embedding and persistence in order. On failure it
// reports the state that failed.
func (i *DocumentIngestor) process(ctx context.Context, r *run, p *plan) (*Result, State, error) {
	res := &Result{FileID: p.file.ID, Provider: p.embed.Tag()}

	chunks, state, err := i.extract(ctx, r, p, res)
	if err != nil {
		return nil, state, err
	}
	if len(chunks) == 0 {
		return nil, state, fmt.Errorf("%w: no text found in %s", core.ErrExtractionFailed, p.file.Name)
	}

	r.enter(StateEmbedding)
	texts := make([]string, len(chunks))
	for k, c := range chunks {
		texts[k] = c.Text
	}
	embedCtx, cancel := withTimeout(ctx, i.cfg.EmbedTimeout)
	vectors, err := i.embedder.EmbedBatch(embedCtx, texts, p.embed)
	cancel()
	if err != nil {
		if !errors.Is(err, core.ErrEmbeddingFailed) && !errors.Is(err, core.ErrMissingCredentials) {
			err = fmt.Errorf("%w: %v", core.ErrEmbeddingFailed, err)
		}
		return nil, StateEmbedding, err
	}
	if len(vectors) != len(chunks) {
		return nil, StateEmbedding, fmt.Errorf("%w: got %d vectors for %d chunks",
			core.ErrEmbeddingFailed, len(vectors), len(chunks))
	}

	r.enter(StatePersisting)
	if err := ctx.Err(); err != nil {
		return nil, StatePersisting, fmt.Errorf("run cancelled before persisting: %w", err)
	}
	rows := make([]models.FileChunk, len(chunks))
	total := 0
	for k, c := range chunks {
		rows[k] = models.FileChunk{
			ID:         uuid.NewString(),
			FileID:     p.file.ID,
			UserID:     p.file.UserID,
			Position:   k,
			Content:    c.Text,
			TokenCount: c.Tokens,
			Embedding:  vectors[k],
			Provider:   res.Provider,
		}
		total += c.Tokens
	}
	if err := i.db.ReplaceFileChunks(ctx, p.file.ID, rows, total); err != nil {
		return nil, StatePersisting, err
	}

	res.ChunkCount = len(rows)
	res.TokenTotal = total
	return res, StateDone, nil
}

// extract tries the document service first when the plan allows it and falls
// back to the local extractor on any of its errors.
func (i *DocumentIngestor) extract(ctx context.Context, r *run, p *plan, res *Result) ([]textsplitter.Chunk, State, error) {
	if p.usePrimary {
		r.enter(StateExtractingPrimary)
		docCtx, cancel := withTimeout(ctx, i.cfg.ExtractTimeout)
		chunks, err := i.docs.Extract(docCtx, p.raw, p.ext, p.docKey)
		cancel()
		if err == nil && len(chunks) > 0 {
			res.Path = PathPrimary
			return chunks, StateExtractingPrimary, nil
		}
		if err == nil {
			err = errors.New("document service returned no chunks")
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, StateExtractingPrimary, fmt.Errorf("%w: %v", core.ErrExtractionFailed, ctxErr)
		}
		if !p.hasLocal {
			return nil, StateExtractingPrimary, fmt.Errorf("%w: %v", core.ErrExtractionFailed, err)
		}
		r.log.Warn("document service failed, using local extractor",
			zap.String("ext", p.ext), zap.Error(err))
		res.Path = PathFallback
		res.FallbackReason = err.Error()
		r.enter(StateExtractingFallback)
		chunks, err = i.extractLocal(ctx, p)
		return chunks, StateExtractingFallback, err
	}

	res.Path = PathLocal
	r.enter(StateExtractingPrimary)
	chunks, err := i.extractLocal(ctx, p)
	return chunks, StateExtractingPrimary, err
}

func (i *DocumentIngestor) extractLocal(ctx context.Context, p *plan) ([]textsplitter.Chunk, error) {
	chunks, err := i.local.Extract(ctx, p.ext, p.raw)
	if err != nil && !errors.Is(err, core.ErrExtractionFailed) && !errors.Is(err, core.ErrUnsupportedFormat) {
		err = fmt.Errorf("%w: %v", core.ErrExtractionFailed, err)
	}
	return chunks, err
}

// markFailed records the failure even when ctx is already cancelled. A file
// that still holds a committed chunk set from an earlier run goes back to ready.
func (i *DocumentIngestor) markFailed(ctx context.Context, r *run, fileID string) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()

	status := models.FileStatusFailed
	if f, err := i.db.GetFileMetadata(ctx, fileID); err == nil && f.HasChunks() {
		status = models.FileStatusReady
		r.log.Warn("ingestion failed, previous chunk set kept", zap.Int("tokens", f.Tokens))
	}
	if err := i.db.UpdateFileStatus(ctx, fileID, status); err != nil {
		r.log.Error("could not record failed ingestion", zap.String("status", status), zap.Error(err))
	}
}

func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}

// fileExt prefers the extension of the display name and falls back to a
// declared type such as "pdf" or "application/pdf".
func fileExt(f *models.UploadedFile) string {
	if ext := extractors.Ext(f.Name); ext != "" {
		return ext
	}
	t := strings.ToLower(strings.TrimSpace(f.Type))
	if k := strings.LastIndex(t, "/"); k >= 0 {
		t = t[k+1:]
	}
	switch t = strings.TrimPrefix(t, "."); t {
	case "plain":
		return "txt"
	case "markdown":
		return "md"
	case "vnd.openxmlformats-officedocument.wordprocessingml.document":
		return "docx"
	}
	return t
}
