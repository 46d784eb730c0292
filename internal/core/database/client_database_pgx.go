package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/url"
	"os"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pgvector/pgvector-go"
	"go.uber.org/zap"

	"github.com/markdave123-py/ragdesk/internal/config"
	"github.com/markdave123-py/ragdesk/internal/core"
	"github.com/markdave123-py/ragdesk/internal/logger"
	"github.com/markdave123-py/ragdesk/internal/models"
)

type DatabaseClient struct {
	db *sql.DB
}

func NewDatabaseClient(ctx context.Context, cfg *config.Config) (*DatabaseClient, error) {
	if cfg == nil {
		return nil, fmt.Errorf("database client configuration is nil")
	}
	dsn, err := buildDSN(cfg.DatabaseURL, cfg.SslCertPath)
	if err != nil {
		return nil, err
	}

	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	db.SetMaxOpenConns(20)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(30 * time.Minute)
	db.SetConnMaxIdleTime(10 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping db: %w", err)
	}

	if err := EnsureBootstrapped(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("bootstrap: %w", err)
	}

	return &DatabaseClient{db: db}, nil
}

// buildDSN appends CA verification when a root certificate is configured.
func buildDSN(databaseURL, sslCertPath string) (string, error) {
	if databaseURL == "" {
		return "", fmt.Errorf("DATABASE_URL is empty")
	}
	if sslCertPath == "" {
		return databaseURL, nil
	}
	if _, err := os.Stat(sslCertPath); err != nil {
		return "", fmt.Errorf("ssl cert not accessible at %q: %w", sslCertPath, err)
	}
	u, err := url.Parse(databaseURL)
	if err != nil {
		return "", fmt.Errorf("invalid DATABASE_URL: %w", err)
	}
	q := u.Query()
	q.Set("sslmode", "verify-ca")
	q.Set("sslrootcert", sslCertPath)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

func (c *DatabaseClient) Close() error {
	if c.db != nil {
		return c.db.Close()
	}
	return nil
}

// Users

func (c *DatabaseClient) CreateUser(ctx context.Context, user *models.User) error {
	if user == nil {
		return fmt.Errorf("%w: nil user", core.ErrInvalidRequest)
	}
	const q = `
		INSERT INTO users (id, first_name, email, password_hash, created_at, updated_at)
		VALUES ($1, $2, $3, $4, now(), now())
	`
	_, err := c.db.ExecContext(ctx, q, user.ID, user.FirstName, user.Email, user.PasswordHash)
	return createUserErr(user.Email, err)
}

const uniqueViolation = "23505"

func createUserErr(email string, err error) error {
	if err == nil {
		return nil
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return fmt.Errorf("%w: user %s already exists", core.ErrInvalidRequest, email)
	}
	return fmt.Errorf("%w: create user: %v", core.ErrStorage, err)
}

func (c *DatabaseClient) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	const q = `
		SELECT id, first_name, email, password_hash, created_at, updated_at
		FROM users WHERE email = $1
	`
	var u models.User
	err := c.db.QueryRowContext(ctx, q, email).Scan(
		&u.ID, &u.FirstName, &u.Email, &u.PasswordHash, &u.CreatedAt, &u.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: user %s", core.ErrNotFound, email)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: get user: %v", core.ErrStorage, err)
	}
	return &u, nil
}

// Files

func (c *DatabaseClient) CreateFile(ctx context.Context, f *models.UploadedFile) error {
	if f == nil {
		return errors.New("nil file")
	}
	const q = `
		INSERT INTO files
			(id, user_id, name, size, type, storage_url, tokens, status, created_at, updated_at)
		VALUES
			($1, $2, $3, $4, $5, $6, $7, $8, now(), now())
	`
	if _, err := c.db.ExecContext(ctx, q,
		f.ID, f.UserID, f.Name, f.Size, f.Type, f.StorageURL, f.Tokens, f.Status); err != nil {
		return fmt.Errorf("%w: create file: %v", core.ErrStorage, err)
	}
	return nil
}

const fileColumns = `id, user_id, name, size, type, storage_url, tokens, status, created_at, updated_at`

func scanFile(row interface{ Scan(...any) error }, f *models.UploadedFile) error {
	return row.Scan(&f.ID, &f.UserID, &f.Name, &f.Size, &f.Type, &f.StorageURL, &f.Tokens, &f.Status, &f.CreatedAt, &f.UpdatedAt)
}

func (c *DatabaseClient) GetFileMetadata(ctx context.Context, id string) (*models.UploadedFile, error) {
	q := `SELECT ` + fileColumns + ` FROM files WHERE id = $1`
	var f models.UploadedFile
	err := scanFile(c.db.QueryRowContext(ctx, q, id), &f)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: file %s", core.ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: get file: %v", core.ErrStorage, err)
	}
	return &f, nil
}

func (c *DatabaseClient) ListFilesByUser(ctx context.Context, userID string) ([]models.UploadedFile, error) {
	q := `SELECT ` + fileColumns + ` FROM files WHERE user_id = $1 ORDER BY created_at DESC`
	rows, err := c.db.QueryContext(ctx, q, userID)
	if err != nil {
		return nil, fmt.Errorf("%w: list files: %v", core.ErrStorage, err)
	}
	defer rows.Close()

	var out []models.UploadedFile
	for rows.Next() {
		var f models.UploadedFile
		if err := scanFile(rows, &f); err != nil {
			return nil, fmt.Errorf("%w: scan file: %v", core.ErrStorage, err)
		}
		out = append(out, f)
	}
	return out, rows.Err()
}

func (c *DatabaseClient) UpdateFileStatus(ctx context.Context, id string, status string) error {
	const q = `
		UPDATE files
		SET status = $2, updated_at = now()
		WHERE id = $1
	`
	res, err := c.db.ExecContext(ctx, q, id, status)
	if err != nil {
		return fmt.Errorf("%w: update status: %v", core.ErrStorage, err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return fmt.Errorf("%w: file %s", core.ErrNotFound, id)
	}
	return nil
}

// DeleteFile removes the file row; its chunks go with it through ON DELETE CASCADE.
func (c *DatabaseClient) DeleteFile(ctx context.Context, id string) error {
	res, err := c.db.ExecContext(ctx, `DELETE FROM files WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("%w: delete file: %v", core.ErrStorage, err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return fmt.Errorf("%w: file %s", core.ErrNotFound, id)
	}
	return nil
}

// Chunks

// ReplaceFileChunks locks the file row, drops the previous chunk set, inserts the
// new one and records the token total, all in one transaction. Concurrent runs for
// the same file serialize on the row lock; the last to commit wins.
func (c *DatabaseClient) ReplaceFileChunks(ctx context.Context, fileID string, chunks []models.FileChunk, tokenTotal int) (err error) {
	tx, err := c.db.BeginTx(ctx, &sql.TxOptions{})
	if err != nil {
		return fmt.Errorf("%w: begin: %v", core.ErrStorage, err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	var locked string
	err = tx.QueryRowContext(ctx, `SELECT id FROM files WHERE id = $1 FOR UPDATE`, fileID).Scan(&locked)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%w: file %s", core.ErrNotFound, fileID)
	}
	if err != nil {
		return fmt.Errorf("%w: lock file: %v", core.ErrStorage, err)
	}

	res, err := tx.ExecContext(ctx, `DELETE FROM file_chunks WHERE file_id = $1`, fileID)
	if err != nil {
		return fmt.Errorf("%w: delete chunks: %v", core.ErrStorage, err)
	}
	if n, _ := res.RowsAffected(); n > 0 {
		logger.FromContext(ctx).Debug("replacing previous chunk set", zap.String("file_id", fileID), zap.Int64("previous", n))
	}

	if len(chunks) > 0 {
		const q = `
			INSERT INTO file_chunks
				(id, file_id, user_id, position, content, tokens, embedding, provider, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, now())
		`
		stmt, perr := tx.PrepareContext(ctx, q)
		if perr != nil {
			err = perr
			return fmt.Errorf("%w: prepare insert: %v", core.ErrStorage, err)
		}
		defer stmt.Close()

		for i := range chunks {
			ch := &chunks[i]
			var vec any
			if ch.Embedding != nil {
				vec = pgvector.NewVector(ch.Embedding)
			}
			if _, err = stmt.ExecContext(ctx,
				ch.ID, fileID, ch.UserID, ch.Position, ch.Content, ch.TokenCount, vec, ch.Provider,
			); err != nil {
				return fmt.Errorf("%w: insert chunk %d: %v", core.ErrStorage, ch.Position, err)
			}
		}
	}

	if _, err = tx.ExecContext(ctx, `
		UPDATE files
		SET tokens = $2, status = 'ready', updated_at = now()
		WHERE id = $1
	`, fileID, tokenTotal); err != nil {
		return fmt.Errorf("%w: set token total: %v", core.ErrStorage, err)
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("%w: commit: %v", core.ErrStorage, err)
	}
	return nil
}

func (c *DatabaseClient) GetChunksByFile(ctx context.Context, fileID string) ([]models.FileChunk, error) {
	const q = `
		SELECT id, file_id, user_id, position, content, tokens, embedding, provider, created_at
		FROM file_chunks
		WHERE file_id = $1
		ORDER BY position ASC
	`
	rows, err := c.db.QueryContext(ctx, q, fileID)
	if err != nil {
		return nil, fmt.Errorf("%w: get chunks: %v", core.ErrStorage, err)
	}
	defer rows.Close()

	var out []models.FileChunk
	for rows.Next() {
		var (
			ch  models.FileChunk
			emb *pgvector.Vector
		)
		if err := rows.Scan(
			&ch.ID, &ch.FileID, &ch.UserID, &ch.Position, &ch.Content, &ch.TokenCount, &emb, &ch.Provider, &ch.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("%w: scan chunk: %v", core.ErrStorage, err)
		}
		if emb != nil {
			ch.Embedding = emb.Slice()
		}
		out = append(out, ch)
	}
	return out, rows.Err()
}

// SearchFileChunks finds the top-k chunks of a file closest to queryVec, looking
// only at vectors from the same embedding space.
func (c *DatabaseClient) SearchFileChunks(ctx context.Context, fileID, provider string, queryVec []float32, limit int) ([]models.FileChunk, error) {
	const q = `
		SELECT id, file_id, user_id, position, content, tokens, provider
		FROM file_chunks
		WHERE file_id = $1 AND provider = $2 AND embedding IS NOT NULL
		ORDER BY embedding <-> $3
		LIMIT $4
	`
	rows, err := c.db.QueryContext(ctx, q, fileID, provider, pgvector.NewVector(queryVec), limit)
	if err != nil {
		return nil, fmt.Errorf("%w: search chunks: %v", core.ErrStorage, err)
	}
	defer rows.Close()

	var out []models.FileChunk
	for rows.Next() {
		var ch models.FileChunk
		if err := rows.Scan(&ch.ID, &ch.FileID, &ch.UserID, &ch.Position, &ch.Content, &ch.TokenCount, &ch.Provider); err != nil {
			return nil, fmt.Errorf("%w: scan chunk: %v", core.ErrStorage, err)
		}
		out = append(out, ch)
	}
	return out, rows.Err()
}

// Settings

// GetUserSettings returns empty settings when the user never saved any.
func (c *DatabaseClient) GetUserSettings(ctx context.Context, userID string) (*models.UserSettings, error) {
	const q = `
		SELECT user_id, unstructured_api_key, openai_api_key, use_azure_openai,
		       azure_openai_api_key, azure_openai_endpoint, azure_openai_embeddings_id, updated_at
		FROM user_settings WHERE user_id = $1
	`
	var s models.UserSettings
	err := c.db.QueryRowContext(ctx, q, userID).Scan(
		&s.UserID, &s.DocumentServiceKey, &s.OpenAIAPIKey, &s.UseAzureOpenAI,
		&s.AzureOpenAIAPIKey, &s.AzureOpenAIEndpoint, &s.AzureEmbeddingsID, &s.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return &models.UserSettings{UserID: userID}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: get settings: %v", core.ErrStorage, err)
	}
	return &s, nil
}

func (c *DatabaseClient) UpsertUserSettings(ctx context.Context, s *models.UserSettings) error {
	const q = `
		INSERT INTO user_settings
			(user_id, unstructured_api_key, openai_api_key, use_azure_openai,
			 azure_openai_api_key, azure_openai_endpoint, azure_openai_embeddings_id, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, now())
		ON CONFLICT (user_id) DO UPDATE SET
			unstructured_api_key       = EXCLUDED.unstructured_api_key,
			openai_api_key             = EXCLUDED.openai_api_key,
			use_azure_openai           = EXCLUDED.use_azure_openai,
			azure_openai_api_key       = EXCLUDED.azure_openai_api_key,
			azure_openai_endpoint      = EXCLUDED.azure_openai_endpoint,
			azure_openai_embeddings_id = EXCLUDED.azure_openai_embeddings_id,
			updated_at                 = now()
	`
	if _, err := c.db.ExecContext(ctx, q,
		s.UserID, s.DocumentServiceKey, s.OpenAIAPIKey, s.UseAzureOpenAI,
		s.AzureOpenAIAPIKey, s.AzureOpenAIEndpoint, s.AzureEmbeddingsID); err != nil {
		return fmt.Errorf("%w: upsert settings: %v", core.ErrStorage, err)
	}
	return nil
}

var _ core.DbClient = (*DatabaseClient)(nil)
