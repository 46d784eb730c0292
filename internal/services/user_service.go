package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/markdave123-py/ragdesk/internal/core"
	"github.com/markdave123-py/ragdesk/internal/models"
)

type UserService struct {
	db core.DbClient
}

func NewUserService(db core.DbClient) *UserService {
	return &UserService{db: db}
}

func (s *UserService) Create(ctx context.Context, u *models.User) error {
	if u == nil || u.Email == "" || u.PasswordHash == "" {
		return fmt.Errorf("%w: invalid user payload", core.ErrInvalidRequest)
	}
	u.Email = strings.ToLower(strings.TrimSpace(u.Email))
	return s.db.CreateUser(ctx, u)
}

func (s *UserService) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	return s.db.GetUserByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
}

// Settings returns the user's stored credentials with secrets masked.
func (s *UserService) Settings(ctx context.Context, userID string) (*models.UserSettings, error) {
	st, err := s.db.GetUserSettings(ctx, userID)
	if err != nil {
		return nil, err
	}
	out := *st
	out.UserID = userID
	out.DocumentServiceKey = mask(st.DocumentServiceKey)
	out.OpenAIAPIKey = mask(st.OpenAIAPIKey)
	out.AzureOpenAIAPIKey = mask(st.AzureOpenAIAPIKey)
	return &out, nil
}

// UpdateSettings replaces the user's settings. An Azure selection must name
// its endpoint and deployment.
func (s *UserService) UpdateSettings(ctx context.Context, userID string, in *models.UserSettings) error {
	if in == nil {
		return fmt.Errorf("%w: settings body is required", core.ErrInvalidRequest)
	}
	st := *in
	st.UserID = userID
	st.DocumentServiceKey = strings.TrimSpace(st.DocumentServiceKey)
	st.OpenAIAPIKey = strings.TrimSpace(st.OpenAIAPIKey)
	st.AzureOpenAIAPIKey = strings.TrimSpace(st.AzureOpenAIAPIKey)
	st.AzureOpenAIEndpoint = strings.TrimRight(strings.TrimSpace(st.AzureOpenAIEndpoint), "/")
	st.AzureEmbeddingsID = strings.TrimSpace(st.AzureEmbeddingsID)
	if st.UseAzureOpenAI && (st.AzureOpenAIEndpoint == "" || st.AzureEmbeddingsID == "") {
		return fmt.Errorf("%w: azure endpoint and embeddings deployment are required", core.ErrInvalidRequest)
	}

	// masked values echoed back from Settings keep the stored secret
	prev, err := s.db.GetUserSettings(ctx, userID)
	if err != nil {
		return err
	}
	st.DocumentServiceKey = unmask(st.DocumentServiceKey, prev.DocumentServiceKey)
	st.OpenAIAPIKey = unmask(st.OpenAIAPIKey, prev.OpenAIAPIKey)
	st.AzureOpenAIAPIKey = unmask(st.AzureOpenAIAPIKey, prev.AzureOpenAIAPIKey)
	return s.db.UpsertUserSettings(ctx, &st)
}

const maskMarker = "****"

func mask(secret string) string {
	if secret == "" {
		return ""
	}
	if len(secret) <= 8 {
		return maskMarker
	}
	return secret[:3] + maskMarker + secret[len(secret)-4:]
}

func unmask(in, stored string) string {
	if strings.Contains(in, maskMarker) {
		return stored
	}
	return in
}
