package google

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/oauth2"
	googleoauth "golang.org/x/oauth2/google"
	"google.golang.org/api/drive/v3"
	"google.golang.org/api/gmail/v1"
	"google.golang.org/api/sheets/v4"

	"github.com/hadlocna/operations/internal/application/port"
	"github.com/hadlocna/operations/internal/domain/entity"
)

// DefaultCredentialKey is the credential store key used when none is configured
const DefaultCredentialKey = "google"

// DefaultRefreshSkew refreshes tokens that expire within this window
const DefaultRefreshSkew = 60 * time.Second

// DefaultScopes covers mailbox reads, folder creation and ledger writes
var DefaultScopes = []string{
	gmail.GmailReadonlyScope,
	drive.DriveScope,
	sheets.SpreadsheetsScope,
}

// OAuthConfig holds the OAuth client settings
type OAuthConfig struct {
	ClientID      string
	ClientSecret  string
	RedirectURL   string
	Scopes        []string
	TokenURL      string
	CredentialKey string
}

// TokenProvider implements port.AuthProvider over a stored OAuth token
type TokenProvider struct {
	repo   port.CredentialRepository
	oauth  *oauth2.Config
	key    string
	skew   time.Duration
	now    func() time.Time
	mu     sync.Mutex
	logger *zap.Logger
}

// NewTokenProvider creates a new token provider
func NewTokenProvider(repo port.CredentialRepository, cfg OAuthConfig, logger *zap.Logger) *TokenProvider {
	endpoint := googleoauth.Endpoint
	if cfg.TokenURL != "" {
		endpoint.TokenURL = cfg.TokenURL
	}
	scopes := cfg.Scopes
	if len(scopes) == 0 {
		scopes = DefaultScopes
	}
	key := cfg.CredentialKey
	if key == "" {
		key = DefaultCredentialKey
	}

	return &TokenProvider{
		repo: repo,
		oauth: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURL,
			Scopes:       scopes,
			Endpoint:     endpoint,
		},
		key:    key,
		skew:   DefaultRefreshSkew,
		now:    time.Now,
		logger: logger,
	}
}

// GetValidCredential returns the stored credential, refreshing and persisting
// it first when it is expired or about to expire
func (p *TokenProvider) GetValidCredential(ctx context.Context) (*entity.Credential, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	cred, err := p.repo.Get(ctx, p.key)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to load credential: %v", entity.ErrAuth, err)
	}
	if cred == nil {
		return nil, fmt.Errorf("%w: %w", entity.ErrAuth, entity.ErrNoCredential)
	}

	if cred.AccessToken != "" && !cred.ExpiresWithin(p.now(), p.skew) {
		return cred, nil
	}

	return p.refresh(ctx, cred)
}

func (p *TokenProvider) refresh(ctx context.Context, cred *entity.Credential) (*entity.Credential, error) {
	if cred.RefreshToken == "" {
		return nil, fmt.Errorf("%w: credential expired and has no refresh token", entity.ErrAuth)
	}

	p.logger.Info("Refreshing access token",
		zap.String("key", cred.Key),
		zap.Time("expiry", cred.Expiry))

	// An empty access token forces the token source to hit the token endpoint
	src := p.oauth.TokenSource(ctx, &oauth2.Token{RefreshToken: cred.RefreshToken})
	tok, err := src.Token()
	if err != nil {
		p.logger.Error("Token refresh failed", zap.Error(err))
		return nil, fmt.Errorf("%w: token refresh failed: %v", entity.ErrAuth, err)
	}

	refreshed := CredentialFromToken(cred.Key, tok, cred.Scopes)
	if refreshed.RefreshToken == "" {
		refreshed.RefreshToken = cred.RefreshToken
	}
	refreshed.UpdatedAt = p.now()

	if err := p.repo.Save(ctx, refreshed); err != nil {
		return nil, fmt.Errorf("%w: failed to persist refreshed token: %v", entity.ErrAuth, err)
	}

	p.logger.Info("Access token refreshed",
		zap.String("key", refreshed.Key),
		zap.Time("expiry", refreshed.Expiry))

	return refreshed, nil
}

// Import stores tok as the current credential
func (p *TokenProvider) Import(ctx context.Context, tok *oauth2.Token) error {
	if tok == nil || (tok.AccessToken == "" && tok.RefreshToken == "") {
		return errors.New("token has neither an access token nor a refresh token")
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	cred := CredentialFromToken(p.key, tok, p.oauth.Scopes)
	cred.UpdatedAt = p.now()
	if err := p.repo.Save(ctx, cred); err != nil {
		return fmt.Errorf("failed to save credential: %w", err)
	}

	p.logger.Info("Credential imported",
		zap.String("key", cred.Key),
		zap.Bool("has_refresh_token", cred.RefreshToken != ""))
	return nil
}

// Status reports whether a credential is stored and when it expires
func (p *TokenProvider) Status(ctx context.Context) (*entity.CredentialStatus, error) {
	cred, err := p.repo.Get(ctx, p.key)
	if err != nil {
		return nil, fmt.Errorf("failed to load credential: %w", err)
	}
	if cred == nil {
		return &entity.CredentialStatus{}, nil
	}

	status := &entity.CredentialStatus{
		Stored:      true,
		Expired:     cred.ExpiresWithin(p.now(), 0),
		Refreshable: cred.RefreshToken != "",
		Scopes:      cred.Scopes,
	}
	if !cred.Expiry.IsZero() {
		expiry := cred.Expiry
		status.Expiry = &expiry
	}
	if !cred.UpdatedAt.IsZero() {
		updated := cred.UpdatedAt
		status.UpdatedAt = &updated
	}
	return status, nil
}

// Revoke deletes the stored credential
func (p *TokenProvider) Revoke(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.repo.Delete(ctx, p.key); err != nil {
		return fmt.Errorf("failed to delete credential: %w", err)
	}
	p.logger.Info("Credential revoked", zap.String("key", p.key))
	return nil
}

// CredentialFromToken converts an oauth2 token into a stored credential
func CredentialFromToken(key string, tok *oauth2.Token, scopes []string) *entity.Credential {
	return &entity.Credential{
		Key:          key,
		AccessToken:  tok.AccessToken,
		RefreshToken: tok.RefreshToken,
		TokenType:    tok.TokenType,
		Expiry:       tok.Expiry,
		Scopes:       scopes,
	}
}

// TokenFromCredential converts a stored credential into an oauth2 token
func TokenFromCredential(cred *entity.Credential) *oauth2.Token {
	tokenType := cred.TokenType
	if tokenType == "" {
		tokenType = "Bearer"
	}
	return &oauth2.Token{
		AccessToken:  cred.AccessToken,
		RefreshToken: cred.RefreshToken,
		TokenType:    tokenType,
		Expiry:       cred.Expiry,
	}
}
