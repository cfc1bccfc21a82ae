// Package service holds the application logic that sits between HTTP
// handlers and the repositories: the auth workflow and event publishing.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/iliyamo/blog-cms/internal/metrics"
	"github.com/iliyamo/blog-cms/internal/model"
	q "github.com/iliyamo/blog-cms/internal/queue"
	"github.com/iliyamo/blog-cms/internal/repository"
	"github.com/iliyamo/blog-cms/internal/utils"
)

// ErrInvalidCredentials is returned by Login for an unknown email and for a
// wrong password alike.
var ErrInvalidCredentials = errors.New("invalid credentials")

// publishTimeout bounds how long a request waits on the broker.
const publishTimeout = 2 * time.Second

// PasswordHasher hashes and verifies passwords.
type PasswordHasher interface {
	Hash(plain string) (string, error)
	Verify(plain, hashed string) bool
}

// Revoker records revoked token ids. A nil Revoker disables logout revocation.
type Revoker interface {
	Revoke(ctx context.Context, tokenID string, exp time.Time) error
}

// AuthDeps bundles the collaborators of AuthService.
type AuthDeps struct {
	Users   *repository.Credentials
	Hasher  PasswordHasher
	Tokens  *utils.TokenIssuer
	Events  EventPublisher
	Revoker Revoker
	Metrics *metrics.Metrics
	Logger  *slog.Logger
}

// AuthService implements registration, login and logout.
type AuthService struct {
	AuthDeps
	// dummyHash is verified against when the email is unknown so both
	// login failure paths cost one hash verification.
	dummyHash string
}

func NewAuthService(d AuthDeps) (*AuthService, error) {
	if d.Users == nil || d.Hasher == nil || d.Tokens == nil {
		return nil, errors.New("auth service: users, hasher and tokens are required")
	}
	if d.Events == nil {
		d.Events = NoopPublisher{}
	}
	if d.Logger == nil {
		d.Logger = slog.Default()
	}
	dummy, err := d.Hasher.Hash("timing-equalizer-password")
	if err != nil {
		return nil, fmt.Errorf("auth service: dummy hash: %w", err)
	}
	return &AuthService{AuthDeps: d, dummyHash: dummy}, nil
}

// RegisterInput is a validated registration request.
type RegisterInput struct {
	Username string
	Email    string
	Password string
	IP       string
}

// Register creates the account. repository.ErrConflict is returned when
// the username or email is taken.
func (s *AuthService) Register(ctx context.Context, in RegisterInput) (model.User, error) {
	u, err := s.Users.Create(ctx, in.Username, in.Email, in.Password)
	if err != nil {
		if errors.Is(err, repository.ErrConflict) {
			s.Metrics.Registration("conflict")
			return model.User{}, err
		}
		s.Metrics.Registration("error")
		return model.User{}, fmt.Errorf("register: %w", err)
	}
	s.Metrics.Registration("created")
	s.Logger.InfoContext(ctx, "user registered", "user_id", u.ID)
	s.publish(ctx, q.AuthEvent{Type: q.EventUserRegistered, UserID: u.ID, Username: u.Username, Email: u.Email, IP: in.IP})
	return u, nil
}

// LoginResult is the outcome of a successful login.
type LoginResult struct {
	Token utils.AccessToken
	User  model.User
}

// Login checks the credentials and issues a token.
func (s *AuthService) Login(ctx context.Context, email, password, ip string) (LoginResult, error) {
	u, err := s.Users.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			_ = s.Hasher.Verify(password, s.dummyHash)
			s.Metrics.Login("invalid_credentials")
			return LoginResult{}, ErrInvalidCredentials
		}
		s.Metrics.Login("error")
		return LoginResult{}, fmt.Errorf("login: %w", err)
	}
	if !s.Hasher.Verify(password, u.PasswordHash) {
		s.Metrics.Login("invalid_credentials")
		return LoginResult{}, ErrInvalidCredentials
	}
	tok, err := s.Tokens.Issue(u.ID)
	if err != nil {
		s.Metrics.Login("error")
		return LoginResult{}, fmt.Errorf("issue token: %w", err)
	}
	s.Metrics.Login("success")
	s.publish(ctx, q.AuthEvent{Type: q.EventUserLoggedIn, UserID: u.ID, Username: u.Username, Email: u.Email, IP: ip})
	return LoginResult{Token: tok, User: u}, nil
}

// Logout revokes the presented token when a Revoker is configured.
func (s *AuthService) Logout(ctx context.Context, claims utils.Claims, ip string) error {
	if s.Revoker != nil && claims.TokenID != "" {
		if err := s.Revoker.Revoke(ctx, claims.TokenID, claims.ExpiresAt); err != nil {
			return fmt.Errorf("logout: %w", err)
		}
	}
	s.publish(ctx, q.AuthEvent{Type: q.EventUserLoggedOut, UserID: claims.UserID, IP: ip})
	return nil
}

// Me loads the authenticated user's record.
func (s *AuthService) Me(ctx context.Context, userID string) (model.User, error) {
	return s.Users.FindByID(ctx, userID)
}

func (s *AuthService) publish(ctx context.Context, ev q.AuthEvent) {
	ev.OccurredAt = time.Now().UTC().Format(time.RFC3339)
	pctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
	defer cancel()
	if err := s.Events.Publish(pctx, ev); err != nil {
		s.Logger.WarnContext(ctx, "publish auth event failed", "type", ev.Type, "err", err)
	}
}
