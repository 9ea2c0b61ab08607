// Package services contains application services for the gophdrive client.
// This file defines the authentication service: register, login, restoring a
// saved login, token refresh, password change and logout.
package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/dmitrijs2005/gophdrive/internal/client/client"
	"github.com/dmitrijs2005/gophdrive/internal/client/models"
	"github.com/dmitrijs2005/gophdrive/internal/client/repositories/credentials"
	"github.com/dmitrijs2005/gophdrive/internal/common"
	"github.com/dmitrijs2005/gophdrive/internal/dbx"
	"github.com/dmitrijs2005/gophdrive/internal/logging"
)

// refreshWindow is how close to expiry a restored token gets refreshed.
const refreshWindow = 10 * time.Minute

// AuthService defines authentication operations for the CLI.
//
// Contract:
//   - Register and Login authenticate against the server and persist the
//     credentials with a fixed expiry, never later than the token's own.
//   - Restore activates saved credentials; expired ones are erased.
//   - Logout erases the credentials and the in-memory session.
//
// All methods must honor context cancellation/timeouts.
type AuthService interface {
	Register(ctx context.Context, username string, password []byte) (*models.Credentials, error)
	Login(ctx context.Context, username string, password []byte) (*models.Credentials, error)
	Restore(ctx context.Context) (*models.Credentials, error)
	ChangePassword(ctx context.Context, password []byte) error
	Logout(ctx context.Context) error
	Current() *models.Credentials
}

type authService struct {
	api     client.Auth
	session *client.Session
	db      *sql.DB
	ttl     time.Duration
	log     logging.Logger
	now     func() time.Time

	mu      sync.RWMutex
	current *models.Credentials
}

// NewAuthService constructs an AuthService. ttl is the lifetime of a saved login.
func NewAuthService(api client.Auth, session *client.Session, db *sql.DB, ttl time.Duration, log logging.Logger) AuthService {
	return &authService{api: api, session: session, db: db, ttl: ttl, log: log, now: time.Now}
}

func (a *authService) repo() credentials.Repository {
	return credentials.NewSQLiteRepository(a.db)
}

func (a *authService) Register(ctx context.Context, username string, password []byte) (*models.Credentials, error) {
	res, err := a.api.Signup(ctx, username, string(password))
	if err != nil {
		return nil, fmt.Errorf("register error: %w", err)
	}
	return a.persist(ctx, res.Token, res.User)
}

func (a *authService) Login(ctx context.Context, username string, password []byte) (*models.Credentials, error) {
	res, err := a.api.Login(ctx, username, string(password))
	if err != nil {
		return nil, fmt.Errorf("login error: %w", err)
	}
	return a.persist(ctx, res.Token, res.User)
}

// persist replaces the saved login in a single transaction and activates it.
func (a *authService) persist(ctx context.Context, token string, user models.User) (*models.Credentials, error) {
	creds := &models.Credentials{
		AccessToken: token,
		UserID:      user.ID,
		Username:    user.Username,
		ExpiresAt:   a.expiry(token),
	}

	err := dbx.WithTx(ctx, a.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		repo := credentials.NewSQLiteRepository(tx)
		if err := repo.Clear(ctx); err != nil {
			return err
		}
		return repo.Save(ctx, creds)
	})
	if err != nil {
		return nil, fmt.Errorf("credentials saving error: %w", err)
	}

	a.activate(creds)
	a.log.Info(ctx, "logged in", "user", creds.Username, "user_id", creds.UserID, "expires_at", creds.ExpiresAt)
	return creds, nil
}

// expiry is now+ttl, capped by the token's exp claim when it has one.
func (a *authService) expiry(token string) time.Time {
	exp := a.now().Add(a.ttl)
	if tokenExp, ok := tokenExpiry(token); ok && tokenExp.Before(exp) {
		return tokenExp
	}
	return exp
}

// tokenExpiry reads the exp claim without verifying the signature; the
// client has no key and only uses it to schedule refreshes.
func tokenExpiry(token string) (time.Time, bool) {
	claims := jwt.RegisteredClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, &claims); err != nil {
		return time.Time{}, false
	}
	if claims.ExpiresAt == nil {
		return time.Time{}, false
	}
	return claims.ExpiresAt.Time, true
}

func (a *authService) activate(c *models.Credentials) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.current = c
	a.session.Set(c.AccessToken, c.UserID)
}

// Restore loads saved credentials. Missing credentials yield
// common.ErrNotLoggedIn, expired ones are erased and yield
// common.ErrTokenExpired. A token close to its expiry is refreshed; a refresh
// rejected by the server erases the login.
func (a *authService) Restore(ctx context.Context) (*models.Credentials, error) {
	creds, err := a.repo().Load(ctx)
	if err != nil {
		return nil, err
	}
	if creds == nil {
		return nil, common.ErrNotLoggedIn
	}

	now := a.now()
	if creds.Expired(now) {
		_ = a.Logout(ctx)
		return nil, common.ErrTokenExpired
	}

	a.activate(creds)

	if creds.ExpiresAt.Sub(now) > refreshWindow {
		return creds, nil
	}

	token, err := a.api.RefreshToken(ctx)
	switch {
	case errors.Is(err, client.ErrUnauthorized):
		_ = a.Logout(ctx)
		return nil, common.ErrorUnauthorized
	case err != nil:
		a.log.Warn(ctx, "token refresh failed, keeping saved token", "error", err)
		return creds, nil
	}

	return a.persist(ctx, token, models.User{ID: creds.UserID, Username: creds.Username})
}

func (a *authService) ChangePassword(ctx context.Context, password []byte) error {
	if a.Current() == nil {
		return common.ErrNotLoggedIn
	}
	if len(password) == 0 {
		return fmt.Errorf("%w: password must not be empty", common.ErrInvalidName)
	}
	if err := a.api.ChangePassword(ctx, string(password)); err != nil {
		return fmt.Errorf("change password error: %w", err)
	}
	return nil
}

// Logout wipes the saved credentials and the session.
func (a *authService) Logout(ctx context.Context) error {
	a.mu.Lock()
	a.current = nil
	a.session.Clear()
	a.mu.Unlock()
	return a.repo().Clear(ctx)
}

func (a *authService) Current() *models.Credentials {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if a.current == nil {
		return nil
	}
	c := *a.current
	return &c
}
