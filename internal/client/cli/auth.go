package cli

import (
	"bytes"
	"context"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/gophdrive/internal/client/models"
	"github.com/dmitrijs2005/gophdrive/internal/common"
)

// getSimpleText and getPassword are indirections used to facilitate testing.
// They point to interactive input helpers and can be swapped in tests.
var getSimpleText = GetSimpleText
var getPassword = GetPassword

// Register prompts for a username and password, creates the account and
// logs in with it.
func (a *App) Register(ctx context.Context) error {
	return a.authenticate(ctx, a.auth.Register)
}

// Login prompts for credentials and authenticates against the server.
func (a *App) Login(ctx context.Context) error {
	return a.authenticate(ctx, a.auth.Login)
}

type authFn func(ctx context.Context, username string, password []byte) (*models.Credentials, error)

func (a *App) authenticate(ctx context.Context, fn authFn) error {
	userName, err := getSimpleText(a.reader, "Enter username", a.out)
	if err != nil {
		return err
	}
	if userName == "" {
		return fmt.Errorf("%w: empty username", common.ErrInvalidName)
	}

	password, err := getPassword(a.out, "Enter password")
	if err != nil {
		return err
	}
	defer common.WipeByteArray(password)

	// Running uploads belong to the current session; the new login may be
	// another user.
	if a.isLoggedIn() {
		a.stopUploads()
	}

	creds, err := fn(ctx, userName, password)
	if err != nil {
		return err
	}

	printlnFn(fmt.Sprintf("Logged in as %s", creds.Username))
	return a.afterLogin(ctx, creds)
}

// restore activates the saved login, if any.
func (a *App) restore(ctx context.Context) error {
	creds, err := a.auth.Restore(ctx)
	if err != nil {
		return err
	}
	printlnFn(fmt.Sprintf("Welcome back, %s", creds.Username))
	return a.afterLogin(ctx, creds)
}

// afterLogin releases uploads of this user left open by a previous run and
// loads the listing.
func (a *App) afterLogin(ctx context.Context, creds *models.Credentials) error {
	if a.orchestrator != nil {
		n, err := a.orchestrator.Recover(ctx, creds.UserID)
		if err != nil {
			a.log.Warn(ctx, "upload recovery failed", "error", err)
		} else if n > 0 {
			printlnFn(fmt.Sprintf("Aborted %d unfinished upload(s) from a previous session", n))
		}
	}
	if err := a.browser.Load(ctx); err != nil {
		return err
	}
	return a.List(ctx, nil)
}

// stopUploads cancels running uploads and waits until they have released
// their server-side sessions.
func (a *App) stopUploads() {
	if a.orchestrator == nil {
		return
	}
	if n := a.orchestrator.CancelAll(); n > 0 {
		printlnFn(fmt.Sprintf("Canceled %d running upload(s)", n))
	}
	a.orchestrator.Wait()
}

// Logout cancels running uploads and erases the saved login.
func (a *App) Logout(ctx context.Context) error {
	a.stopUploads()
	if err := a.auth.Logout(ctx); err != nil {
		return err
	}
	printlnFn("Logged out")
	return nil
}

// Passwd asks for the new password twice and changes it.
func (a *App) Passwd(ctx context.Context) error {
	first, err := getPassword(a.out, "New password")
	if err != nil {
		return err
	}
	defer common.WipeByteArray(first)

	second, err := getPassword(a.out, "Repeat new password")
	if err != nil {
		return err
	}
	defer common.WipeByteArray(second)

	if !bytes.Equal(first, second) {
		return errors.New("passwords do not match")
	}
	if err := a.auth.ChangePassword(ctx, first); err != nil {
		return err
	}
	printlnFn("Password changed")
	return nil
}
