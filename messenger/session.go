// Package messenger is the client view-model of the direct messaging page:
// conversation list, active thread and composer over a Backend.
package messenger

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
)

const (
	LoginPath    = "/login"
	MessagesPath = "/messages"
)

// LoginRequiredError carries where to send an unauthenticated user.
// RedirectURL brings them back to the same thread once logged in.
type LoginRequiredError struct {
	RedirectURL string
}

func (e *LoginRequiredError) Error() string {
	return fmt.Sprintf("login required, redirect to %s", e.RedirectURL)
}

// LoginRedirect builds /login?redirect_url=<messages view with the counterpart preserved>.
func LoginRedirect(counterpart string) string {
	target := MessagesPath
	if counterpart != "" {
		target += "?to=" + url.QueryEscape(counterpart)
	}
	return LoginPath + "?redirect_url=" + url.QueryEscape(target)
}

type SessionResolver struct {
	backend Backend
	log     *slog.Logger
}

func NewSessionResolver(backend Backend, log *slog.Logger) *SessionResolver {
	return &SessionResolver{backend: backend, log: log}
}

// Resolve returns the current user id or a *LoginRequiredError.
// A failed session read counts as unauthenticated and is not retried.
func (r *SessionResolver) Resolve(ctx context.Context, counterpart string) (string, error) {
	userID, err := r.backend.Session(ctx)
	if err != nil {
		r.log.Warn("Session read failed, treated as unauthenticated", "error", err)
		userID = ""
	}
	if userID == "" {
		return "", &LoginRequiredError{RedirectURL: LoginRedirect(counterpart)}
	}
	return userID, nil
}
