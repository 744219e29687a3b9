package http

import (
	"context"
	"net/http"
	"strings"

	"kakeibo/internal/core"
)

type contextKey string

const sessionKey contextKey = "session"

func withSession(ctx context.Context, s *core.Session) context.Context {
	return context.WithValue(ctx, sessionKey, s)
}

// sessionFrom returns the session attached by the auth middleware.
func sessionFrom(ctx context.Context) *core.Session {
	s, _ := ctx.Value(sessionKey).(*core.Session)
	return s
}

func ownerFrom(ctx context.Context) string {
	if s := sessionFrom(ctx); s != nil {
		return s.UserID
	}
	return ""
}

// bearerToken extracts the token from an "Authorization: Bearer" header.
func bearerToken(r *http.Request) string {
	h := strings.TrimSpace(r.Header.Get("Authorization"))
	if len(h) < 7 || !strings.EqualFold(h[:7], "bearer ") {
		return ""
	}
	return strings.TrimSpace(h[7:])
}

// sanitizeInput removes control characters and trims whitespace.
func sanitizeInput(s string) string {
	s = strings.TrimSpace(s)
	return strings.Map(func(r rune) rune {
		if r < 32 && r != 9 && r != 10 && r != 13 {
			return -1
		}
		return r
	}, s)
}
