package api

import (
	"context"
	"net/http"
	"strings"

	"github.com/nihalkurra/student-collab-hub/pkg/model"
)

type ctxKeyUser struct{}
type ctxKeyReqID struct{}

// WithUser attaches the authenticated identity to the context. Only the two
// middleware variants call it.
func WithUser(ctx context.Context, u model.User) context.Context {
	return context.WithValue(ctx, ctxKeyUser{}, u)
}

// UserFrom returns the authenticated identity, if any.
func UserFrom(ctx context.Context) (model.User, bool) {
	u, ok := ctx.Value(ctxKeyUser{}).(model.User)
	return u, ok
}

func withReqID(ctx context.Context, id int64) context.Context {
	return context.WithValue(ctx, ctxKeyReqID{}, id)
}

func reqIDFrom(ctx context.Context) int64 {
	id, _ := ctx.Value(ctxKeyReqID{}).(int64)
	return id
}

func bearerToken(r *http.Request) string {
	h := r.Header.Get("Authorization")
	if h == "" {
		return ""
	}
	parts := strings.SplitN(h, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}

// requireAuth rejects the request unless a valid token identifying an
// existing user is presented.
func (s *Server) requireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := bearerToken(r)
		if token == "" {
			writeError(w, unauthorized("authentication required"))
			return
		}
		user, err := s.auth.VerifyToken(r.Context(), token)
		if err != nil {
			writeError(w, fromService(err))
			return
		}
		next.ServeHTTP(w, r.WithContext(WithUser(r.Context(), user)))
	})
}

// optionalAuth attaches the identity when a valid token is present and
// otherwise lets the request through anonymously.
func (s *Server) optionalAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if token := bearerToken(r); token != "" {
			if user, err := s.auth.VerifyToken(r.Context(), token); err == nil {
				r = r.WithContext(WithUser(r.Context(), user))
			}
		}
		next.ServeHTTP(w, r)
	})
}
