package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/barterly/backend/internal/models"
)

type contextKey string

const ctxMemberKey contextKey = "member"

// TokenValidator verifies a bearer credential and returns the member id.
type TokenValidator interface {
	ValidateToken(ctx context.Context, token string) (uuid.UUID, error)
}

// MemberLookup resolves the authenticated member record.
type MemberLookup interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Member, error)
}

// BearerAuth authenticates requests by validating the Bearer token and
// loading the member into request context.
func BearerAuth(tokens TokenValidator, members MemberLookup) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw := extractBearer(r)
			if raw == "" {
				http.Error(w, `{"error":"missing or malformed Authorization header"}`, http.StatusUnauthorized)
				return
			}

			memberID, err := tokens.ValidateToken(r.Context(), raw)
			if err != nil {
				http.Error(w, `{"error":"invalid token"}`, http.StatusUnauthorized)
				return
			}

			member, err := members.GetByID(r.Context(), memberID)
			if err != nil {
				http.Error(w, `{"error":"invalid token"}`, http.StatusUnauthorized)
				return
			}

			next.ServeHTTP(w, r.WithContext(WithMember(r.Context(), member)))
		})
	}
}

// RequireAdmin rejects non-admin callers. Chain after BearerAuth.
func RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		m := MemberFromCtx(r.Context())
		if m == nil {
			http.Error(w, `{"error":"unauthorized"}`, http.StatusUnauthorized)
			return
		}
		if m.Role != models.RoleAdmin {
			http.Error(w, `{"error":"admin role required"}`, http.StatusForbidden)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// MemberFromCtx returns the authenticated member or nil.
func MemberFromCtx(ctx context.Context) *models.Member {
	m, _ := ctx.Value(ctxMemberKey).(*models.Member)
	return m
}

// WithMember returns a context carrying the given member.
func WithMember(ctx context.Context, m *models.Member) context.Context {
	return context.WithValue(ctx, ctxMemberKey, m)
}

func extractBearer(r *http.Request) string {
	h := r.Header.Get("Authorization")
	if len(h) > 7 && strings.EqualFold(h[:7], "bearer ") {
		return strings.TrimSpace(h[7:])
	}
	return ""
}
