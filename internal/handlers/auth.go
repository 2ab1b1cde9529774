package handlers

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/makershopapp/makershop/internal/models"
	"github.com/makershopapp/makershop/internal/services"
)

type actorContextKey struct{}

// ActorClaims is the JWT payload issued by the platform's identity service.
// The subject is the actor's UUID; role selects the authorization rules the
// services apply.
type ActorClaims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// RequireAuth authenticates the bearer token and stores the resulting actor
// in the request context. Requests without a valid token never reach the
// services.
func (h *Handlers) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		token := bearerToken(r)
		if token == "" {
			h.writeJSON(ctx, w, http.StatusUnauthorized, errorResponse{Error: "missing bearer token"})
			return
		}

		actor, err := h.parseActorToken(token)
		if err != nil {
			h.loggerFromContext(ctx).Warn("rejected bearer token", "error", err)
			h.writeJSON(ctx, w, http.StatusUnauthorized, errorResponse{Error: "invalid bearer token"})
			return
		}

		next.ServeHTTP(w, r.WithContext(withActor(ctx, actor)))
	})
}

func (h *Handlers) parseActorToken(token string) (services.Actor, error) {
	var claims ActorClaims

	parsed, err := jwt.ParseWithClaims(token, &claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return []byte(h.config.AuthTokenSecret), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return services.Actor{}, fmt.Errorf("failed to parse token: %w", err)
	}
	if !parsed.Valid {
		return services.Actor{}, fmt.Errorf("token is not valid")
	}

	actorID, err := uuid.Parse(claims.Subject)
	if err != nil {
		return services.Actor{}, fmt.Errorf("token subject is not a UUID: %w", err)
	}
	role, err := services.ParseRole(claims.Role)
	if err != nil {
		return services.Actor{}, err
	}

	return services.Actor{ID: actorID, Role: role}, nil
}

func bearerToken(r *http.Request) string {
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	if header == "" {
		return ""
	}
	scheme, token, found := strings.Cut(header, " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}

func withActor(ctx context.Context, actor services.Actor) context.Context {
	return context.WithValue(ctx, actorContextKey{}, actor)
}

func actorFromContext(ctx context.Context) (services.Actor, error) {
	actor, ok := ctx.Value(actorContextKey{}).(services.Actor)
	if !ok {
		return services.Actor{}, fmt.Errorf("%w: no authenticated actor", models.ErrUnauthorized)
	}
	return actor, nil
}
