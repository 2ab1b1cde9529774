package handlers

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/makershopapp/makershop/internal/config"
	"github.com/makershopapp/makershop/internal/services"
)

const testAuthSecret = "0123456789abcdef0123456789abcdef"

func newTestHandlers() *Handlers {
	return &Handlers{
		config: &config.Config{AuthTokenSecret: testAuthSecret},
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
}

func signTestToken(t *testing.T, actorID uuid.UUID, role string, expiresIn time.Duration) string {
	t.Helper()

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, ActorClaims{
		Role: role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   actorID.String(),
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(expiresIn)),
		},
	})
	signed, err := token.SignedString([]byte(testAuthSecret))
	if err != nil {
		t.Fatalf("failed to sign token: %v", err)
	}
	return signed
}

func TestRequireAuthInjectsActor(t *testing.T) {
	t.Parallel()

	h := newTestHandlers()
	actorID := uuid.New()

	var got services.Actor
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		actor, err := actorFromContext(r.Context())
		if err != nil {
			t.Fatalf("actorFromContext() error = %v", err)
		}
		got = actor
	})

	req := httptest.NewRequest(http.MethodGet, "/api/orders", nil)
	req.Header.Set("Authorization", "Bearer "+signTestToken(t, actorID, "creator", time.Hour))
	rec := httptest.NewRecorder()

	h.RequireAuth(next).ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if got.ID != actorID || got.Role != services.RoleCreator {
		t.Fatalf("actor = %+v, want %s as creator", got, actorID)
	}
}

func TestRequireAuthRejectsBadTokens(t *testing.T) {
	t.Parallel()

	h := newTestHandlers()

	tests := []struct {
		name   string
		header string
	}{
		{name: "missing header", header: ""},
		{name: "wrong scheme", header: "Basic abc123"},
		{name: "garbage token", header: "Bearer not-a-jwt"},
		{name: "expired token", header: "Bearer " + signTestToken(t, uuid.New(), "customer", -time.Hour)},
		{name: "unknown role", header: "Bearer " + signTestToken(t, uuid.New(), "superuser", time.Hour)},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				t.Fatal("next handler should not run")
			})

			req := httptest.NewRequest(http.MethodGet, "/api/orders", nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			rec := httptest.NewRecorder()

			h.RequireAuth(next).ServeHTTP(rec, req)

			if rec.Code != http.StatusUnauthorized {
				t.Fatalf("status = %d, want 401", rec.Code)
			}
		})
	}
}

func TestRequireAuthRejectsForgedSignature(t *testing.T) {
	t.Parallel()

	h := newTestHandlers()

	forged := jwt.NewWithClaims(jwt.SigningMethodHS256, ActorClaims{
		Role: "admin",
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   uuid.NewString(),
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	})
	signed, err := forged.SignedString([]byte("the-wrong-secret-the-wrong-secret"))
	if err != nil {
		t.Fatalf("failed to sign token: %v", err)
	}

	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("next handler should not run")
	})

	req := httptest.NewRequest(http.MethodPost, "/api/orders", nil)
	req.Header.Set("Authorization", "Bearer "+signed)
	rec := httptest.NewRecorder()

	h.RequireAuth(next).ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}
}
