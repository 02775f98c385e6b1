package middleware

import (
	"crypto/rand"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"log/slog"
	"math/big"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/MicahParks/keyfunc/v3"
	"github.com/golang-jwt/jwt/v5"
)

// testKeyID — идентификатор ключа для тестов.
const testKeyID = "test-key"

// generateTestKey генерирует RSA ключ для тестов.
func generateTestKey(t *testing.T) *rsa.PrivateKey {
	t.Helper()

	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("Ошибка генерации RSA ключа: %v", err)
	}
	return key
}

// generateTestToken генерирует подписанный JWT для тестов.
func generateTestToken(t *testing.T, key *rsa.PrivateKey, claims Claims) string {
	t.Helper()

	token := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	token.Header["kid"] = testKeyID
	signed, err := token.SignedString(key)
	if err != nil {
		t.Fatalf("Ошибка подписи токена: %v", err)
	}
	return signed
}

// buildJWKSetJSON строит JWKS JSON из RSA публичного ключа.
func buildJWKSetJSON(pub *rsa.PublicKey, kid string) json.RawMessage {
	nB64 := base64.RawURLEncoding.EncodeToString(pub.N.Bytes())
	eB64 := base64.RawURLEncoding.EncodeToString(big.NewInt(int64(pub.E)).Bytes())

	jwks := map[string]any{
		"keys": []map[string]any{
			{
				"kty": "RSA",
				"kid": kid,
				"use": "sig",
				"alg": "RS256",
				"n":   nB64,
				"e":   eB64,
			},
		},
	}

	data, _ := json.Marshal(jwks)
	return data
}

// newTestJWTAuth создаёт JWTAuth с RSA ключом для тестов.
func newTestJWTAuth(t *testing.T, key *rsa.PrivateKey) *JWTAuth {
	t.Helper()

	jwksJSON := buildJWKSetJSON(&key.PublicKey, testKeyID)
	kf, err := keyfunc.NewJWKSetJSON(jwksJSON)
	if err != nil {
		t.Fatalf("Ошибка создания keyfunc из JWKS JSON: %v", err)
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
	return NewJWTAuthWithKeyfunc(kf, 30*time.Second, logger)
}

// validClaims возвращает валидные claims с указанными scopes.
func validClaims(scopes []string) Claims {
	return Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "test-user",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
			NotBefore: jwt.NewNumericDate(time.Now().Add(-time.Minute)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
		ScopeArray: scopes,
	}
}

func TestJWTAuth_ValidToken(t *testing.T) {
	key := generateTestKey(t)
	auth := newTestJWTAuth(t, key)

	handler := auth.Middleware()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if sub := SubjectFromContext(r.Context()); sub != "test-user" {
			t.Errorf("sub: хотели test-user, получили %q", sub)
		}
		w.WriteHeader(http.StatusOK)
	}))

	token := generateTestToken(t, key, validClaims([]string{ScopeArchivesWrite}))

	req := httptest.NewRequest(http.MethodPost, "/api/v1/archives/load", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("статус: хотели 200, получили %d (тело: %s)", rec.Code, rec.Body.String())
	}
}

func TestJWTAuth_MissingHeader(t *testing.T) {
	key := generateTestKey(t)
	auth := newTestJWTAuth(t, key)

	handler := auth.Middleware()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("handler не должен вызываться без токена")
	}))

	req := httptest.NewRequest(http.MethodPost, "/api/v1/archives/load", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("статус: хотели 401, получили %d", rec.Code)
	}
}

func TestJWTAuth_MalformedHeader(t *testing.T) {
	key := generateTestKey(t)
	auth := newTestJWTAuth(t, key)

	handler := auth.Middleware()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("handler не должен вызываться с некорректным заголовком")
	}))

	for _, header := range []string{"Basic abc", "Bearer", "Bearer "} {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/archives/load", nil)
		req.Header.Set("Authorization", header)
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		if rec.Code != http.StatusUnauthorized {
			t.Errorf("заголовок %q: хотели 401, получили %d", header, rec.Code)
		}
	}
}

func TestJWTAuth_ExpiredToken(t *testing.T) {
	key := generateTestKey(t)
	auth := newTestJWTAuth(t, key)

	handler := auth.Middleware()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("handler не должен вызываться с просроченным токеном")
	}))

	claims := validClaims([]string{ScopeArchivesWrite})
	claims.ExpiresAt = jwt.NewNumericDate(time.Now().Add(-2 * time.Hour))
	token := generateTestToken(t, key, claims)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/archives/load", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("статус: хотели 401, получили %d", rec.Code)
	}
}

func TestJWTAuth_WrongKey(t *testing.T) {
	key := generateTestKey(t)
	otherKey := generateTestKey(t)
	auth := newTestJWTAuth(t, key)

	handler := auth.Middleware()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("handler не должен вызываться с токеном, подписанным чужим ключом")
	}))

	token := generateTestToken(t, otherKey, validClaims([]string{ScopeArchivesWrite}))

	req := httptest.NewRequest(http.MethodPost, "/api/v1/archives/load", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("статус: хотели 401, получили %d", rec.Code)
	}
}

func TestRequireScope(t *testing.T) {
	key := generateTestKey(t)
	auth := newTestJWTAuth(t, key)

	chain := auth.Middleware()(RequireScope(ScopeArchivesWrite)(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
		}),
	))

	// Токен с нужным scope
	token := generateTestToken(t, key, validClaims([]string{ScopeArchivesWrite}))
	req := httptest.NewRequest(http.MethodPost, "/api/v1/archives/load", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	chain.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Errorf("с нужным scope: хотели 200, получили %d", rec.Code)
	}

	// Токен без нужного scope
	token = generateTestToken(t, key, validClaims([]string{"archives:read"}))
	req = httptest.NewRequest(http.MethodPost, "/api/v1/archives/load", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec = httptest.NewRecorder()
	chain.ServeHTTP(rec, req)
	if rec.Code != http.StatusForbidden {
		t.Errorf("без нужного scope: хотели 403, получили %d", rec.Code)
	}
}

func TestClaims_ScopeFormats(t *testing.T) {
	// Пробело-разделённая строка OAuth2
	c := Claims{ScopeString: "archives:read archives:write"}
	scopes := c.Scopes()
	if len(scopes) != 2 || scopes[1] != "archives:write" {
		t.Errorf("scope-строка: хотели [archives:read archives:write], получили %v", scopes)
	}

	// Оба формата одновременно
	c = Claims{ScopeString: "a", ScopeArray: []string{"b", "c"}}
	if scopes = c.Scopes(); len(scopes) != 3 {
		t.Errorf("объединение форматов: хотели 3 scope, получили %v", scopes)
	}
}
