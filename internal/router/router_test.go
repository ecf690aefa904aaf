package router

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/noah-isme/car-marketplace-api/internal/middleware"
	"github.com/noah-isme/car-marketplace-api/internal/models"
	"github.com/noah-isme/car-marketplace-api/internal/ratelimit"
	"github.com/noah-isme/car-marketplace-api/internal/service"
	"github.com/noah-isme/car-marketplace-api/internal/token"
	"github.com/noah-isme/car-marketplace-api/internal/validation"
	"github.com/noah-isme/car-marketplace-api/pkg/config"
)

const testPassword = "Passw0rd!"

type testApp struct {
	router  *gin.Engine
	auth    *service.AuthService
	users   *userStore
	catalog *catalogStore
}

func newTestApp(t *testing.T, limiter ratelimit.Limiter) *testApp {
	t.Helper()
	gin.SetMode(gin.TestMode)
	require.NoError(t, validation.RegisterGin())

	codec, err := token.NewCodec(token.Config{Secret: "test-secret", Algorithm: "HS256", AccessTTL: 15 * time.Minute, RefreshTTL: 24 * time.Hour})
	require.NoError(t, err)

	users := newUserStore()
	metrics := service.NewMetricsService()
	auth := service.NewAuthService(users, &banStore{}, codec, nil, nil, metrics, service.AuthConfig{
		DefaultScopes: []string{models.ScopeUserRead, models.ScopeCarRead},
		BcryptCost:    bcrypt.MinCost,
	})

	catalog := newCatalogStore()
	cars := service.NewCarService(service.CarServiceParams{
		Brands: brandStore{catalog},
		Models: modelStore{catalog},
		Cars:   carStore{catalog},
	})

	cfg := &config.Config{Env: config.EnvDevelopment, APIPrefix: "/api", Debug: true}
	r := New(Params{
		Config:  cfg,
		Auth:    auth,
		Catalog: cars,
		Metrics: metrics,
		Limiter: limiter,
		Audit:   users,
	})
	return &testApp{router: r, auth: auth, users: users, catalog: catalog}
}

func (a *testApp) createUser(t *testing.T, email string, scopes ...string) *models.User {
	t.Helper()
	if len(scopes) == 0 {
		scopes = []string{models.ScopeUserRead, models.ScopeCarRead}
	}
	user, err := a.auth.CreateUser(context.Background(), models.CreateUserRequest{
		Email:    email,
		Password: testPassword,
		Name:     "Test",
		Surname:  "User",
		Scopes:   scopes,
	}, models.RequestMeta{})
	require.NoError(t, err)
	return user
}

func (a *testApp) seedModel() string {
	brand := &models.Brand{Name: "Lada"}
	_ = brandStore{a.catalog}.Create(context.Background(), brand)
	model := &models.Model{BrandID: brand.ID, Name: "Niva"}
	_ = modelStore{a.catalog}.Create(context.Background(), model)
	return model.ID
}

func (a *testApp) do(method, path string, body interface{}, setup ...func(*http.Request)) *httptest.ResponseRecorder {
	var payload bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&payload).Encode(body)
	}
	req := httptest.NewRequest(method, path, &payload)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for _, fn := range setup {
		fn(req)
	}
	rec := httptest.NewRecorder()
	a.router.ServeHTTP(rec, req)
	return rec
}

type sessionTokens struct {
	access  string
	refresh *http.Cookie
}

func (a *testApp) login(t *testing.T, email string) sessionTokens {
	t.Helper()
	rec := a.do(http.MethodPost, "/api/auth/login", map[string]string{"email": email, "password": testPassword})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var envelope struct {
		Data models.SessionResponse `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &envelope))
	require.NotNil(t, envelope.Data.Tokens)

	out := sessionTokens{access: envelope.Data.Tokens.AccessToken.Token}
	for _, c := range rec.Result().Cookies() {
		if c.Name == middleware.RefreshTokenCookie {
			out.refresh = c
		}
	}
	require.NotNil(t, out.refresh)
	return out
}

func bearer(token string) func(*http.Request) {
	return func(r *http.Request) { r.Header.Set("Authorization", "Bearer "+token) }
}

func withCookie(c *http.Cookie) func(*http.Request) {
	return func(r *http.Request) { r.AddCookie(&http.Cookie{Name: c.Name, Value: c.Value}) }
}

type errorEnvelope struct {
	Error struct {
		Code    string                 `json:"code"`
		Details map[string]interface{} `json:"details"`
	} `json:"error"`
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) errorEnvelope {
	t.Helper()
	var env errorEnvelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	return env
}

func TestScopeGrantUnlocksListingCreation(t *testing.T) {
	app := newTestApp(t, nil)
	app.createUser(t, "admin@example.com", models.ScopeAdmin)
	seller := app.createUser(t, "seller@example.com")
	modelID := app.seedModel()

	sellerSession := app.login(t, "seller@example.com")
	listing := map[string]interface{}{
		"model_id":     modelID,
		"year":         2015,
		"price":        5000,
		"mileage":      120000,
		"condition":    "used",
		"fuel_type":    "petrol",
		"transmission": "manual",
		"drive_type":   "full",
	}

	rec := app.do(http.MethodPost, "/api/secured/cars", listing, bearer(sellerSession.access))
	require.Equal(t, http.StatusForbidden, rec.Code)
	env := decodeError(t, rec)
	assert.Equal(t, "PERMISSION_DENIED", env.Error.Code)
	assert.Equal(t, []interface{}{models.ScopeCarCreate}, env.Error.Details["missing_scopes"])

	adminSession := app.login(t, "admin@example.com")
	rec = app.do(http.MethodPost, "/api/secured/scopes/users/"+seller.ID,
		map[string][]string{"scopes": {models.ScopeCarCreate}}, bearer(adminSession.access))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = app.do(http.MethodPost, "/api/secured/cars", listing, bearer(sellerSession.access))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var created struct {
		Data models.Car `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	require.NotNil(t, created.Data.SellerID)
	assert.Equal(t, seller.ID, *created.Data.SellerID)

	rec = app.do(http.MethodGet, "/api/public/cars?model_id="+modelID, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), created.Data.ID)
}

func TestRefreshTokenIsSingleUse(t *testing.T) {
	app := newTestApp(t, nil)
	app.createUser(t, "buyer@example.com")
	session := app.login(t, "buyer@example.com")

	rec := app.do(http.MethodPost, "/api/auth/refresh", nil, withCookie(session.refresh))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = app.do(http.MethodPost, "/api/auth/refresh", nil, withCookie(session.refresh))
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "INVALID_TOKEN", decodeError(t, rec).Error.Code)
}

func TestLogoutRevokesRefreshToken(t *testing.T) {
	app := newTestApp(t, nil)
	app.createUser(t, "buyer@example.com")
	session := app.login(t, "buyer@example.com")

	rec := app.do(http.MethodGet, "/api/auth/logout", nil, withCookie(session.refresh))
	require.Equal(t, http.StatusNoContent, rec.Code)

	rec = app.do(http.MethodGet, "/api/auth/refresh", nil, withCookie(session.refresh))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, app.users.actions(), models.AuditActionLogout)
}

func TestSecuredRoutesRequireCredentials(t *testing.T) {
	app := newTestApp(t, nil)

	rec := app.do(http.MethodGet, "/api/secured/users/me", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "UNAUTHORIZED", decodeError(t, rec).Error.Code)

	rec = app.do(http.MethodGet, "/api/secured/users/me", nil, bearer("not-a-jwt"))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "INVALID_TOKEN", decodeError(t, rec).Error.Code)
}

func TestAccessCookieAuthenticates(t *testing.T) {
	app := newTestApp(t, nil)
	app.createUser(t, "buyer@example.com")
	session := app.login(t, "buyer@example.com")

	rec := app.do(http.MethodGet, "/api/secured/users/me", nil, func(r *http.Request) {
		r.AddCookie(&http.Cookie{Name: middleware.AccessTokenCookie, Value: session.access})
	})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "buyer@example.com")
}

func TestAdminCatalogWritesAreAudited(t *testing.T) {
	app := newTestApp(t, nil)
	app.createUser(t, "admin@example.com", models.ScopeAdmin)
	session := app.login(t, "admin@example.com")

	rec := app.do(http.MethodPost, "/api/secured/admin/brands", map[string]string{"name": "Volga"}, bearer(session.access))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Contains(t, app.users.actions(), models.AuditActionBrandCreate)

	rec = app.do(http.MethodGet, "/api/public/brands", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Volga")
}

func TestBlockedUserCannotRefresh(t *testing.T) {
	app := newTestApp(t, nil)
	app.createUser(t, "admin@example.com", models.ScopeAdmin)
	target := app.createUser(t, "buyer@example.com")
	buyer := app.login(t, "buyer@example.com")
	admin := app.login(t, "admin@example.com")

	rec := app.do(http.MethodPost, "/api/secured/users/"+target.ID+"/block", nil, bearer(admin.access))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = app.do(http.MethodPost, "/api/auth/refresh", nil, withCookie(buyer.refresh))
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = app.do(http.MethodPost, "/api/auth/login", map[string]string{"email": "buyer@example.com", "password": testPassword})
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestLoginIsRateLimited(t *testing.T) {
	app := newTestApp(t, ratelimit.NewMemoryLimiter(2, time.Minute))
	payload := map[string]string{"email": "nobody@example.com", "password": "wrong"}

	for i := 0; i < 2; i++ {
		rec := app.do(http.MethodPost, "/api/auth/login", payload)
		require.Equal(t, http.StatusUnauthorized, rec.Code)
	}

	rec := app.do(http.MethodPost, "/api/auth/login", payload)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))
}

func TestHealthEndpoints(t *testing.T) {
	app := newTestApp(t, nil)

	rec := app.do(http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = app.do(http.MethodGet, "/ready", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = app.do(http.MethodGet, "/metrics", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}
