package handler

import (
	"context"
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/car-marketplace-api/internal/models"
	"github.com/noah-isme/car-marketplace-api/internal/validation"
	appErrors "github.com/noah-isme/car-marketplace-api/pkg/errors"
)

type fakeUserSrv struct {
	scopes   []string
	lastID   string
	lastMeta models.RequestMeta
	err      error
}

func (f *fakeUserSrv) CreateUser(_ context.Context, req models.CreateUserRequest, meta models.RequestMeta) (*models.User, error) {
	f.lastMeta = meta
	return &models.User{ID: "new", Email: req.Email}, f.err
}

func (f *fakeUserSrv) GetUser(_ context.Context, id string) (*models.User, error) {
	f.lastID = id
	if f.err != nil {
		return nil, f.err
	}
	return &models.User{ID: id}, nil
}

func (f *fakeUserSrv) UpdateUser(_ context.Context, id string, _ models.UpdateUserRequest, meta models.RequestMeta) (*models.User, error) {
	f.lastID, f.lastMeta = id, meta
	return &models.User{ID: id}, f.err
}

func (f *fakeUserSrv) BlockUser(_ context.Context, id string, meta models.RequestMeta) (*models.User, error) {
	f.lastID, f.lastMeta = id, meta
	if f.err != nil {
		return nil, f.err
	}
	return &models.User{ID: id}, nil
}

func (f *fakeUserSrv) UnblockUser(_ context.Context, id string, meta models.RequestMeta) (*models.User, error) {
	return f.BlockUser(context.Background(), id, meta)
}

func (f *fakeUserSrv) GetUserScopes(_ context.Context, id string) ([]string, error) {
	f.lastID = id
	return f.scopes, f.err
}

func (f *fakeUserSrv) AddScopes(_ context.Context, id string, scopes []string, meta models.RequestMeta) ([]string, error) {
	f.lastID, f.lastMeta = id, meta
	if f.err != nil {
		return nil, f.err
	}
	return append(f.scopes, scopes...), nil
}

func (f *fakeUserSrv) UpdateScopes(_ context.Context, id string, scopes []string, meta models.RequestMeta) ([]string, error) {
	f.lastID, f.lastMeta = id, meta
	return scopes, f.err
}

func (f *fakeUserSrv) RemoveScopes(_ context.Context, id string, _ []string, meta models.RequestMeta) ([]string, error) {
	f.lastID, f.lastMeta = id, meta
	return nil, f.err
}

func TestUserHandlerMeUsesCaller(t *testing.T) {
	srv := &fakeUserSrv{}
	h := NewUserHandler(srv)

	c, rec := newAuthContext(http.MethodGet, "/secured/users/me", "")
	withCaller(c, "user-7")
	h.Me(c)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "user-7", srv.lastID)
}

func TestUserHandlerMeWithoutClaims(t *testing.T) {
	h := NewUserHandler(&fakeUserSrv{})

	c, rec := newAuthContext(http.MethodGet, "/secured/users/me", "")
	h.Me(c)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestUserHandlerBlockRecordsActor(t *testing.T) {
	srv := &fakeUserSrv{}
	h := NewUserHandler(srv)

	c, rec := newAuthContext(http.MethodPost, "/secured/users/u1/block", "")
	c.Params = gin.Params{{Key: "id", Value: "u1"}}
	withCaller(c, "admin-1")
	h.Block(c)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "u1", srv.lastID)
	assert.Equal(t, "admin-1", srv.lastMeta.ActorID)
}

func TestUserHandlerGetNotFound(t *testing.T) {
	h := NewUserHandler(&fakeUserSrv{err: appErrors.ErrNotFound})

	c, rec := newAuthContext(http.MethodGet, "/secured/users/u1", "")
	c.Params = gin.Params{{Key: "id", Value: "u1"}}
	h.Get(c)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestScopeHandlerMine(t *testing.T) {
	srv := &fakeUserSrv{scopes: []string{models.ScopeUserRead}}
	h := NewScopeHandler(srv)

	c, rec := newAuthContext(http.MethodGet, "/secured/scopes/me", "")
	withCaller(c, "user-7")
	h.Mine(c)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "user-7", srv.lastID)
	assert.Contains(t, rec.Body.String(), `"scopes":["user:read"]`)
}

func TestScopeHandlerAdd(t *testing.T) {
	srv := &fakeUserSrv{scopes: []string{models.ScopeUserRead}}
	h := NewScopeHandler(srv)

	c, rec := newAuthContext(http.MethodPost, "/secured/scopes/users/u1", `{"scopes":["car:create"]}`)
	c.Params = gin.Params{{Key: "id", Value: "u1"}}
	withCaller(c, "admin-1")
	h.Add(c)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "u1", srv.lastID)
	assert.Contains(t, rec.Body.String(), `"scopes":["user:read","car:create"]`)
}

func TestScopeHandlerRequiresScopesField(t *testing.T) {
	require.NoError(t, validation.RegisterGin())
	h := NewScopeHandler(&fakeUserSrv{})

	c, rec := newAuthContext(http.MethodPut, "/secured/scopes/users/u1", `{}`)
	h.Replace(c)

	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Contains(t, rec.Body.String(), `"field":"scopes"`)
}

func TestScopeHandlerPropagatesValidation(t *testing.T) {
	h := NewScopeHandler(&fakeUserSrv{err: appErrors.Validation("scopes", "unknown scopes", nil)})

	c, rec := newAuthContext(http.MethodPost, "/secured/scopes/users/u1", `{"scopes":["root"]}`)
	h.Add(c)

	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}
