package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	userapp "account-api/internal/application"
	"account-api/internal/domain/entity"
	"account-api/internal/domain/repository"
	"account-api/internal/interface/middleware"
	"account-api/pkg/helpers"
)

type mockRepo struct {
	mock.Mock
}

func (m *mockRepo) Create(ctx context.Context, u *entity.User) error {
	args := m.Called(ctx, u)
	return args.Error(0)
}

func (m *mockRepo) GetByID(ctx context.Context, id string) (*entity.User, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entity.User), args.Error(1)
}

func (m *mockRepo) GetByEmail(ctx context.Context, email string) (*entity.User, error) {
	args := m.Called(ctx, email)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entity.User), args.Error(1)
}

func (m *mockRepo) Update(ctx context.Context, u *entity.User) error {
	args := m.Called(ctx, u)
	return args.Error(0)
}

func (m *mockRepo) Delete(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

type mockUploader struct {
	mock.Mock
}

func (m *mockUploader) Upload(ctx context.Context, folder, ownerID, filename, contentType string, r io.Reader) (*userapp.Asset, error) {
	args := m.Called(ctx, folder, ownerID, filename, contentType, r)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*userapp.Asset), args.Error(1)
}

type envelope struct {
	Status  int            `json:"status"`
	Success bool           `json:"success"`
	Message string         `json:"message"`
	Data    map[string]any `json:"data"`
}

func setupRouter(repo repository.UserRepository, up userapp.MediaUploader) (*gin.Engine, *helpers.JWTManager) {
	gin.SetMode(gin.TestMode)
	jwt := helpers.NewJWTManager("handler-test-secret", time.Hour)
	logger := logrus.New()
	logger.SetOutput(io.Discard)

	svc := userapp.NewService(repo, jwt, up, "avatars", nil, logger, nil, 4, "account-api-test")
	h := NewUserHandler(svc, logger, "localhost", false, 50<<20)

	r := gin.New()
	api := r.Group("/api")
	api.POST("/users/register", h.Register)
	api.POST("/users/login", h.Login)
	me := api.Group("/users/me")
	me.Use(middleware.Auth(repo, jwt))
	{
		me.GET("", h.GetProfile)
		me.PUT("/edit", h.UpdateProfile)
		me.POST("/upload", h.UploadAvatar)
		me.DELETE("/delete", h.DeleteAccount)
	}
	return r, jwt
}

func doJSON(r *gin.Engine, method, path, token string, body any) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) envelope {
	t.Helper()
	var env envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
	return env
}

func TestRegisterEndpoint(t *testing.T) {
	repo := new(mockRepo)
	repo.On("Create", mock.Anything, mock.AnythingOfType("*entity.User")).Run(func(args mock.Arguments) {
		u := args.Get(1).(*entity.User)
		u.ID = "11111111-1111-1111-1111-111111111111"
		u.CreatedAt = time.Now()
		u.UpdatedAt = u.CreatedAt
	}).Return(nil)
	r, _ := setupRouter(repo, nil)

	w := doJSON(r, http.MethodPost, "/api/users/register", "", gin.H{
		"name": "Ada", "email": "ada@x.com", "password": "pw123",
	})

	require.Equal(t, http.StatusCreated, w.Code)
	env := decode(t, w)
	assert.True(t, env.Success)
	assert.Equal(t, "ada@x.com", env.Data["email"])
	assert.NotEmpty(t, env.Data["token"])
	assert.Nil(t, env.Data["avatar"])
	// the password hash never leaves the server
	assert.NotContains(t, w.Body.String(), "password")
	assert.NotContains(t, w.Body.String(), "$2a$")
}

func TestRegisterEndpointDuplicateEmail(t *testing.T) {
	repo := new(mockRepo)
	repo.On("Create", mock.Anything, mock.AnythingOfType("*entity.User")).Return(repository.ErrEmailTaken)
	r, _ := setupRouter(repo, nil)

	w := doJSON(r, http.MethodPost, "/api/users/register", "", gin.H{
		"name": "Ada", "email": "ada@x.com", "password": "pw123",
	})

	assert.Equal(t, http.StatusBadRequest, w.Code)
	env := decode(t, w)
	assert.False(t, env.Success)
}

func TestRegisterEndpointMissingFields(t *testing.T) {
	repo := new(mockRepo)
	r, _ := setupRouter(repo, nil)

	w := doJSON(r, http.MethodPost, "/api/users/register", "", gin.H{"email": "ada@x.com"})

	assert.Equal(t, http.StatusBadRequest, w.Code)
	repo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestLoginEndpointInvalidCredentials(t *testing.T) {
	hash, err := helpers.HashPassword("pw123", 4)
	require.NoError(t, err)
	stored := &entity.User{ID: "u-1", Email: "ada@x.com", Password: hash, Name: "Ada"}

	repo := new(mockRepo)
	repo.On("GetByEmail", mock.Anything, "ada@x.com").Return(stored, nil)
	repo.On("GetByEmail", mock.Anything, "ghost@x.com").Return(nil, repository.ErrNotFound)
	r, _ := setupRouter(repo, nil)

	wrongPw := doJSON(r, http.MethodPost, "/api/users/login", "", gin.H{"email": "ada@x.com", "password": "wrong"})
	unknown := doJSON(r, http.MethodPost, "/api/users/login", "", gin.H{"email": "ghost@x.com", "password": "pw123"})

	assert.Equal(t, http.StatusBadRequest, wrongPw.Code)
	assert.Equal(t, http.StatusBadRequest, unknown.Code)
	// no-such-user and wrong-password answers must not be distinguishable
	assert.Equal(t, decode(t, wrongPw).Message, decode(t, unknown).Message)
}

func TestLoginEndpointSuccess(t *testing.T) {
	hash, err := helpers.HashPassword("pw123", 4)
	require.NoError(t, err)
	stored := &entity.User{ID: "u-1", Email: "ada@x.com", Password: hash, Name: "Ada"}

	repo := new(mockRepo)
	repo.On("GetByEmail", mock.Anything, "ada@x.com").Return(stored, nil)
	r, jwt := setupRouter(repo, nil)

	w := doJSON(r, http.MethodPost, "/api/users/login", "", gin.H{"email": "ada@x.com", "password": "pw123"})

	require.Equal(t, http.StatusOK, w.Code)
	env := decode(t, w)
	token, _ := env.Data["token"].(string)
	require.NotEmpty(t, token)
	claims, err := jwt.ParseAccessToken(token)
	require.NoError(t, err)
	assert.Equal(t, "u-1", claims.UserID)
}

func TestProtectedRoutesRejectWithoutToken(t *testing.T) {
	repo := new(mockRepo)
	r, _ := setupRouter(repo, nil)

	for _, tc := range []struct{ method, path string }{
		{http.MethodGet, "/api/users/me"},
		{http.MethodPut, "/api/users/me/edit"},
		{http.MethodPost, "/api/users/me/upload"},
		{http.MethodDelete, "/api/users/me/delete"},
	} {
		w := doJSON(r, tc.method, tc.path, "", nil)
		assert.Equal(t, http.StatusUnauthorized, w.Code, "%s %s", tc.method, tc.path)
	}
	// rejected before the store is ever touched
	repo.AssertNotCalled(t, "GetByID", mock.Anything, mock.Anything)
}

func TestProtectedRoutesRejectGarbageToken(t *testing.T) {
	repo := new(mockRepo)
	r, _ := setupRouter(repo, nil)

	w := doJSON(r, http.MethodGet, "/api/users/me", "not-a-jwt", nil)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	repo.AssertNotCalled(t, "GetByID", mock.Anything, mock.Anything)
}

func TestGetProfileEndpoint(t *testing.T) {
	stored := &entity.User{ID: "u-1", Email: "ada@x.com", Name: "Ada", Phone: "123"}
	repo := new(mockRepo)
	repo.On("GetByID", mock.Anything, "u-1").Return(stored, nil)
	r, jwt := setupRouter(repo, nil)

	token, _, err := jwt.GenerateAccessToken("u-1")
	require.NoError(t, err)

	w := doJSON(r, http.MethodGet, "/api/users/me", token, nil)

	require.Equal(t, http.StatusOK, w.Code)
	env := decode(t, w)
	assert.Equal(t, "ada@x.com", env.Data["email"])
	assert.Nil(t, env.Data["avatar"])
	assert.NotContains(t, w.Body.String(), "password")
}

func TestEditEndpointAllowList(t *testing.T) {
	stored := &entity.User{ID: "u-1", Email: "ada@x.com", Name: "Ada"}
	repo := new(mockRepo)
	repo.On("GetByID", mock.Anything, "u-1").Return(stored, nil)
	repo.On("Update", mock.Anything, mock.AnythingOfType("*entity.User")).Return(nil)
	r, jwt := setupRouter(repo, nil)

	token, _, err := jwt.GenerateAccessToken("u-1")
	require.NoError(t, err)

	// avatar and password are not editable through this route
	w := doJSON(r, http.MethodPut, "/api/users/me/edit", token, gin.H{
		"name":     "Ada Lovelace",
		"password": "sneaky",
		"avatar":   "https://evil.example/x.png",
	})

	require.Equal(t, http.StatusOK, w.Code)
	env := decode(t, w)
	assert.Equal(t, "Ada Lovelace", env.Data["name"])
	assert.Nil(t, env.Data["avatar"])
	assert.Equal(t, "Ada Lovelace", stored.Name)
	assert.Empty(t, stored.AvatarURL)
	assert.Empty(t, stored.Password)
}

func TestDeleteEndpointTwice(t *testing.T) {
	stored := &entity.User{ID: "u-1", Email: "ada@x.com", Name: "Ada"}
	repo := new(mockRepo)
	repo.On("GetByID", mock.Anything, "u-1").Return(stored, nil).Once()
	repo.On("Delete", mock.Anything, "u-1").Return(nil).Once()
	repo.On("GetByID", mock.Anything, "u-1").Return(nil, repository.ErrNotFound)
	r, jwt := setupRouter(repo, nil)

	token, _, err := jwt.GenerateAccessToken("u-1")
	require.NoError(t, err)

	first := doJSON(r, http.MethodDelete, "/api/users/me/delete", token, nil)
	require.Equal(t, http.StatusOK, first.Code)
	assert.Equal(t, "u-1", decode(t, first).Data["id"])

	// the token no longer resolves to an account
	second := doJSON(r, http.MethodDelete, "/api/users/me/delete", token, nil)
	assert.Equal(t, http.StatusUnauthorized, second.Code)
	repo.AssertNumberOfCalls(t, "Delete", 1)
}

func multipartBody(t *testing.T, field, filename, content string) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile(field, filename)
	require.NoError(t, err)
	_, err = io.Copy(fw, strings.NewReader(content))
	require.NoError(t, err)
	require.NoError(t, mw.Close())
	return &buf, mw.FormDataContentType()
}

func TestUploadEndpoint(t *testing.T) {
	t.Run("missing file", func(t *testing.T) {
		stored := &entity.User{ID: "u-1", Email: "ada@x.com"}
		repo := new(mockRepo)
		repo.On("GetByID", mock.Anything, "u-1").Return(stored, nil)
		r, jwt := setupRouter(repo, nil)

		token, _, err := jwt.GenerateAccessToken("u-1")
		require.NoError(t, err)

		w := doJSON(r, http.MethodPost, "/api/users/me/upload", token, nil)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("uploader failure", func(t *testing.T) {
		stored := &entity.User{ID: "u-1", Email: "ada@x.com", AvatarURL: "https://cdn/old.png"}
		repo := new(mockRepo)
		repo.On("GetByID", mock.Anything, "u-1").Return(stored, nil)
		up := new(mockUploader)
		up.On("Upload", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).
			Return(nil, errors.New("remote host unavailable"))
		r, jwt := setupRouter(repo, up)

		token, _, err := jwt.GenerateAccessToken("u-1")
		require.NoError(t, err)

		body, contentType := multipartBody(t, "file", "me.png", "img-bytes")
		req := httptest.NewRequest(http.MethodPost, "/api/users/me/upload", body)
		req.Header.Set("Content-Type", contentType)
		req.Header.Set("Authorization", "Bearer "+token)
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)

		assert.Equal(t, http.StatusInternalServerError, w.Code)
		repo.AssertNotCalled(t, "Update", mock.Anything, mock.Anything)
		assert.Equal(t, "https://cdn/old.png", stored.AvatarURL)
	})

	t.Run("success", func(t *testing.T) {
		stored := &entity.User{ID: "u-1", Email: "ada@x.com", Name: "Ada"}
		repo := new(mockRepo)
		repo.On("GetByID", mock.Anything, "u-1").Return(stored, nil)
		repo.On("Update", mock.Anything, mock.AnythingOfType("*entity.User")).Return(nil)
		up := new(mockUploader)
		up.On("Upload", mock.Anything, "avatars", "u-1", "me.png", mock.Anything, mock.Anything).
			Return(&userapp.Asset{URL: "https://storage.googleapis.com/b/avatars/u-1/x.png", AssetID: "avatars/u-1/x.png"}, nil)
		r, jwt := setupRouter(repo, up)

		token, _, err := jwt.GenerateAccessToken("u-1")
		require.NoError(t, err)

		body, contentType := multipartBody(t, "file", "me.png", "img-bytes")
		req := httptest.NewRequest(http.MethodPost, "/api/users/me/upload", body)
		req.Header.Set("Content-Type", contentType)
		req.Header.Set("Authorization", "Bearer "+token)
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)

		require.Equal(t, http.StatusOK, w.Code)
		env := decode(t, w)
		assert.Equal(t, "https://storage.googleapis.com/b/avatars/u-1/x.png", env.Data["avatar"])
	})
}

func TestLoginEndpointStoreFailure(t *testing.T) {
	repo := new(mockRepo)
	repo.On("GetByEmail", mock.Anything, "ada@x.com").Return(nil, errors.New("connection refused"))
	r, _ := setupRouter(repo, nil)

	w := doJSON(r, http.MethodPost, "/api/users/login", "", gin.H{"email": "ada@x.com", "password": "pw123"})

	// a dead store is a server error, not a credentials failure
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.False(t, decode(t, w).Success)
}

func TestGetProfileEndpointStoreFailure(t *testing.T) {
	stored := &entity.User{ID: "u-1", Email: "ada@x.com", Name: "Ada"}
	repo := new(mockRepo)
	// the auth gate resolves the user, then the store drops out
	repo.On("GetByID", mock.Anything, "u-1").Return(stored, nil).Once()
	repo.On("GetByID", mock.Anything, "u-1").Return(nil, errors.New("connection refused"))
	r, jwt := setupRouter(repo, nil)

	token, _, err := jwt.GenerateAccessToken("u-1")
	require.NoError(t, err)

	w := doJSON(r, http.MethodGet, "/api/users/me", token, nil)

	assert.Equal(t, http.StatusInternalServerError, w.Code)
}
