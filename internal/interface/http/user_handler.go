package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	userapp "account-api/internal/application"
	"account-api/internal/domain/entity"
	"account-api/internal/domain/repository"
	"account-api/internal/interface/middleware"
	"account-api/pkg/helpers"
	"account-api/pkg/response"
	"account-api/pkg/validation"
)

type UserHandler struct {
	Svc            *userapp.Service
	Logger         *logrus.Logger
	Cookies        *helpers.Manager
	MaxUploadBytes int64
}

func NewUserHandler(svc *userapp.Service, logger *logrus.Logger, cookieDomain string, cookieSecure bool, maxUploadBytes int64) *UserHandler {
	return &UserHandler{
		Svc:            svc,
		Logger:         logger,
		Cookies:        helpers.NewCookie(cookieDomain, cookieSecure),
		MaxUploadBytes: maxUploadBytes,
	}
}

type registerRequest struct {
	Name     string `json:"name" binding:"required"`
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

type loginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

type editRequest struct {
	Name    string `json:"name"`
	Email   string `json:"email" binding:"omitempty,email"`
	Phone   string `json:"phone"`
	Address string `json:"address"`
}

// profileData builds the public profile payload. The avatar is null until
// one has been uploaded; the password hash is never part of it.
func profileData(u *entity.User, token string) gin.H {
	var avatar any
	if u.AvatarURL != "" {
		avatar = u.AvatarURL
	}
	data := gin.H{
		"id":         u.ID,
		"name":       u.Name,
		"email":      u.Email,
		"avatar":     avatar,
		"phone":      u.Phone,
		"address":    u.Address,
		"created_at": u.CreatedAt,
		"updated_at": u.UpdatedAt,
	}
	if token != "" {
		data["token"] = token
	}
	return data
}

// Register POST /api/users/register
func (h *UserHandler) Register(c *gin.Context) {
	var req registerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error[any](c, http.StatusBadRequest, "invalid payload", validation.ToDetails(err))
		return
	}

	u, tok, err := h.Svc.Register(c.Request.Context(), req.Name, req.Email, req.Password)
	if err != nil {
		switch {
		case errors.Is(err, userapp.ErrMissingFields):
			response.Error[any](c, http.StatusBadRequest, err.Error(), nil)
		case errors.Is(err, repository.ErrEmailTaken):
			response.Error[any](c, http.StatusBadRequest, "email already registered", nil)
		default:
			h.Logger.WithError(err).Error("register failed")
			response.Error[any](c, http.StatusInternalServerError, "could not create account", nil)
		}
		return
	}

	h.Cookies.SetAccess(c, tok.Token, tok.ExpiresAt)
	response.Success(c, http.StatusCreated, profileData(u, tok.Token), "account created", gin.H{"token_expires_at": tok.ExpiresAt})
}

// Login POST /api/users/login
func (h *UserHandler) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error[any](c, http.StatusBadRequest, "invalid payload", validation.ToDetails(err))
		return
	}

	u, tok, err := h.Svc.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		if errors.Is(err, userapp.ErrInvalidCredentials) {
			// Unknown email and wrong password produce the same answer.
			response.Error[any](c, http.StatusBadRequest, "invalid credentials", nil)
			return
		}
		h.Logger.WithError(err).Error("login failed")
		response.Error[any](c, http.StatusInternalServerError, "could not log in", nil)
		return
	}

	h.Cookies.SetAccess(c, tok.Token, tok.ExpiresAt)
	response.Success(c, http.StatusOK, profileData(u, tok.Token), "login successful", gin.H{"token_expires_at": tok.ExpiresAt})
}

// GetProfile GET /api/users/me
func (h *UserHandler) GetProfile(c *gin.Context) {
	uid := c.GetString(middleware.CtxUserIDKey)
	u, err := h.Svc.GetProfile(c.Request.Context(), uid)
	if err != nil {
		if errors.Is(err, userapp.ErrUserNotFound) {
			response.Error[any](c, http.StatusNotFound, "user not found", nil)
			return
		}
		h.Logger.WithError(err).WithField("user_id", uid).Error("profile fetch failed")
		response.Error[any](c, http.StatusInternalServerError, "could not load profile", nil)
		return
	}
	response.Success(c, http.StatusOK, profileData(u, ""), "profile", nil)
}

// UpdateProfile PUT /api/users/me/edit
func (h *UserHandler) UpdateProfile(c *gin.Context) {
	uid := c.GetString(middleware.CtxUserIDKey)
	var req editRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error[any](c, http.StatusBadRequest, "invalid payload", validation.ToDetails(err))
		return
	}

	u, err := h.Svc.UpdateProfile(c.Request.Context(), uid, userapp.ProfilePatch{
		Name:    req.Name,
		Email:   req.Email,
		Phone:   req.Phone,
		Address: req.Address,
	})
	if err != nil {
		switch {
		case errors.Is(err, userapp.ErrUserNotFound):
			response.Error[any](c, http.StatusUnauthorized, "not authorized", nil)
		case errors.Is(err, repository.ErrEmailTaken):
			response.Error[any](c, http.StatusBadRequest, "email already registered", nil)
		default:
			h.Logger.WithError(err).WithField("user_id", uid).Error("profile update failed")
			response.Error[any](c, http.StatusInternalServerError, "could not update profile", nil)
		}
		return
	}
	response.Success(c, http.StatusOK, profileData(u, ""), "profile updated", nil)
}

// UploadAvatar POST /api/users/me/upload
func (h *UserHandler) UploadAvatar(c *gin.Context) {
	uid := c.GetString(middleware.CtxUserIDKey)

	fh, err := c.FormFile("file")
	if err != nil {
		response.Error[any](c, http.StatusBadRequest, "no file uploaded", nil)
		return
	}
	if h.MaxUploadBytes > 0 && fh.Size > h.MaxUploadBytes {
		response.Error[any](c, http.StatusBadRequest, "file too large", nil)
		return
	}

	f, err := fh.Open()
	if err != nil {
		response.Error[any](c, http.StatusBadRequest, "unreadable file", nil)
		return
	}
	defer func() { _ = f.Close() }()

	u, err := h.Svc.UploadAvatar(c.Request.Context(), uid, f, fh.Filename, fh.Header.Get("Content-Type"))
	if err != nil {
		if errors.Is(err, userapp.ErrUserNotFound) {
			response.Error[any](c, http.StatusUnauthorized, "not authorized", nil)
			return
		}
		h.Logger.WithError(err).WithField("user_id", uid).Error("avatar upload failed")
		response.Error[any](c, http.StatusInternalServerError, "upload failed", nil)
		return
	}
	response.Success(c, http.StatusOK, profileData(u, ""), "avatar uploaded", nil)
}

// DeleteAccount DELETE /api/users/me/delete
func (h *UserHandler) DeleteAccount(c *gin.Context) {
	uid := c.GetString(middleware.CtxUserIDKey)
	id, err := h.Svc.DeleteAccount(c.Request.Context(), uid)
	if err != nil {
		if errors.Is(err, userapp.ErrUserNotFound) {
			response.Error[any](c, http.StatusUnauthorized, "not authorized", nil)
			return
		}
		h.Logger.WithError(err).WithField("user_id", uid).Error("account deletion failed")
		response.Error[any](c, http.StatusInternalServerError, "could not delete account", nil)
		return
	}
	h.Cookies.Clear(c)
	response.Success(c, http.StatusOK, gin.H{"id": id}, "account deleted", nil)
}
