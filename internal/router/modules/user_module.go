package modules

import (
	"github.com/gin-gonic/gin"

	"account-api/internal/domain/repository"
	handlers "account-api/internal/interface/http"
	"account-api/internal/interface/middleware"
	"account-api/pkg/helpers"
)

// UserModule wires the account handlers and the auth gate into routes.
// Public: POST /api/users/register, POST /api/users/login
// Protected: GET /api/users/me, PUT /api/users/me/edit,
// POST /api/users/me/upload, DELETE /api/users/me/delete

type UserModule struct {
	Handler *handlers.UserHandler
	Repo    repository.UserRepository
	JWT     *helpers.JWTManager
}

func NewUserModule(h *handlers.UserHandler, repo repository.UserRepository, jwt *helpers.JWTManager) *UserModule {
	return &UserModule{Handler: h, Repo: repo, JWT: jwt}
}

func (m *UserModule) Register(rg *gin.RouterGroup) {
	rg.POST("/users/register", m.Handler.Register)
	rg.POST("/users/login", m.Handler.Login)

	me := rg.Group("/users/me")
	me.Use(middleware.Auth(m.Repo, m.JWT))
	{
		me.GET("", m.Handler.GetProfile)
		me.PUT("/edit", m.Handler.UpdateProfile)
		me.POST("/upload", m.Handler.UploadAvatar)
		me.DELETE("/delete", m.Handler.DeleteAccount)
	}
}
