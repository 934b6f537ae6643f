package router

import (
	userapp "account-api/internal/application"
	"account-api/internal/container"
	"account-api/internal/domain/repository"
	gcsinfra "account-api/internal/infrastructure/gcs"
	pginfra "account-api/internal/infrastructure/postgres"
	handlers "account-api/internal/interface/http"
	"account-api/internal/router/modules"
)

type UserModuleDeps struct {
	Repo    repository.UserRepository
	Service *userapp.Service
	Handler *handlers.UserHandler
}

func buildUserDeps() UserModuleDeps {
	cfg := container.GetConfig()

	repo := pginfra.NewUserRepository(container.GetPGPool())
	uploader := gcsinfra.NewUploader(container.GetGCS(), cfg.GCSBucket)

	// A typed nil *RabbitPublisher must stay a nil interface so the service
	// skips publishing instead of calling through it.
	var pub userapp.Publisher
	if p := container.GetRabbitPub(); p != nil {
		pub = p
	}

	service := userapp.NewService(
		repo,
		container.GetJWT(),
		uploader,
		cfg.GCSAvatarFolder,
		container.GetRedis(),
		container.GetLogger(),
		pub,
		cfg.BcryptCost,
		cfg.AppName,
	)

	handler := handlers.NewUserHandler(
		service,
		container.GetLogger(),
		cfg.CookieDomain,
		cfg.CookieSecure,
		cfg.MaxUploadBytes,
	)

	return UserModuleDeps{Repo: repo, Service: service, Handler: handler}
}

// InitModules initializes all application modules and registers them with
// the router registry. Called once during startup.
func InitModules(r *Registry) {
	userDeps := buildUserDeps()
	r.Add(modules.NewUserModule(userDeps.Handler, userDeps.Repo, container.GetJWT()))
}
