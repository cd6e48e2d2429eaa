package api

import (
	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/paperbase/paperbase/internal/api/handler"
	"github.com/paperbase/paperbase/internal/api/middleware"
	"github.com/paperbase/paperbase/internal/apikey"
	"github.com/paperbase/paperbase/internal/auth"
	"github.com/paperbase/paperbase/internal/user"
	"github.com/paperbase/paperbase/internal/workspace"
)

// RouterDeps holds all dependencies needed by the router.
type RouterDeps struct {
	Authenticator *auth.Authenticator
	Audit         auth.Recorder
	KeyService    *apikey.Service
	KeyRepo       apikey.Repository
	UserRepo      user.Repository
	WorkspaceRepo workspace.Repository
	DBPinger      handler.DBPinger
	Version       string
}

// NewRouter creates and configures a Chi router with all middleware and
// routes. Two route classes exist behind authentication: admin-only
// routes accept API keys exclusively; tenant-facing routes accept admin
// and external tokens exclusively.
func NewRouter(deps RouterDeps) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.Recovery)
	r.Use(chimiddleware.Logger)

	healthHandler := handler.NewHealthHandler(deps.DBPinger, deps.Version)
	r.Get("/health", healthHandler.ServeHTTP)

	workspaceHandler := handler.NewWorkspaceHandler(deps.WorkspaceRepo)
	userHandler := handler.NewUserHandler(deps.UserRepo)
	keyHandler := handler.NewAPIKeyHandler(deps.KeyService, deps.KeyRepo)

	r.Group(func(r chi.Router) {
		r.Use(middleware.Authenticate(deps.Authenticator))

		r.Route("/workspaces", func(r chi.Router) {
			r.Use(middleware.RequireTenant(deps.Audit))
			r.Get("/", workspaceHandler.List)
			r.Get("/{id}", workspaceHandler.GetByID)
		})

		r.Route("/admin", func(r chi.Router) {
			r.Use(middleware.RequireAdminKey(deps.Audit))

			r.Route("/workspaces", func(r chi.Router) {
				r.Post("/", workspaceHandler.Create)
				r.Get("/{id}/members", workspaceHandler.ListMembers)
				r.Post("/{id}/members", workspaceHandler.AddMember)
				r.Delete("/{id}/members/{userId}", workspaceHandler.RemoveMember)
			})

			r.Route("/users", func(r chi.Router) {
				r.Get("/", userHandler.List)
				r.Patch("/{id}/suspension", userHandler.SetSuspended)
			})

			r.Route("/keys", func(r chi.Router) {
				r.Post("/", keyHandler.Create)
				r.Get("/", keyHandler.List)
				r.Delete("/{id}", keyHandler.Revoke)
			})
		})
	})

	return r
}
