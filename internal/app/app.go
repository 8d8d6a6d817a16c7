// Package app assembles the HTTP handler: router, middleware stack and routes.
// Building it never opens a socket, so tests and embedders can serve it in-process.
package app

import (
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humachi"
	_ "github.com/danielgtaylor/huma/v2/formats/cbor"
	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/janisto/hello-server/internal/http/hello"
	applog "github.com/janisto/hello-server/internal/platform/logging"
	appmiddleware "github.com/janisto/hello-server/internal/platform/middleware"
	"github.com/janisto/hello-server/internal/platform/respond"
)

const (
	// Title is published in the OpenAPI document.
	Title = "Hello Server"
	// DocsPath serves the interactive API reference.
	DocsPath = "/api-docs"

	maxRequestBytes = 1 << 20 // 1 MB
)

// App is the assembled HTTP application.
type App struct {
	router chi.Router
	api    huma.API
}

// New builds the application. version is reported in the OpenAPI info block.
func New(version string) *App {
	router := chi.NewRouter()
	router.NotFound(respond.NotFoundHandler())
	router.MethodNotAllowed(respond.MethodNotAllowedHandler())

	router.Use(
		appmiddleware.Security(DocsPath),
		appmiddleware.Vary(),
		appmiddleware.CORS(),
		appmiddleware.RequestID(),
		// RealIP trusts X-Forwarded-For / X-Real-IP; deploy behind a proxy that sets them.
		chimiddleware.RealIP,
		chimiddleware.RequestSize(maxRequestBytes),
		chimiddleware.GetHead,
		applog.RequestLogger(),
		applog.AccessLogger(),
		respond.Recoverer(),
	)

	cfg := huma.DefaultConfig(Title, version)
	cfg.DocsPath = DocsPath
	api := humachi.New(router, cfg)

	hello.Register(api)

	return &App{router: router, api: api}
}

// ServeHTTP implements http.Handler.
func (a *App) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	a.router.ServeHTTP(w, r)
}

// API exposes the huma API, mainly for OpenAPI inspection.
func (a *App) API() huma.API {
	return a.api
}
