// Package webportal serves the operator-facing admin dashboard: stats,
// channels, clients, and bans pages over HTTP, grounded on
// _examples/presbrey-pkg/irc/server/webportal.go and irc/admind/web.go,
// both of which build their dashboards on github.com/labstack/echo/v4
// (spec.md §4.11/§4.12 ambient/domain stack).
package webportal

import (
	"context"
	"crypto/subtle"
	"embed"
	"html/template"
	"io"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/presbrey/ircd/internal/ban"
	"github.com/presbrey/ircd/internal/metrics"
	"github.com/presbrey/ircd/internal/peer"
	"github.com/presbrey/ircd/internal/store"
)

//go:embed views
var viewsFS embed.FS

// templateRenderer adapts html/template to echo.Renderer, grounded on
// the teacher's own Template.Render (irc/server/webportal.go).
type templateRenderer struct {
	templates *template.Template
}

func (t *templateRenderer) Render(w io.Writer, name string, data any, c echo.Context) error {
	return t.templates.ExecuteTemplate(w, name, data)
}

// Portal is the admin web dashboard. It shares the same Bearer-token
// authority as internal/adminapi (grounded on irc/admind/admin.go's
// authMiddleware) rather than a second credential store: anyone who can
// reach the dashboard's /api/* routes could equally reach adminapi.
type Portal struct {
	Echo *echo.Echo

	Store   *store.Store
	Bans    *ban.Enforcer
	Peers   *peer.Manager
	Metrics *metrics.Collectors

	ServerName string
	Network    string
	Token      string
}

// New builds a Portal with routes registered but not yet listening.
func New(p *Portal) *Portal {
	e := echo.New()
	e.HideBanner = true
	e.Renderer = &templateRenderer{templates: template.Must(template.ParseFS(viewsFS, "views/*.html"))}
	p.Echo = e

	e.GET("/", func(c echo.Context) error { return c.Redirect(http.StatusFound, "/dashboard") })
	e.GET("/dashboard", p.handleDashboard)
	e.GET("/channels", p.handleChannels)
	e.GET("/users", p.handleUsers)
	e.GET("/bans", p.handleBans)

	api := e.Group("/api", p.authMiddleware)
	api.GET("/stats", p.handleAPIStats)
	api.GET("/channels", p.handleAPIChannels)
	api.GET("/users", p.handleAPIUsers)
	api.GET("/bans", p.handleAPIBans)
	api.POST("/kill", p.handleAPIKill)
	api.POST("/kline", p.handleAPIKline)

	return p
}

// authMiddleware enforces the configured bearer token on /api/* routes,
// mirroring irc/admind/admin.go's authMiddleware token check.
func (p *Portal) authMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		if p.Token == "" {
			return next(c)
		}
		got := c.Request().Header.Get("Authorization")
		want := "Bearer " + p.Token
		if subtle.ConstantTimeCompare([]byte(got), []byte(want)) != 1 {
			return echo.ErrUnauthorized
		}
		return next(c)
	}
}

// Start begins serving on addr, blocking until Shutdown or a fatal error.
func (p *Portal) Start(addr string) error {
	return p.Echo.Start(addr)
}

// Shutdown gracefully stops the listener.
func (p *Portal) Shutdown(ctx context.Context) error {
	return p.Echo.Shutdown(ctx)
}
