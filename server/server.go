// Package server exposes the chat core over REST and websocket.
package server

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"campus-dm/observability"
	"campus-dm/runtime"
	"campus-dm/services"
)

type Server struct {
	log  *slog.Logger
	app  *echo.Echo
	addr string
}

type requestValidator struct {
	validate *validator.Validate
}

func (v *requestValidator) Validate(i any) error {
	if err := v.validate.Struct(i); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return nil
}

func New(log *slog.Logger, addr string, service services.IChatService,
	channel *runtime.Channel, monitor *observability.Monitor, bufferSize int) *Server {
	app := echo.New()
	app.HideBanner = true
	app.HidePort = true
	app.Validator = &requestValidator{validate: validator.New()}
	app.Pre(middleware.RemoveTrailingSlash())
	app.Use(middleware.Recover())

	h := &Handler{
		log:        log,
		service:    service,
		channel:    channel,
		monitor:    monitor,
		bufferSize: bufferSize,
	}

	app.GET("/healthz", h.healthz)
	app.GET("/conversations/:key/messages", h.listMessages)
	app.POST("/conversations/:key/messages", h.postMessage)
	app.GET("/conversations/:key/search", h.searchMessages)
	app.GET("/ws", h.serveWS)

	return &Server{log: log, app: app, addr: addr}
}

func (s *Server) Start() error {
	s.log.Info("HTTP server listening", "addr", s.addr)
	return s.app.Start(s.addr)
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.app.Shutdown(ctx)
}

// ServeHTTP lets tests drive the router without a listener.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.app.ServeHTTP(w, r)
}
