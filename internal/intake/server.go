package intake

import (
	"context"
	"errors"
	"io"
	stdhttp "net/http"
	"os"
	"path/filepath"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/formrelay-server/internal/config"
	"github.com/vovakirdan/formrelay-server/internal/record"
	"github.com/vovakirdan/formrelay-server/internal/relay"
)

// Response bodies returned to the browser.
const (
	bodyConfirm       = "Message received and forwarded to socket server."
	bodyBadForm       = "Invalid form data."
	bodyUnavailable   = "Socket server unavailable. Please try again later."
	bodySocketError   = "Socket communication error."
	bodyInternalError = "Internal server error."
)

// Forwarder sends one payload to the relay listener.
type Forwarder interface {
	Send(ctx context.Context, p record.Payload) error
}

type handlers struct {
	forwarder Forwarder
	webDir    string
	log       *zerolog.Logger
}

// NewRouter builds the gin engine: the submit endpoint plus the page
// and static passthrough routes.
func NewRouter(fw Forwarder, webDir string, logger *zerolog.Logger) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())

	h := &handlers{forwarder: fw, webDir: webDir, log: logger}

	r.GET("/", h.page("index.html"))
	r.GET("/message", h.page("message.html"))
	r.GET("/error", h.page("error.html"))
	r.Static("/static", filepath.Join(webDir, "static"))
	r.NoRoute(h.notFound)

	r.POST("/submit_message", h.submitMessage)

	return r
}

// NewServer wraps the router in an http.Server with the configured
// listen address and timeouts.
func NewServer(cfg config.Config, fw Forwarder, logger *zerolog.Logger) *stdhttp.Server {
	return &stdhttp.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           NewRouter(fw, cfg.WebDir, logger),
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
	}
}

// submitMessage is the only mutating entry point: strict form parse,
// serialize without a date, forward over TCP, confirm.
func (h *handlers) submitMessage(c *gin.Context) {
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		h.log.Error().Err(err).Msg("failed to read request body")
		c.String(stdhttp.StatusInternalServerError, bodyInternalError)
		return
	}

	fields, err := parseForm(string(body))
	if err != nil {
		h.log.Warn().Err(err).Msg("malformed form data")
		c.String(stdhttp.StatusBadRequest, bodyBadForm)
		return
	}

	// Absent fields default to empty; presence is not validated here.
	payload := record.Payload{
		Username: fields["username"],
		Message:  fields["message"],
	}

	if err := h.forwarder.Send(c.Request.Context(), payload); err != nil {
		if errors.Is(err, relay.ErrUnavailable) {
			h.log.Error().Err(err).Msg("relay unavailable")
			c.String(stdhttp.StatusServiceUnavailable, bodyUnavailable)
			return
		}
		h.log.Error().Err(err).Msg("failed to forward message")
		c.String(stdhttp.StatusInternalServerError, bodySocketError)
		return
	}

	h.log.Info().Str("username", payload.Username).Msg("message forwarded")
	c.String(stdhttp.StatusOK, bodyConfirm)
}

func (h *handlers) page(name string) gin.HandlerFunc {
	path := filepath.Join(h.webDir, "templates", name)
	return func(c *gin.Context) {
		c.File(path)
	}
}

// notFound serves the error page with a 404 status for unknown paths.
func (h *handlers) notFound(c *gin.Context) {
	data, err := os.ReadFile(filepath.Join(h.webDir, "templates", "error.html"))
	if err != nil {
		c.String(stdhttp.StatusNotFound, "404 Not Found")
		return
	}
	c.Data(stdhttp.StatusNotFound, "text/html; charset=utf-8", data)
}
