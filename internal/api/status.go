package api

import (
	"context"
	"net/http"
	"time"

	"tvcast/receiver/internal/viewer"

	"github.com/gin-gonic/gin"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

// StatusSource reports the receiver's negotiation state.
type StatusSource interface {
	Status() viewer.Status
}

// NewRouter exposes /healthz and /status.
func NewRouter(src StatusSource) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	r := gin.New()
	r.Use(gin.Recovery())

	r.GET("/healthz", func(c *gin.Context) {
		st := src.Status()
		if st.State == viewer.StateClosed.String() {
			c.JSON(http.StatusServiceUnavailable, gin.H{"ok": false, "state": st.State})
			return
		}
		c.JSON(http.StatusOK, gin.H{"ok": true, "state": st.State})
	})
	r.GET("/status", func(c *gin.Context) {
		c.JSON(http.StatusOK, src.Status())
	})

	return r
}

// Server serves the status router until Shutdown.
type Server struct {
	srv *http.Server
}

func NewServer(addr string, src StatusSource) *Server {
	return &Server{
		srv: &http.Server{
			Addr:              addr,
			Handler:           NewRouter(src),
			ReadHeaderTimeout: 5 * time.Second,
		},
	}
}

// Start listens in the background. Listen errors are logged.
func (s *Server) Start() {
	log.Info().Str("module", "api").Str("addr", s.srv.Addr).Msg("status endpoint listening")
	go func() {
		if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Str("module", "api").Msg("status endpoint stopped")
		}
	}()
}

func (s *Server) Shutdown(ctx context.Context) error {
	return errors.Wrap(s.srv.Shutdown(ctx), "shutdown status endpoint")
}
