package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-contrib/pprof"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"triviad/internal/api"
	"triviad/internal/event"
	"triviad/internal/session"
	"triviad/internal/trivia"
)

type Config struct {
	HTTP struct {
		Port int32
	}

	Trivia struct {
		BaseURL        string
		TimeoutSeconds int
	}
}

type Server struct {
	c Config

	eb *event.Bus

	service struct {
		trivia  *trivia.Client
		session *session.Service
	}

	http *http.Server
}

func Init(c Config) (*Server, error) {
	if c.Trivia.BaseURL == "" {
		return nil, fmt.Errorf("server: trivia base URL not configured")
	}

	s := &Server{c: c}

	s.eb = event.NewBus()
	s.initService()
	s.initAPI()
	return s, nil
}

func (s *Server) initService() {
	s.service.trivia = trivia.NewClient(trivia.Config{
		BaseURL: s.c.Trivia.BaseURL,
		Timeout: time.Duration(s.c.Trivia.TimeoutSeconds) * time.Second,
	})

	s.service.session = session.NewService(session.Config{
		EventBus: s.eb,
		Trivia:   s.service.trivia,
	})
}

func (s *Server) initAPI() {
	e := gin.New()
	e.GET("/metrics", gin.WrapH(promhttp.Handler()))
	pprof.Register(e, "/debug/pprof")
	e.Use(gin.Recovery())

	api.New(api.Config{
		Router:   e,
		EventBus: s.eb,
		Session:  s.service.session,
	})

	s.http = &http.Server{
		Addr:              fmt.Sprintf(":%d", s.c.HTTP.Port),
		Handler:           e,
		ReadHeaderTimeout: 60 * time.Second,
	}
}

func (s *Server) Start() {
	ctx := context.TODO()

	var eg errgroup.Group
	eg.Go(func() error {
		slog.InfoContext(ctx, fmt.Sprintf("server: HTTP listening on port %d", s.c.HTTP.Port))
		if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	if err := eg.Wait(); err != nil {
		slog.ErrorContext(ctx, "server: shutdown with error", "error", err)
	}
}

func (s *Server) Shutdown() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := s.http.Shutdown(ctx); err != nil {
		slog.ErrorContext(ctx, "server: shutdown HTTP failed", "error", err)
	}

	s.service.session.Stop()
	s.eb.Stop()

	slog.InfoContext(ctx, "server: shutdown completed")
}
