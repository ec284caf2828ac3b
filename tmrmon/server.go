package main

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

// server exposes metrics and monitor status over HTTP.
type server struct {
	addr    string
	handler http.Handler
	log     zerolog.Logger
}

func newServer(addr string, reg *prometheus.Registry, mon *monitor, log zerolog.Logger) *server {
	return &server{
		addr:    addr,
		handler: newRouter(reg, mon),
		log:     log,
	}
}

func newRouter(reg *prometheus.Registry, mon *monitor) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.GET("/metrics", echo.WrapHandler(promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg})))
	e.GET("/status", func(c echo.Context) error {
		return c.JSON(http.StatusOK, mon.Status())
	})
	e.GET("/health", func(c echo.Context) error {
		if !mon.Status().Connected {
			return c.String(http.StatusServiceUnavailable, "DISCONNECTED")
		}
		return c.String(http.StatusOK, "OK")
	})
	return e
}

// Run serves until ctx is canceled.
func (s *server) Run(ctx context.Context) error {
	lis, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("failed to listen on address %s: %w", s.addr, err)
	}

	srv := &http.Server{
		Handler:           s.handler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	s.log.Info().Str("address", s.addr).Msg("Serving HTTP")
	errc := make(chan error, 1)
	go func() {
		errc <- srv.Serve(lis)
	}()

	select {
	case err := <-errc:
		return fmt.Errorf("failed to serve HTTP: %w", err)
	case <-ctx.Done():
	}

	s.log.Info().Msg("Closing HTTP server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
