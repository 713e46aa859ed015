package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"runtime/debug"
	"syscall"
	"time"

	"github.com/jrsteele09/go-dashboard-core/gate"
	"github.com/jrsteele09/go-dashboard-core/internal/config"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the dashboard daemon",
		RunE: func(cmd *cobra.Command, args []string) error {
			for {
				err := run()
				if err == nil {
					break
				}
				if !errors.Is(err, errPanicRecovered) {
					return err
				}
				log.Error().Err(err).Msg("restarting after panic")
				time.Sleep(1 * time.Second)
			}
			log.Info().Msg("Server stopped")
			return nil
		},
	}
}

var errPanicRecovered = errors.New("panic recovered")

func run() (returnError error) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Bytes("stack", debug.Stack()).Msg("recovered from panic")
			returnError = errPanicRecovered
		}
	}()

	c := config.New()
	displayAppname(c.GetAppName())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	app, err := buildApp(ctx, c)
	if err != nil {
		return err
	}
	defer app.Close()

	if err := app.Session.Start(ctx); err != nil {
		return fmt.Errorf("session start: %w", err)
	}
	app.Activator.Start(ctx, app.Session)

	homeGate, err := gate.New(gate.NavigatorFunc(func(target string, replace bool) {
		log.Info().Str("target", target).Bool("replace", replace).Msg("dashboard navigation")
	}), nil, gate.WithProfileWait(c.GetProfileWait()), gate.WithMetrics(app.Metrics))
	if err != nil {
		return err
	}
	if err := homeGate.Mount(app.Session); err != nil {
		return err
	}
	defer homeGate.Unmount()

	server := &http.Server{Addr: c.GetPort(), Handler: app.Server}
	serveErr := make(chan error, 1)
	go func() { serveErr <- listenAndServe(server) }()

	select {
	case <-waitForStopSignal():
	case err := <-serveErr:
		return err
	}
	return shutdown(server)
}

func listenAndServe(server *http.Server) error {
	log.Info().Msgf("Server listening on %s", server.Addr)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server.ListenAndServe %w", err)
	}
	return nil
}

func waitForStopSignal() <-chan os.Signal {
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	return stop
}

func shutdown(server *http.Server) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server.Shutdown: %w", err)
	}
	return nil
}
