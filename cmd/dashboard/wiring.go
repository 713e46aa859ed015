package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jrsteele09/go-dashboard-core/directory"
	"github.com/jrsteele09/go-dashboard-core/identity"
	"github.com/jrsteele09/go-dashboard-core/identity/fakebackend"
	"github.com/jrsteele09/go-dashboard-core/identity/oidcbackend"
	"github.com/jrsteele09/go-dashboard-core/internal/config"
	"github.com/jrsteele09/go-dashboard-core/internal/metrics"
	"github.com/jrsteele09/go-dashboard-core/profiles"
	"github.com/jrsteele09/go-dashboard-core/realtime"
	"github.com/jrsteele09/go-dashboard-core/realtime/memtransport"
	"github.com/jrsteele09/go-dashboard-core/realtime/redistransport"
	"github.com/jrsteele09/go-dashboard-core/server"
	"github.com/jrsteele09/go-dashboard-core/session"
	"github.com/jrsteele09/go-dashboard-core/storage"
	"github.com/jrsteele09/go-dashboard-core/storage/memstore"
	"github.com/jrsteele09/go-dashboard-core/storage/s3store"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

const demoPassword = "Dashboard1"

// app holds the wired components of one daemon run
type app struct {
	Metrics   *metrics.Metrics
	Session   *session.Store
	Activator *realtime.Activator
	Server    *server.Server

	closers []func()
}

func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
}

func buildApp(ctx context.Context, c config.Config) (*app, error) {
	a := &app{Metrics: metrics.New()}

	backend, profileRepo, err := newIdentityBackend(ctx, c)
	if err != nil {
		return nil, err
	}

	store, err := session.NewStore(backend,
		session.WithMetrics(a.Metrics),
		session.WithProfileLookupTimeout(c.GetProfileLookupTimeout()),
	)
	if err != nil {
		return nil, err
	}
	a.Session = store
	a.closers = append(a.closers, store.Close)

	transport, closeTransport, err := newTransport(c)
	if err != nil {
		a.Close()
		return nil, err
	}
	if closeTransport != nil {
		a.closers = append(a.closers, closeTransport)
	}

	perfOpts := []realtime.Option{realtime.WithMetrics(a.Metrics), realtime.WithInterval(c.GetPerformanceInterval())}
	notifOpts := []realtime.Option{
		realtime.WithMetrics(a.Metrics),
		realtime.WithInterval(c.GetNotificationInterval()),
		realtime.WithNotificationSeed(realtime.SeedNotifications(time.Now())...),
	}
	if transport != nil {
		perfOpts = append(perfOpts, realtime.WithTransport(transport))
		notifOpts = append(notifOpts, realtime.WithTransport(transport))
	}
	performance := realtime.NewPerformanceChannel(perfOpts...)
	notifications := realtime.NewNotificationChannel(notifOpts...)
	a.Activator = realtime.NewActivator(performance, notifications)
	a.closers = append(a.closers, a.Activator.Stop)

	services := server.Services{
		Session:       store,
		Directory:     directory.New(directory.WithMetrics(a.Metrics)),
		Performance:   performance,
		Notifications: notifications,
		Metrics:       a.Metrics,
	}
	if profileRepo != nil {
		objects, files, err := newObjectStore(ctx, c)
		if err != nil {
			a.Close()
			return nil, err
		}
		avatars, err := profiles.NewAvatarService(profileRepo, objects)
		if err != nil {
			a.Close()
			return nil, err
		}
		services.Avatars = avatars
		services.Files = files
	}

	a.Server, err = server.New(c, services)
	if err != nil {
		a.Close()
		return nil, err
	}
	return a, nil
}

// newIdentityBackend returns the backend and, when the daemon owns the profile rows, the
// repo avatar uploads write to.
func newIdentityBackend(ctx context.Context, c config.Config) (identity.Backend, profiles.Repo, error) {
	switch strings.ToLower(c.GetIdentityDriver()) {
	case "oidc":
		backend, err := oidcbackend.New(ctx, oidcbackend.Config{
			Issuer:       c.GetOidcIssuer(),
			ClientID:     c.GetOidcClientID(),
			ClientSecret: c.GetOidcClientSecret(),
			RoleClaim:    c.GetOidcRoleClaim(),
		})
		if err != nil {
			return nil, nil, err
		}
		return backend, nil, nil
	case "fake", "":
		backend := fakebackend.New(fakebackend.WithSecret(c.GetTokenSecret()))
		for _, demo := range []struct {
			email string
			name  string
			role  profiles.Role
		}{
			{"admin@example.com", "Avery Admin", profiles.RoleAdmin},
			{"manager@example.com", "Morgan Manager", profiles.RoleManager},
			{"teamlead@example.com", "Taylor Lead", profiles.RoleTeamLead},
		} {
			if _, err := backend.Seed(ctx, demo.email, demoPassword, demo.name, demo.role); err != nil {
				return nil, nil, fmt.Errorf("seed %s: %w", demo.email, err)
			}
		}
		log.Info().Str("password", demoPassword).Msg("demo accounts seeded: admin@, manager@, teamlead@example.com")
		return backend, backend.Profiles(), nil
	}
	return nil, nil, fmt.Errorf("unknown identity driver %q", c.GetIdentityDriver())
}

func newTransport(c config.Config) (realtime.Transport, func(), error) {
	switch strings.ToLower(c.GetRealtimeDriver()) {
	case "none":
		return nil, nil, nil
	case "memory", "":
		return memtransport.New(), nil, nil
	case "redis":
		client := redis.NewClient(&redis.Options{Addr: c.GetRedisAddr()})
		transport, err := redistransport.New(client)
		if err != nil {
			_ = client.Close()
			return nil, nil, err
		}
		return transport, func() { _ = client.Close() }, nil
	}
	return nil, nil, fmt.Errorf("unknown realtime driver %q", c.GetRealtimeDriver())
}

func newObjectStore(ctx context.Context, c config.Config) (storage.ObjectStore, server.FileSource, error) {
	switch strings.ToLower(c.GetStorageDriver()) {
	case "memory", "":
		store := memstore.New(c.GetPublicBaseURL())
		return store, store, nil
	case "s3":
		store, err := s3store.New(ctx, s3store.Config{
			Region:    c.GetS3Region(),
			Bucket:    c.GetS3Bucket(),
			Endpoint:  c.GetS3Endpoint(),
			PathStyle: c.GetS3PathStyle(),
		})
		if err != nil {
			return nil, nil, err
		}
		return store, nil, nil
	}
	return nil, nil, fmt.Errorf("unknown storage driver %q", c.GetStorageDriver())
}
