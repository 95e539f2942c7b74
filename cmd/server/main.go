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

	"github.com/common-nighthawk/go-figure"
	"github.com/jrsteele09/go-obo-blueprints/authorizedclient"
	"github.com/jrsteele09/go-obo-blueprints/authorizedclient/redisstore"
	"github.com/jrsteele09/go-obo-blueprints/clients"
	"github.com/jrsteele09/go-obo-blueprints/downstream"
	"github.com/jrsteele09/go-obo-blueprints/internal/config"
	"github.com/jrsteele09/go-obo-blueprints/internal/logging"
	"github.com/jrsteele09/go-obo-blueprints/internal/metrics"
	"github.com/jrsteele09/go-obo-blueprints/server"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog/log"
)

func main() {
	if err := run(); err != nil {
		log.Fatal().Err(err).Msg("Error running server")
	}
	log.Info().Msg("Server stopped")
}

func run() (returnError error) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Msg("Recovered from panic")
			debug.PrintStack()
			returnError = errors.New("panic recovered")
		}
	}()

	c := config.New()
	logging.Init(c.GetLogLevel(), c.GetEnv())
	displayAppname(c.GetAppName())

	ctx := context.Background()
	handler, closeStore, err := build(ctx, c)
	if err != nil {
		return err
	}
	defer closeStore()

	server := &http.Server{Addr: c.GetPort(), Handler: handler, ReadHeaderTimeout: 10 * time.Second}
	errCh := make(chan error, 1)
	go func() { errCh <- listenAndServe(server) }()

	select {
	case err := <-errCh:
		return err
	case <-waitForStopSignal():
	}
	return shutdown(server)
}

// build wires the registrations, the authorized client provider and the HTTP server
func build(ctx context.Context, c config.Config) (http.Handler, func(), error) {
	registry, err := clients.LoadFile(c.GetRegistrationsFile())
	if err != nil {
		return nil, nil, err
	}
	if _, ok := registry.Find(c.GetDownstreamRegistrationID()); !ok {
		return nil, nil, fmt.Errorf("downstream registration %q not found in %s", c.GetDownstreamRegistrationID(), c.GetRegistrationsFile())
	}

	store, closeStore, err := newStore(ctx, c)
	if err != nil {
		return nil, nil, err
	}

	promRegistry := prometheus.NewRegistry()
	promRegistry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	httpClients := clients.NewHTTPClients(registry.List(), c.GetTokenEndpointTimeout())
	provider, err := authorizedclient.NewProvider(registry,
		authorizedclient.WithClockSkew(c.GetClockSkew()),
		authorizedclient.WithStore(store),
		authorizedclient.WithHTTPClients(httpClients),
		authorizedclient.WithMetrics(metrics.New(promRegistry)),
	)
	if err != nil {
		closeStore()
		return nil, nil, err
	}

	verifier, err := server.NewOIDCVerifier(ctx, c.GetIssuer(), c.GetAudience())
	if err != nil {
		closeStore()
		return nil, nil, err
	}

	api, err := server.New(c, verifier,
		downstream.New(c.GetDownstreamURL(), c.GetDownstreamRegistrationID(), provider,
			downstream.WithHTTPClient(httpClients.For(c.GetDownstreamRegistrationID()))),
		server.WithMetricsHandler(metrics.Handler(promRegistry)),
	)
	if err != nil {
		closeStore()
		return nil, nil, err
	}
	return api, closeStore, nil
}

func newStore(ctx context.Context, c config.StoreConfig) (authorizedclient.Store, func(), error) {
	switch c.GetStoreType() {
	case config.StoreTypeMemory:
		return authorizedclient.NewMemoryStore(), func() {}, nil
	case config.StoreTypeRedis:
		client, err := redisstore.Connect(ctx, c.GetRedisAddr(), c.GetRedisPassword(), c.GetRedisDB())
		if err != nil {
			return nil, nil, err
		}
		log.Info().Str("addr", c.GetRedisAddr()).Msg("authorized clients kept in redis")
		return redisstore.New(client, redisstore.WithKeyPrefix(c.GetRedisKeyPrefix())), func() { _ = client.Close() }, nil
	}
	return nil, nil, fmt.Errorf("unknown authorized client store %q", c.GetStoreType())
}

func listenAndServe(server *http.Server) error {
	log.Info().Str("addr", server.Addr).Msg("Server listening")
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

func displayAppname(appname string) {
	myFigure := figure.NewFigure(appname, "cybermedium", true)
	myFigure.Print()
	fmt.Println()
}
