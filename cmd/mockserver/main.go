// Command mockserver runs a local authorization server and a downstream resource server
// for exercising the on-behalf-of flow.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/common-nighthawk/go-figure"
	"github.com/jrsteele09/go-obo-blueprints/clients"
	"github.com/jrsteele09/go-obo-blueprints/internal/config"
	"github.com/jrsteele09/go-obo-blueprints/internal/logging"
	"github.com/jrsteele09/go-obo-blueprints/mockserver"
	"github.com/jrsteele09/go-obo-blueprints/token/keys"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

func main() {
	if err := run(); err != nil {
		log.Fatal().Err(err).Msg("Error running mock servers")
	}
	log.Info().Msg("Mock servers stopped")
}

func run() error {
	c := config.NewMockServer()
	logging.Init(c.GetLogLevel(), c.GetEnv())
	displayAppname("Mock AAD")

	registry, err := clients.LoadFile(c.GetRegistrationsFile())
	if err != nil {
		return err
	}
	keyPair, err := keys.LoadOrGenerate(keys.DefaultKeyID, c.GetSigningKeyFile())
	if err != nil {
		return err
	}
	auth, err := mockserver.NewAuthServer(c.GetEnv(), c.GetIssuer(), c.GetTokenLifetime(), keyPair, registry.List())
	if err != nil {
		return err
	}

	servers := []*http.Server{
		{Addr: c.GetAuthServerPort(), Handler: auth, ReadHeaderTimeout: 10 * time.Second},
		{Addr: c.GetResourceServerPort(), Handler: mockserver.NewResourceServer(c.GetEnv()), ReadHeaderTimeout: 10 * time.Second},
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)
	for _, server := range servers {
		g.Go(func() error {
			log.Info().Str("addr", server.Addr).Msg("Server listening")
			if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				return fmt.Errorf("server.ListenAndServe %w", err)
			}
			return nil
		})
	}
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		for _, server := range servers {
			if err := server.Shutdown(shutdownCtx); err != nil {
				return fmt.Errorf("server.Shutdown: %w", err)
			}
		}
		return nil
	})
	return g.Wait()
}

func displayAppname(appname string) {
	myFigure := figure.NewFigure(appname, "cybermedium", true)
	myFigure.Print()
	fmt.Println()
}
