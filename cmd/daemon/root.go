package main

import (
	"fmt"
	"io"
	"net/http"

	"github.com/jrsteele09/go-obo-blueprints/authorizedclient"
	"github.com/jrsteele09/go-obo-blueprints/clients"
	"github.com/jrsteele09/go-obo-blueprints/internal/config"
	"github.com/jrsteele09/go-obo-blueprints/internal/logging"
	"github.com/jrsteele09/go-obo-blueprints/oauth2"
	"github.com/spf13/cobra"
)

const defaultRegistrationID = "example-clientcredentials"

// options are the persistent flags shared by every subcommand
type options struct {
	registrationsFile string
	registrationID    string
	logLevel          string
}

func newRootCmd() *cobra.Command {
	env := config.EnvVars{}
	opts := &options{}

	cmd := &cobra.Command{
		Use:   "daemon",
		Short: "Call a protected API with a client_credentials token",
		Long: `daemon acquires an access token for itself with the client_credentials grant
and calls the downstream API configured in the registrations file.`,
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			logging.InitWriter(cmd.ErrOrStderr(), opts.logLevel, env.GetEnv())
		},
	}

	cmd.PersistentFlags().StringVarP(&opts.registrationsFile, "registrations", "f", env.GetRegistrationsFile(), "Client registrations file")
	cmd.PersistentFlags().StringVarP(&opts.registrationID, "registration", "r", defaultRegistrationID, "Registration to acquire the token with")
	cmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", env.GetLogLevel(), "Log level (debug, info, warn, error)")

	cmd.AddCommand(newPingCmd(opts), newTokenCmd(opts))
	return cmd
}

// daemonClient is what every subcommand works with: the selected registration, its HTTP
// client and a provider that can acquire tokens for it
type daemonClient struct {
	reg        *clients.Registration
	httpClient *http.Client
	provider   *authorizedclient.Provider
}

func (o *options) setup() (*daemonClient, error) {
	registry, err := clients.LoadFile(o.registrationsFile)
	if err != nil {
		return nil, err
	}
	reg, ok := registry.Find(o.registrationID)
	if !ok {
		return nil, fmt.Errorf("%w: %q", oauth2.ErrUnknownClient, o.registrationID)
	}
	if reg.GrantType != oauth2.ClientCredentialsGrant {
		return nil, fmt.Errorf("registration %q uses %s, the daemon needs client_credentials", reg.ID, reg.GrantType.ShortName())
	}

	oauthCfg := config.OAuthClient{}
	httpClients := clients.NewHTTPClients(registry.List(), oauthCfg.GetTokenEndpointTimeout())
	provider, err := authorizedclient.NewProvider(registry,
		authorizedclient.WithClockSkew(oauthCfg.GetClockSkew()),
		authorizedclient.WithHTTPClients(httpClients),
	)
	if err != nil {
		return nil, err
	}
	return &daemonClient{reg: reg, httpClient: httpClients.For(reg.ID), provider: provider}, nil
}

func printf(w io.Writer, format string, args ...any) {
	_, _ = fmt.Fprintf(w, format, args...)
}
