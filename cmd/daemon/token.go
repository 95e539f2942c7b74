package main

import (
	"time"

	"github.com/jrsteele09/go-obo-blueprints/authorizedclient"
	"github.com/spf13/cobra"
)

func newTokenCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "token",
		Short: "Acquire a token and print what is known about it, never the token itself",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := opts.setup()
			if err != nil {
				return err
			}

			token, err := d.provider.Authorize(cmd.Context(), opts.registrationID, authorizedclient.Anonymous)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			printf(out, "registration:  %s\n", opts.registrationID)
			printf(out, "token type:    %s\n", token.Type)
			printf(out, "scopes:        %s\n", token.Scope())
			printf(out, "expires at:    %s\n", token.ExpiresAt.Format(time.RFC3339))
			printf(out, "expires in:    %s\n", time.Until(token.ExpiresAt).Round(time.Second))
			printf(out, "refresh token: %t\n", token.RefreshToken != "")
			return nil
		},
	}
}
