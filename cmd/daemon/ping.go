package main

import (
	"bytes"
	"encoding/json"
	"errors"

	"github.com/jrsteele09/go-obo-blueprints/authorizedclient"
	"github.com/jrsteele09/go-obo-blueprints/downstream"
	"github.com/spf13/cobra"
)

const pingPath = "/downstream/ping"

func newPingCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "ping",
		Short: "Ping the downstream API with a token from the client_credentials grant",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := opts.setup()
			if err != nil {
				return err
			}
			if d.reg.ResourceURL == "" {
				return errors.New("registration " + d.reg.ID + " has no resource_url")
			}

			client := downstream.New(d.reg.ResourceURL+pingPath, d.reg.ID, d.provider, downstream.WithHTTPClient(d.httpClient))
			body, err := client.Ping(cmd.Context(), authorizedclient.Anonymous)
			if err != nil {
				return err
			}

			var pretty bytes.Buffer
			if err := json.Indent(&pretty, []byte(body), "", "  "); err != nil {
				// not JSON, print as received
				printf(cmd.OutOrStdout(), "%s\n", body)
				return nil
			}
			printf(cmd.OutOrStdout(), "%s\n", pretty.String())
			return nil
		},
	}
}
