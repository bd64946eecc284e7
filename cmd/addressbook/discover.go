package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/emersion/go-addressbook/carddav"
	"github.com/emersion/go-addressbook/config"
)

type discovery struct {
	Host    string `json:"host,omitempty"`
	Port    int    `json:"port,omitempty"`
	Path    string `json:"path,omitempty"`
	HomeSet string `json:"home_set,omitempty"`
}

func newDiscoverCmd(d *deps) *cobra.Command {
	return &cobra.Command{
		Use:   "discover [DOMAIN]",
		Short: "discover a CardDAV server",
		Long: `Without argument, discover the addressbook home set of the CardDAV account.
With a domain, look up its CardDAV service in DNS.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var res discovery
			if len(args) > 0 {
				svc, err := carddav.Discover(cmd.Context(), nil, args[0])
				if err != nil {
					return err
				}
				res = discovery{Host: svc.Host, Port: svc.Port, Path: svc.Path}
			} else {
				account, err := d.loadAccount()
				if err != nil {
					return err
				}
				if account.Backend != config.BackendCardDAV {
					return errors.New("discovery requires a CardDAV account")
				}
				cfg := *account.CardDAV
				cfg.HomeURI = ""
				client, err := cfg.Client(cmd.Context(), d.Logger)
				if err != nil {
					return err
				}
				res = discovery{Host: cfg.Host, Port: cfg.Port, HomeSet: client.Config.HomeURI}
			}

			if d.flags.JSON {
				return printJSON(cmd.OutOrStdout(), res)
			}
			rows := [][]string{{"host", res.Host}}
			if res.Port != 0 {
				rows = append(rows, []string{"port", fmt.Sprint(res.Port)})
			}
			if res.Path != "" {
				rows = append(rows, []string{"path", res.Path})
			}
			if res.HomeSet != "" {
				rows = append(rows, []string{"home set", res.HomeSet})
			}
			return printTable(cmd.OutOrStdout(), []string{"KEY", "VALUE"}, rows)
		},
	}
}
