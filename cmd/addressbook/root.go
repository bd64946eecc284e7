package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/emersion/go-addressbook"
	"github.com/emersion/go-addressbook/config"
)

// deps holds the streams and state shared by commands.
type deps struct {
	In  io.Reader
	Out io.Writer
	Err io.Writer

	Logger *slog.Logger

	flags struct {
		ConfigPath string
		Account    string
		JSON       bool
		LogLevel   string
		LogJSON    bool
	}

	// openBackend is replaced in tests
	openBackend func(d *deps, cmd *cobra.Command) (addressbook.Backend, error)
}

func newDeps() *deps {
	return &deps{
		In:          os.Stdin,
		Out:         os.Stdout,
		Err:         os.Stderr,
		openBackend: openConfiguredBackend,
	}
}

func newRootCmd(d *deps) *cobra.Command {
	root := &cobra.Command{
		Use:           "addressbook",
		Short:         "manage CardDAV and vdir addressbooks",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			logger, err := newLogger(d.Err, d.flags.LogLevel, d.flags.LogJSON)
			if err != nil {
				return err
			}
			d.Logger = logger
			return nil
		},
	}

	root.SetIn(d.In)
	root.SetOut(d.Out)
	root.SetErr(d.Err)

	root.PersistentFlags().StringVarP(&d.flags.ConfigPath, "config", "c", "", "config file (default: $ADDRESSBOOK_CONFIG or $XDG_CONFIG_HOME/addressbook/config.yaml)")
	root.PersistentFlags().StringVarP(&d.flags.Account, "account", "a", "", "account name (default: the default account)")
	root.PersistentFlags().BoolVar(&d.flags.JSON, "json", false, "print JSON instead of tables")
	root.PersistentFlags().StringVar(&d.flags.LogLevel, "log-level", "warn", "log level (debug, info, warn, error)")
	root.PersistentFlags().BoolVar(&d.flags.LogJSON, "log-json", false, "log in JSON")

	root.AddCommand(newAddressbooksCmd(d))
	root.AddCommand(newCardsCmd(d))
	root.AddCommand(newDiscoverCmd(d))

	return root
}

func newLogger(w io.Writer, level string, json bool) (*slog.Logger, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(strings.ToUpper(level))); err != nil {
		return nil, fmt.Errorf("invalid log level %q", level)
	}
	opts := &slog.HandlerOptions{Level: lvl}
	if json {
		return slog.New(slog.NewJSONHandler(w, opts)), nil
	}
	return slog.New(slog.NewTextHandler(w, opts)), nil
}

func (d *deps) loadAccount() (*config.Account, error) {
	path := d.flags.ConfigPath
	if path == "" {
		p, err := config.DefaultPath()
		if err != nil {
			return nil, err
		}
		path = p
	}

	cfg, err := config.LoadFile(path)
	if err != nil {
		return nil, err
	}
	name, account, err := cfg.Account(d.flags.Account)
	if err != nil {
		return nil, err
	}
	d.Logger.Debug("using account", "name", name, "backend", account.Backend)
	return account, nil
}

func openConfiguredBackend(d *deps, cmd *cobra.Command) (addressbook.Backend, error) {
	account, err := d.loadAccount()
	if err != nil {
		return nil, err
	}
	return account.Open(cmd.Context(), d.Logger)
}

func (d *deps) backend(cmd *cobra.Command) (addressbook.Backend, error) {
	return d.openBackend(d, cmd)
}
