package config

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"strings"

	"golang.org/x/term"

	"github.com/emersion/go-addressbook"
	"github.com/emersion/go-addressbook/carddav"
	"github.com/emersion/go-addressbook/connector"
	"github.com/emersion/go-addressbook/httpflow"
	"github.com/emersion/go-addressbook/vdir"
)

// Open returns a client for the account. A CardDAV account without a home
// URI is discovered first.
func (a *Account) Open(ctx context.Context, logger *slog.Logger) (addressbook.Backend, error) {
	switch a.Backend {
	case BackendCardDAV:
		return a.CardDAV.Client(ctx, logger)
	case BackendVdir:
		return vdir.NewClient(&vdir.Config{HomeDir: a.Vdir.HomeDir, Logger: logger}), nil
	default:
		return nil, fmt.Errorf("config: invalid backend %q", a.Backend)
	}
}

// Dialer returns the connector matching the TLS mode.
func (c *CardDAVConfig) Dialer(logger *slog.Logger) carddav.Dialer {
	switch c.TLS {
	case TLSNone:
		return &connector.TCP{Host: c.Host, Port: c.Port, Logger: logger}
	case TLSStrict:
		return &connector.TLS{Host: c.Host, Port: c.Port, Provider: connector.StrictTLS{}, Logger: logger}
	default:
		return &connector.TLS{Host: c.Host, Port: c.Port, Provider: connector.SystemTLS{}, Logger: logger}
	}
}

// Client returns a CardDAV client for the account.
func (c *CardDAVConfig) Client(ctx context.Context, logger *slog.Logger) (*carddav.Client, error) {
	version, err := httpflow.ParseVersion(c.HTTPVersion)
	if err != nil {
		return nil, err
	}

	cfg := &carddav.Config{
		Host:    c.Host,
		Port:    c.Port,
		Version: version,
		HomeURI: c.HomeURI,
		Logger:  logger,
	}
	if c.Username != "" {
		password, err := c.ReadPassword(ctx)
		if err != nil {
			return nil, err
		}
		cfg.BasicAuth = &carddav.BasicAuth{Username: c.Username, Password: password}
	}

	client := carddav.NewClient(cfg, c.Dialer(logger))
	if client.Config.HomeURI == "" {
		homeSet, err := client.Discover(ctx)
		if err != nil {
			return nil, fmt.Errorf("config: failed to discover addressbook home set: %w", err)
		}
		client.Config.HomeURI = homeSet
	}
	return client, nil
}

// ReadPassword returns the configured password, the output of the password
// command, or prompts for it on the terminal.
func (c *CardDAVConfig) ReadPassword(ctx context.Context) (string, error) {
	switch {
	case c.Password != "":
		return c.Password, nil
	case c.PasswordCommand != "":
		return runPasswordCommand(ctx, c.PasswordCommand)
	default:
		return promptPassword(fmt.Sprintf("Password for %v@%v: ", c.Username, c.Host))
	}
}

func runPasswordCommand(ctx context.Context, command string) (string, error) {
	var stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, "sh", "-c", command)
	cmd.Stderr = &stderr
	out, err := cmd.Output()
	if err != nil {
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return "", fmt.Errorf("config: password command failed: %w: %v", err, msg)
		}
		return "", fmt.Errorf("config: password command failed: %w", err)
	}

	line, _, _ := strings.Cut(string(out), "\n")
	line = strings.TrimSpace(line)
	if line == "" {
		return "", errors.New("config: password command returned an empty password")
	}
	return line, nil
}

func promptPassword(prompt string) (string, error) {
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return "", errors.New("config: no terminal available for the password prompt (use password-command)")
	}

	fmt.Fprint(os.Stderr, prompt)
	b, err := term.ReadPassword(fd)
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", fmt.Errorf("config: failed to read password: %w", err)
	}
	return string(b), nil
}
