// Package connector provides the network connections CardDAV flows are
// driven over.
package connector

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"io"
	"log/slog"
	"net"
	"strconv"
	"time"

	"github.com/emersion/go-addressbook/internal"
)

// DefaultDialTimeout bounds connection establishment when the context has
// no deadline.
const DefaultDialTimeout = 10 * time.Second

func address(host string, port, defaultPort int) string {
	if port == 0 {
		port = defaultPort
	}
	return net.JoinHostPort(host, strconv.Itoa(port))
}

func dialTCP(ctx context.Context, addr string) (net.Conn, error) {
	d := net.Dialer{Timeout: DefaultDialTimeout}
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, err
	}
	if deadline, ok := ctx.Deadline(); ok {
		if err := conn.SetDeadline(deadline); err != nil {
			conn.Close()
			return nil, err
		}
	}
	return conn, nil
}

// TCP connects over plain TCP.
type TCP struct {
	Host string
	// Port defaults to 80.
	Port   int
	Logger *slog.Logger
}

// Dial opens a connection. The context deadline, if any, applies to the
// whole connection.
func (c *TCP) Dial(ctx context.Context) (io.ReadWriteCloser, error) {
	addr := address(c.Host, c.Port, 80)
	internal.Logger(c.Logger).Debug("dialing", "addr", addr)
	return dialTCP(ctx, addr)
}

// TLSProvider builds the TLS client configuration of a connection.
type TLSProvider interface {
	ClientConfig(serverName string) *tls.Config
}

// SystemTLS verifies servers with the platform verifier and accepts TLS 1.2
// and later.
type SystemTLS struct {
	// RootCAs defaults to the system pool.
	RootCAs *x509.CertPool
}

func (p SystemTLS) ClientConfig(serverName string) *tls.Config {
	return &tls.Config{
		ServerName: serverName,
		RootCAs:    p.RootCAs,
		MinVersion: tls.VersionTLS12,
	}
}

// StrictTLS only accepts TLS 1.3 with modern key exchanges.
type StrictTLS struct {
	// RootCAs defaults to the system pool.
	RootCAs *x509.CertPool
}

func (p StrictTLS) ClientConfig(serverName string) *tls.Config {
	return &tls.Config{
		ServerName:       serverName,
		RootCAs:          p.RootCAs,
		MinVersion:       tls.VersionTLS13,
		CurvePreferences: []tls.CurveID{tls.X25519, tls.CurveP256},
	}
}

// TLS connects over TLS.
type TLS struct {
	Host string
	// Port defaults to 443.
	Port int
	// Provider defaults to SystemTLS.
	Provider TLSProvider
	Logger   *slog.Logger
}

// Dial opens a connection and performs the TLS handshake. The context
// deadline, if any, applies to the whole connection.
func (c *TLS) Dial(ctx context.Context) (io.ReadWriteCloser, error) {
	provider := c.Provider
	if provider == nil {
		provider = SystemTLS{}
	}

	addr := address(c.Host, c.Port, 443)
	logger := internal.Logger(c.Logger)
	logger.Debug("dialing", "addr", addr, "tls", true)

	netConn, err := dialTCP(ctx, addr)
	if err != nil {
		return nil, err
	}
	tlsConn := tls.Client(netConn, provider.ClientConfig(c.Host))
	if err := tlsConn.HandshakeContext(ctx); err != nil {
		tlsConn.Close()
		return nil, err
	}
	state := tlsConn.ConnectionState()
	logger.Debug("TLS handshake complete", "addr", addr, "version", tls.VersionName(state.Version))
	return tlsConn, nil
}
