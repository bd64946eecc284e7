// Package carddav provides CardDAV client flows, defined in RFC 6352.
//
// Each operation is a flow created from a Config. Flows implement
// stream.Flow and never perform I/O themselves; once driven to completion,
// their result is read with an accessor such as Addressbooks or Card.
package carddav

import (
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/url"
	"strconv"
	"strings"

	"github.com/emersion/go-addressbook/httpflow"
	"github.com/emersion/go-addressbook/internal"
)

const namespace = "urn:ietf:params:xml:ns:carddav"

const appleNamespace = "http://apple.com/ns/ical/"

// HTTPError is returned when the server replies with an unsuccessful status.
type HTTPError = internal.HTTPError

// ErrNotDone is returned when reading the result of an unfinished flow.
var ErrNotDone = errors.New("carddav: flow has not completed")

// DecodeError is returned when a response body cannot be decoded.
type DecodeError struct {
	Op  string
	Err error
}

func (err *DecodeError) Error() string {
	return fmt.Sprintf("carddav: failed to decode %v response: %v", err.Op, err.Err)
}

func (err *DecodeError) Unwrap() error {
	return err.Err
}

// BasicAuth holds credentials for HTTP basic authentication.
type BasicAuth struct {
	Username string
	Password string
}

// Config describes a CardDAV server.
type Config struct {
	Host string
	// Port is sent in the Host header when set. Leave it unset when the
	// server listens on the default port of the transport.
	Port int
	// Version defaults to HTTP/1.1.
	Version httpflow.Version
	// HomeURI is the path of the addressbook home set.
	HomeURI string
	// BasicAuth is nil when no authentication is needed.
	BasicAuth *BasicAuth
	Logger    *slog.Logger
}

func (c *Config) logger() *slog.Logger {
	return internal.Logger(c.Logger)
}

func (c *Config) version() httpflow.Version {
	if c.Version == "" {
		return httpflow.Version11
	}
	return c.Version
}

// hostHeader omits the port only when it's unset, since the default port
// depends on the transport.
func (c *Config) hostHeader() string {
	if c.Port == 0 {
		return c.Host
	}
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

func (c *Config) newRequest(method, path string) *httpflow.Request {
	req := httpflow.NewRequest(method, path, c.version())
	// Host is mandatory in HTTP/1.1
	if c.version() == httpflow.Version11 && c.Host != "" {
		req.Header("Host", c.hostHeader())
	}
	if c.BasicAuth != nil {
		req.BasicAuth(c.BasicAuth.Username, c.BasicAuth.Password)
	}
	return req
}

func (c *Config) addressbookPath(id string) string {
	return strings.TrimRight(c.HomeURI, "/") + "/" + url.PathEscape(id)
}

func (c *Config) cardPath(addressbookID, id string) string {
	return c.addressbookPath(addressbookID) + "/" + url.PathEscape(id) + ".vcf"
}

// lastSegment returns the last segment of an href, ignoring a trailing
// slash.
func lastSegment(href string) string {
	href = strings.TrimRight(href, "/")
	if i := strings.LastIndexByte(href, '/'); i >= 0 {
		href = href[i+1:]
	}
	if s, err := url.PathUnescape(href); err == nil {
		return s
	}
	return href
}

// response returns the framed response of a completed send flow.
func response(f *httpflow.SendFlow) (*httpflow.Response, error) {
	resp := f.Response()
	if resp == nil {
		return nil, ErrNotDone
	}
	return resp, nil
}

// decodeMultistatus checks the response status and decodes its multistatus
// body.
func decodeMultistatus[P any](op string, f *httpflow.SendFlow) (*internal.Multistatus[P], error) {
	resp, err := response(f)
	if err != nil {
		return nil, err
	}
	if !resp.IsSuccess() {
		return nil, internal.NewHTTPError(resp)
	}
	ms, err := internal.DecodeMultistatus[P](resp.Body())
	if err != nil {
		return nil, &DecodeError{Op: op, Err: err}
	}
	return ms, nil
}
