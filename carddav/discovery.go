package carddav

import (
	"context"
	"encoding/xml"
	"fmt"
	"log/slog"

	"github.com/emersion/go-addressbook/httpflow"
	"github.com/emersion/go-addressbook/internal"
)

// Service is the location of a CardDAV server.
type Service = internal.Service

// Resolver looks up DNS records. It's implemented by *net.Resolver.
type Resolver = internal.Resolver

// Discover performs a DNS-based CardDAV service discovery as described in
// RFC 6352 section 11. A nil resolver uses net.DefaultResolver.
func Discover(ctx context.Context, r Resolver, domain string) (*Service, error) {
	return internal.Discover(ctx, r, "carddav", domain)
}

func newPropfindFlow(c *Config, path string, depth httpflow.Depth, names ...xml.Name) *httpflow.SendFlow {
	body, err := internal.EncodeXML(&propfind{Prop: names})
	if err != nil {
		panic(fmt.Sprintf("carddav: failed to encode PROPFIND body: %v", err))
	}
	req := c.newRequest(httpflow.MethodPropfind, path).Depth(depth).ContentTypeXML()
	return httpflow.NewSendFlow(req, body)
}

// CurrentUserPrincipal finds the principal of the authenticated user, as
// described in RFC 5397.
type CurrentUserPrincipal struct {
	*httpflow.SendFlow
	logger *slog.Logger
}

// NewCurrentUserPrincipal creates a flow querying the home URI of c.
func NewCurrentUserPrincipal(c *Config) *CurrentUserPrincipal {
	return &CurrentUserPrincipal{
		SendFlow: newPropfindFlow(c, c.HomeURI, httpflow.DepthZero, currentUserPrincipalName),
		logger:   c.logger(),
	}
}

// Principal returns the principal href, or an empty string if the server
// did not report any.
func (f *CurrentUserPrincipal) Principal() (string, error) {
	ms, err := decodeMultistatus[currentUserPrincipalProp]("current-user-principal", f.SendFlow)
	if err != nil {
		return "", err
	}
	for _, res := range ms.Resources(f.logger) {
		if p := res.Prop.CurrentUserPrincipal; p != nil && p.Href != "" {
			return p.Href, nil
		}
	}
	return "", nil
}

// AddressbookHomeSet finds the collection holding the addressbooks of a
// principal, as described in RFC 6352 section 7.1.1.
type AddressbookHomeSet struct {
	*httpflow.SendFlow
	logger *slog.Logger
}

// NewAddressbookHomeSet creates a flow querying principal.
func NewAddressbookHomeSet(c *Config, principal string) *AddressbookHomeSet {
	return &AddressbookHomeSet{
		SendFlow: newPropfindFlow(c, principal, httpflow.DepthZero, addressbookHomeSetName),
		logger:   c.logger(),
	}
}

// HomeSet returns the home set href, or an empty string if the server did
// not report any.
func (f *AddressbookHomeSet) HomeSet() (string, error) {
	ms, err := decodeMultistatus[addressbookHomeSetProp]("addressbook-home-set", f.SendFlow)
	if err != nil {
		return "", err
	}
	for _, res := range ms.Resources(f.logger) {
		if p := res.Prop.AddressbookHomeSet; p != nil && p.Href != "" {
			return p.Href, nil
		}
	}
	return "", nil
}

// WellKnown queries the well-known CardDAV location defined in RFC 6764
// section 5.
type WellKnown struct {
	*httpflow.SendFlow
}

// WellKnownPath is the well-known CardDAV context path.
const WellKnownPath = "/.well-known/carddav"

// NewWellKnown creates a flow querying the well-known location.
func NewWellKnown(c *Config) *WellKnown {
	return &WellKnown{
		SendFlow: newPropfindFlow(c, WellKnownPath, httpflow.DepthZero, currentUserPrincipalName),
	}
}

// Location returns the target of the redirection, or an empty string if
// the server did not redirect. Servers serving CardDAV at the well-known
// location directly reply with a multistatus.
func (f *WellKnown) Location() (string, error) {
	resp, err := response(f.SendFlow)
	if err != nil {
		return "", err
	}
	switch code := resp.StatusCode(); {
	case code >= 300 && code < 400:
		loc := resp.HeaderValue("Location")
		if loc == "" {
			return "", fmt.Errorf("carddav: redirect without Location header")
		}
		return loc, nil
	case resp.IsSuccess():
		return "", nil
	default:
		return "", internal.NewHTTPError(resp)
	}
}
