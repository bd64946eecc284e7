package carddav

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"strings"

	"github.com/emersion/go-addressbook"
	"github.com/emersion/go-addressbook/stream"
)

// Dialer opens a connection to the CardDAV server.
type Dialer interface {
	Dial(ctx context.Context) (io.ReadWriteCloser, error)
}

// Client provides access to a remote CardDAV server. Each call dials a new
// connection and closes it once the response has been received.
type Client struct {
	Config Config
	Dialer Dialer
}

var _ addressbook.Backend = (*Client)(nil)

// NewClient creates a client for the server described by c.
func NewClient(c *Config, d Dialer) *Client {
	return &Client{Config: *c, Dialer: d}
}

func (c *Client) run(ctx context.Context, f stream.Flow) error {
	conn, err := c.Dialer.Dial(ctx)
	if err != nil {
		return err
	}
	defer conn.Close()

	stop := context.AfterFunc(ctx, func() {
		conn.Close()
	})
	defer stop()

	if err := stream.Run(conn, f); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		return err
	}
	return nil
}

// ErrCrossHostRedirect is returned by Client.Discover when the well-known
// location redirects to another server.
var ErrCrossHostRedirect = errors.New("carddav: well-known location redirects to another host")

// Discover finds the addressbook home set of the authenticated user. The
// well-known location is queried first, then the principal found at the
// resulting context path. A redirect to another host fails with
// ErrCrossHostRedirect.
func (c *Client) Discover(ctx context.Context) (string, error) {
	cfg := c.Config

	wk := NewWellKnown(&cfg)
	if err := c.run(ctx, wk); err != nil {
		return "", err
	}
	loc, err := wk.Location()
	if err != nil {
		return "", err
	}
	cfg.HomeURI = WellKnownPath
	if loc != "" {
		u, err := url.Parse(loc)
		if err != nil {
			return "", fmt.Errorf("carddav: invalid redirect location %q: %w", loc, err)
		}
		// The dialer is bound to the configured server
		if u.Host != "" && !strings.EqualFold(u.Hostname(), c.Config.Host) {
			return "", fmt.Errorf("%w: %q", ErrCrossHostRedirect, loc)
		}
		cfg.HomeURI = u.Path
	}

	cup := NewCurrentUserPrincipal(&cfg)
	if err := c.run(ctx, cup); err != nil {
		return "", err
	}
	principal, err := cup.Principal()
	if err != nil {
		return "", err
	} else if principal == "" {
		return "", fmt.Errorf("carddav: no current user principal at %q", cfg.HomeURI)
	}

	hs := NewAddressbookHomeSet(&cfg, principal)
	if err := c.run(ctx, hs); err != nil {
		return "", err
	}
	homeSet, err := hs.HomeSet()
	if err != nil {
		return "", err
	} else if homeSet == "" {
		return "", fmt.Errorf("carddav: no addressbook home set for principal %q", principal)
	}
	return homeSet, nil
}

func (c *Client) ListAddressbooks(ctx context.Context) ([]addressbook.Addressbook, error) {
	f := NewListAddressbooks(&c.Config)
	if err := c.run(ctx, f); err != nil {
		return nil, err
	}
	return f.Addressbooks()
}

func (c *Client) CreateAddressbook(ctx context.Context, ab *addressbook.Addressbook) (*addressbook.Addressbook, error) {
	f := NewCreateAddressbook(&c.Config, ab)
	if err := c.run(ctx, f); err != nil {
		return nil, err
	}
	return f.Addressbook()
}

func (c *Client) UpdateAddressbook(ctx context.Context, ab *addressbook.Addressbook) (*addressbook.Addressbook, error) {
	f := NewUpdateAddressbook(&c.Config, ab)
	if err := c.run(ctx, f); err != nil {
		return nil, err
	}
	return f.Addressbook()
}

// ErrNotDeleted is returned by Client.DeleteAddressbook when the server
// refused the deletion.
var ErrNotDeleted = errors.New("carddav: addressbook not deleted")

func (c *Client) DeleteAddressbook(ctx context.Context, id string) error {
	f := NewDeleteAddressbook(&c.Config, id)
	if err := c.run(ctx, f); err != nil {
		return err
	}
	ok, err := f.Deleted()
	if err != nil {
		return err
	} else if !ok {
		return fmt.Errorf("%w: %q", ErrNotDeleted, id)
	}
	return nil
}

func (c *Client) ListCards(ctx context.Context, addressbookID string) ([]addressbook.Card, error) {
	f := NewListCards(&c.Config, addressbookID)
	if err := c.run(ctx, f); err != nil {
		return nil, err
	}
	return f.Cards()
}

func (c *Client) CreateCard(ctx context.Context, card *addressbook.Card) (*addressbook.Card, error) {
	f := NewCreateCard(&c.Config, card)
	if err := c.run(ctx, f); err != nil {
		return nil, err
	}
	return f.Card()
}

func (c *Client) ReadCard(ctx context.Context, addressbookID, id string) (*addressbook.Card, error) {
	f := NewReadCard(&c.Config, addressbookID, id)
	if err := c.run(ctx, f); err != nil {
		return nil, err
	}
	return f.Card()
}

func (c *Client) UpdateCard(ctx context.Context, card *addressbook.Card) (*addressbook.Card, error) {
	f := NewUpdateCard(&c.Config, card)
	if err := c.run(ctx, f); err != nil {
		return nil, err
	}
	return f.Card()
}

func (c *Client) DeleteCard(ctx context.Context, addressbookID, id string) error {
	f := NewDeleteCard(&c.Config, addressbookID, id)
	if err := c.run(ctx, f); err != nil {
		return err
	}
	return f.Err()
}
