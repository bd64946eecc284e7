package vdir

import (
	"context"

	"github.com/emersion/go-addressbook"
	"github.com/emersion/go-addressbook/fsio"
)

// Client manages addressbooks stored in a vdir home directory.
type Client struct {
	Config   Config
	Executor fsio.Executor
}

var _ addressbook.Backend = (*Client)(nil)

// NewClient creates a client servicing flows on the local filesystem.
func NewClient(c *Config) *Client {
	return &Client{
		Config:   *c,
		Executor: &fsio.Local{Logger: c.Logger},
	}
}

// run drives f. Filesystem operations don't block on the context, it is only
// checked between them.
func (c *Client) run(ctx context.Context, f fsio.Flow) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		intent, ok := f.Next()
		if !ok {
			return nil
		}
		if err := c.Executor.Execute(f.State(), intent); err != nil {
			return err
		}
	}
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

func (c *Client) DeleteAddressbook(ctx context.Context, id string) error {
	f := NewDeleteAddressbook(&c.Config, id)
	if err := c.run(ctx, f); err != nil {
		return err
	}
	return f.Err()
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
