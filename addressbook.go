// Package addressbook defines the values shared by the CardDAV and vdir
// clients.
package addressbook

import (
	"bytes"
	"context"
	"fmt"

	"github.com/emersion/go-vcard"
	"github.com/google/uuid"
)

// Addressbook is a collection of cards. Empty fields are absent.
type Addressbook struct {
	ID          string `json:"id"`
	Name        string `json:"name,omitempty"`
	Description string `json:"description,omitempty"`
	Color       string `json:"color,omitempty"`
}

// NewAddressbook returns an addressbook with a random identifier.
func NewAddressbook() *Addressbook {
	return &Addressbook{ID: uuid.NewString()}
}

// DisplayName returns the name of the addressbook, defaulting to its
// identifier.
func (ab *Addressbook) DisplayName() string {
	if ab.Name != "" {
		return ab.Name
	}
	return ab.ID
}

// Merge overwrites the fields of ab that are present in other.
func (ab *Addressbook) Merge(other *Addressbook) {
	if other.Name != "" {
		ab.Name = other.Name
	}
	if other.Description != "" {
		ab.Description = other.Description
	}
	if other.Color != "" {
		ab.Color = other.Color
	}
}

// Card is a vCard stored in an addressbook.
type Card struct {
	ID            string `json:"id"`
	AddressbookID string `json:"addressbook_id"`
	Content       []byte `json:"-"`
}

// CardKey identifies a card.
type CardKey struct {
	AddressbookID, ID string
}

// NewCard serializes c into a new card with a random identifier. The UID
// field is set to the identifier when missing.
func NewCard(addressbookID string, c vcard.Card) (*Card, error) {
	id := uuid.NewString()
	if c == nil {
		c = make(vcard.Card)
	}
	if c.Value(vcard.FieldUID) == "" {
		c.SetValue(vcard.FieldUID, id)
	}
	if c.Value(vcard.FieldVersion) == "" {
		c.SetValue(vcard.FieldVersion, "4.0")
	}

	var buf bytes.Buffer
	if err := vcard.NewEncoder(&buf).Encode(c); err != nil {
		return nil, fmt.Errorf("addressbook: failed to encode vCard: %w", err)
	}
	return &Card{ID: id, AddressbookID: addressbookID, Content: buf.Bytes()}, nil
}

// ParseCard validates content as a vCard and returns the corresponding card.
func ParseCard(addressbookID, id string, content []byte) (*Card, error) {
	card := &Card{ID: id, AddressbookID: addressbookID, Content: content}
	if _, err := card.VCard(); err != nil {
		return nil, err
	}
	return card, nil
}

// Key returns the identity of the card. Content is not part of it.
func (c *Card) Key() CardKey {
	return CardKey{AddressbookID: c.AddressbookID, ID: c.ID}
}

// Equal reports whether both cards have the same identity and content.
func (c *Card) Equal(other *Card) bool {
	return c.Key() == other.Key() && bytes.Equal(c.Content, other.Content)
}

// VCard parses the card content.
func (c *Card) VCard() (vcard.Card, error) {
	card, err := vcard.NewDecoder(bytes.NewReader(c.Content)).Decode()
	if err != nil {
		return nil, fmt.Errorf("addressbook: invalid vCard for card %q: %w", c.ID, err)
	}
	return card, nil
}

func (c *Card) String() string {
	return string(c.Content)
}

// Backend is implemented by the CardDAV and vdir clients.
type Backend interface {
	ListAddressbooks(ctx context.Context) ([]Addressbook, error)
	CreateAddressbook(ctx context.Context, ab *Addressbook) (*Addressbook, error)
	UpdateAddressbook(ctx context.Context, ab *Addressbook) (*Addressbook, error)
	DeleteAddressbook(ctx context.Context, id string) error

	ListCards(ctx context.Context, addressbookID string) ([]Card, error)
	CreateCard(ctx context.Context, card *Card) (*Card, error)
	ReadCard(ctx context.Context, addressbookID, id string) (*Card, error)
	UpdateCard(ctx context.Context, card *Card) (*Card, error)
	DeleteCard(ctx context.Context, addressbookID, id string) error
}
