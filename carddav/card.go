package carddav

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/emersion/go-addressbook"
	"github.com/emersion/go-addressbook/httpflow"
	"github.com/emersion/go-addressbook/internal"
)

const vcardExt = ".vcf"

// putCard is shared by card creation and update: both PUT the vCard to the
// card location.
type putCard struct {
	*httpflow.SendFlow
	card addressbook.Card
}

func newPutCard(c *Config, card *addressbook.Card) putCard {
	req := c.newRequest(httpflow.MethodPut, c.cardPath(card.AddressbookID, card.ID)).ContentTypeVCard()
	return putCard{
		SendFlow: httpflow.NewSendFlow(req, card.Content),
		card:     *card,
	}
}

// Card returns the stored card.
func (f *putCard) Card() (*addressbook.Card, error) {
	resp, err := response(f.SendFlow)
	if err != nil {
		return nil, err
	}
	if !resp.IsSuccess() {
		return nil, internal.NewHTTPError(resp)
	}
	card := f.card
	return &card, nil
}

// CreateCard uploads a new card.
type CreateCard struct {
	putCard
}

// NewCreateCard creates a flow uploading card into its addressbook.
func NewCreateCard(c *Config, card *addressbook.Card) *CreateCard {
	return &CreateCard{newPutCard(c, card)}
}

// UpdateCard replaces the content of a card.
type UpdateCard struct {
	putCard
}

// NewUpdateCard creates a flow replacing card.
func NewUpdateCard(c *Config, card *addressbook.Card) *UpdateCard {
	return &UpdateCard{newPutCard(c, card)}
}

// ReadCard fetches a card.
type ReadCard struct {
	*httpflow.SendFlow
	addressbookID, id string
}

// NewReadCard creates a flow fetching the card id of an addressbook.
func NewReadCard(c *Config, addressbookID, id string) *ReadCard {
	req := c.newRequest(httpflow.MethodGet, c.cardPath(addressbookID, id))
	return &ReadCard{
		SendFlow:      httpflow.NewSendFlow(req, nil),
		addressbookID: addressbookID,
		id:            id,
	}
}

// Card returns the fetched card.
func (f *ReadCard) Card() (*addressbook.Card, error) {
	resp, err := response(f.SendFlow)
	if err != nil {
		return nil, err
	}
	if !resp.IsSuccess() {
		return nil, internal.NewHTTPError(resp)
	}
	card, err := addressbook.ParseCard(f.addressbookID, f.id, resp.Body())
	if err != nil {
		return nil, &DecodeError{Op: "GET", Err: err}
	}
	return card, nil
}

// DeleteCard deletes a card.
type DeleteCard struct {
	*httpflow.SendFlow
}

// NewDeleteCard creates a flow deleting the card id of an addressbook.
func NewDeleteCard(c *Config, addressbookID, id string) *DeleteCard {
	req := c.newRequest(httpflow.MethodDelete, c.cardPath(addressbookID, id))
	return &DeleteCard{httpflow.NewSendFlow(req, nil)}
}

// Err returns the outcome of the deletion.
func (f *DeleteCard) Err() error {
	resp, err := response(f.SendFlow)
	if err != nil {
		return err
	}
	if !resp.IsSuccess() {
		return internal.NewHTTPError(resp)
	}
	return nil
}

// ListCards lists the cards of an addressbook with an addressbook-query
// REPORT.
type ListCards struct {
	*httpflow.SendFlow
	addressbookID string
	logger        *slog.Logger
}

// NewListCards creates a flow listing the cards of an addressbook.
func NewListCards(c *Config, addressbookID string) *ListCards {
	body, err := internal.EncodeXML(&addressbookQuery{
		Prop: propNames{getETagName, addressDataName},
	})
	if err != nil {
		panic(fmt.Sprintf("carddav: failed to encode REPORT body: %v", err))
	}

	req := c.newRequest(httpflow.MethodReport, c.addressbookPath(addressbookID)).
		Depth(httpflow.DepthOne).
		ContentTypeXML()
	return &ListCards{
		SendFlow:      httpflow.NewSendFlow(req, body),
		addressbookID: addressbookID,
		logger:        c.logger(),
	}
}

// Cards returns the cards found in the response. Entries without valid
// vCard data are left out.
func (f *ListCards) Cards() ([]addressbook.Card, error) {
	ms, err := decodeMultistatus[addressDataProp]("addressbook-query", f.SendFlow)
	if err != nil {
		return nil, err
	}

	var l []addressbook.Card
	for _, res := range ms.Resources(f.logger) {
		if res.Prop.AddressData == nil {
			f.logger.Debug("skipping resource without address data", "href", res.Href)
			continue
		}
		id := strings.TrimSuffix(lastSegment(res.Href), vcardExt)
		card, err := addressbook.ParseCard(f.addressbookID, id, normalizeAddressData(*res.Prop.AddressData))
		if err != nil {
			f.logger.Debug("skipping invalid card", "href", res.Href, "err", err)
			continue
		}
		l = append(l, *card)
	}
	return l, nil
}

// normalizeAddressData restores the CRLF line endings vCard requires, which
// XML parsing turns into LF.
func normalizeAddressData(s string) []byte {
	s = strings.TrimSpace(strings.ReplaceAll(s, "\r\n", "\n"))
	if s == "" {
		return nil
	}
	return []byte(strings.ReplaceAll(s, "\n", "\r\n") + "\r\n")
}
