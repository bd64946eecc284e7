package carddav

import (
	"encoding/xml"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/emersion/go-addressbook"
	"github.com/emersion/go-addressbook/httpflow"
	"github.com/emersion/go-addressbook/internal"
)

// ListAddressbooks lists the addressbooks of the home set.
type ListAddressbooks struct {
	*httpflow.SendFlow
	logger *slog.Logger
}

// NewListAddressbooks creates a flow listing the addressbooks under the home
// URI of c.
func NewListAddressbooks(c *Config) *ListAddressbooks {
	return &ListAddressbooks{
		SendFlow: newPropfindFlow(c, c.HomeURI, httpflow.DepthOne,
			resourceTypeName,
			displayNameName,
			addressbookDescriptionName,
			addressbookColorName,
		),
		logger: c.logger(),
	}
}

// Addressbooks returns the addressbooks found in the response. Resources
// which aren't addressbooks, such as the home set itself, are left out. A
// missing or blank display name defaults to the identifier.
func (f *ListAddressbooks) Addressbooks() ([]addressbook.Addressbook, error) {
	ms, err := decodeMultistatus[addressbookProp]("addressbook listing", f.SendFlow)
	if err != nil {
		return nil, err
	}

	var l []addressbook.Addressbook
	for _, res := range ms.Resources(f.logger) {
		if !res.Prop.isAddressbook() {
			f.logger.Debug("skipping non-addressbook resource", "href", res.Href)
			continue
		}
		id := lastSegment(res.Href)
		name, desc, color := res.Prop.fields()
		if name == "" {
			name = id
		}
		l = append(l, addressbook.Addressbook{
			ID:          id,
			Name:        name,
			Description: desc,
			Color:       color,
		})
	}
	return l, nil
}

func encodeAddressbookSet(ab *addressbook.Addressbook) addressbookSetProp {
	return addressbookSetProp{
		DisplayName: ab.Name,
		Description: ab.Description,
		Color:       ab.Color,
	}
}

// CreateAddressbook creates an addressbook with an extended MKCOL request,
// defined in RFC 5689.
type CreateAddressbook struct {
	*httpflow.SendFlow
	addressbook addressbook.Addressbook
	logger      *slog.Logger
}

// NewCreateAddressbook creates a flow creating ab.
func NewCreateAddressbook(c *Config, ab *addressbook.Addressbook) *CreateAddressbook {
	prop := encodeAddressbookSet(ab)
	prop.ResourceType = &addressbookResourceType{}
	body, err := internal.EncodeXML(&mkcol{Set: set{Prop: prop}})
	if err != nil {
		panic(fmt.Sprintf("carddav: failed to encode MKCOL body: %v", err))
	}

	req := c.newRequest(httpflow.MethodMkcol, c.addressbookPath(ab.ID)).ContentTypeXML()
	return &CreateAddressbook{
		SendFlow:    httpflow.NewSendFlow(req, body),
		addressbook: *ab,
		logger:      c.logger(),
	}
}

// Addressbook returns the created addressbook: the input merged with the
// properties the server reported.
func (f *CreateAddressbook) Addressbook() (*addressbook.Addressbook, error) {
	resp, err := response(f.SendFlow)
	if err != nil {
		return nil, err
	}
	if !resp.IsSuccess() {
		return nil, internal.NewHTTPError(resp)
	}

	ab := f.addressbook
	if len(resp.Body()) == 0 {
		return &ab, nil
	}

	var mr mkcolResponse
	if err := xml.Unmarshal(resp.Body(), &mr); err != nil {
		return nil, &DecodeError{Op: "MKCOL", Err: err}
	}
	for i := range mr.Propstats {
		ps := &mr.Propstats[i]
		if !ps.Status.IsSuccess() {
			f.logger.Debug("addressbook property not created", "id", ab.ID, "status", ps.Status)
			continue
		}
		mergeProp(&ab, &ps.Prop)
		break
	}
	return &ab, nil
}

func mergeProp(ab *addressbook.Addressbook, prop *addressbookProp) {
	name, desc, color := prop.fields()
	ab.Merge(&addressbook.Addressbook{Name: name, Description: desc, Color: color})
}

// UpdateAddressbook sets the properties of an addressbook with a PROPPATCH
// request. Empty fields are left untouched on the server.
type UpdateAddressbook struct {
	*httpflow.SendFlow
	addressbook addressbook.Addressbook
	logger      *slog.Logger
}

// NewUpdateAddressbook creates a flow updating ab.
func NewUpdateAddressbook(c *Config, ab *addressbook.Addressbook) *UpdateAddressbook {
	body, err := internal.EncodeXML(&propertyUpdate{Set: set{Prop: encodeAddressbookSet(ab)}})
	if err != nil {
		panic(fmt.Sprintf("carddav: failed to encode PROPPATCH body: %v", err))
	}

	req := c.newRequest(httpflow.MethodProppatch, c.addressbookPath(ab.ID)).ContentTypeXML()
	return &UpdateAddressbook{
		SendFlow:    httpflow.NewSendFlow(req, body),
		addressbook: *ab,
		logger:      c.logger(),
	}
}

// Addressbook returns the updated addressbook: the input merged with the
// properties the server reported.
func (f *UpdateAddressbook) Addressbook() (*addressbook.Addressbook, error) {
	resp, err := response(f.SendFlow)
	if err != nil {
		return nil, err
	}
	ab := f.addressbook
	if resp.IsSuccess() && len(resp.Body()) == 0 {
		return &ab, nil
	}

	ms, err := decodeMultistatus[addressbookProp]("PROPPATCH", f.SendFlow)
	if err != nil {
		return nil, err
	}
	for _, res := range ms.Resources(f.logger) {
		mergeProp(&ab, res.Prop)
	}
	return &ab, nil
}

// DeleteAddressbook deletes an addressbook and its cards.
type DeleteAddressbook struct {
	*httpflow.SendFlow
	logger *slog.Logger
}

// NewDeleteAddressbook creates a flow deleting the addressbook id.
func NewDeleteAddressbook(c *Config, id string) *DeleteAddressbook {
	req := c.newRequest(httpflow.MethodDelete, c.addressbookPath(id)).ContentTypeXML()
	return &DeleteAddressbook{
		SendFlow: httpflow.NewSendFlow(req, nil),
		logger:   c.logger(),
	}
}

// Deleted reports whether the server deleted the addressbook. A multistatus
// reply is judged by the status of its first response, any other reply by
// its status line.
func (f *DeleteAddressbook) Deleted() (bool, error) {
	resp, err := response(f.SendFlow)
	if err != nil {
		return false, err
	}
	if resp.StatusCode() != http.StatusMultiStatus {
		return resp.IsSuccess(), nil
	}

	ms, err := internal.DecodeMultistatus[struct{}](resp.Body())
	if err != nil {
		return false, &DecodeError{Op: "DELETE", Err: err}
	}
	if len(ms.Responses) == 0 {
		return false, &DecodeError{Op: "DELETE", Err: fmt.Errorf("missing response")}
	}
	status := ms.Responses[0].Status
	f.logger.Debug("addressbook deletion status", "href", ms.Responses[0].Href, "status", status)
	return status.IsSuccess(), nil
}
