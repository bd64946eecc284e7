package carddav

import (
	"encoding/xml"
	"strings"

	"github.com/emersion/go-addressbook/internal"
)

var (
	addressbookName = xml.Name{Space: namespace, Local: "addressbook"}

	currentUserPrincipalName   = xml.Name{Space: internal.Namespace, Local: "current-user-principal"}
	addressbookHomeSetName     = xml.Name{Space: namespace, Local: "addressbook-home-set"}
	resourceTypeName           = xml.Name{Space: internal.Namespace, Local: "resourcetype"}
	displayNameName            = xml.Name{Space: internal.Namespace, Local: "displayname"}
	addressbookDescriptionName = xml.Name{Space: namespace, Local: "addressbook-description"}
	addressbookColorName       = xml.Name{Space: appleNamespace, Local: "addressbook-color"}
	getETagName                = xml.Name{Space: internal.Namespace, Local: "getetag"}
	addressDataName            = xml.Name{Space: namespace, Local: "address-data"}
)

// propNames marshals to a list of empty elements.
type propNames []xml.Name

func (names propNames) MarshalXML(e *xml.Encoder, start xml.StartElement) error {
	if err := e.EncodeToken(start); err != nil {
		return err
	}
	for _, name := range names {
		if err := e.EncodeToken(xml.StartElement{Name: name}); err != nil {
			return err
		}
		if err := e.EncodeToken(xml.EndElement{Name: name}); err != nil {
			return err
		}
	}
	return e.EncodeToken(start.End())
}

// https://tools.ietf.org/html/rfc4918#section-14.20
type propfind struct {
	XMLName xml.Name  `xml:"DAV: propfind"`
	Prop    propNames `xml:"DAV: prop"`
}

// https://tools.ietf.org/html/rfc6352#section-10.3
type addressbookQuery struct {
	XMLName xml.Name  `xml:"urn:ietf:params:xml:ns:carddav addressbook-query"`
	Prop    propNames `xml:"DAV: prop"`
}

// https://tools.ietf.org/html/rfc5689#section-5.1
type mkcol struct {
	XMLName xml.Name `xml:"DAV: mkcol"`
	Set     set      `xml:"DAV: set"`
}

// https://tools.ietf.org/html/rfc4918#section-14.19
type propertyUpdate struct {
	XMLName xml.Name `xml:"DAV: propertyupdate"`
	Set     set      `xml:"DAV: set"`
}

// https://tools.ietf.org/html/rfc4918#section-14.26
type set struct {
	Prop addressbookSetProp `xml:"DAV: prop"`
}

type addressbookSetProp struct {
	ResourceType *addressbookResourceType `xml:"DAV: resourcetype,omitempty"`
	DisplayName  string                   `xml:"DAV: displayname,omitempty"`
	Description  string                   `xml:"urn:ietf:params:xml:ns:carddav addressbook-description,omitempty"`
	Color        string                   `xml:"http://apple.com/ns/ical/ addressbook-color,omitempty"`
}

type addressbookResourceType struct {
	Collection  struct{} `xml:"DAV: collection"`
	Addressbook struct{} `xml:"urn:ietf:params:xml:ns:carddav addressbook"`
}

// https://tools.ietf.org/html/rfc5689#section-5.2
type mkcolResponse struct {
	XMLName   xml.Name                             `xml:"DAV: mkcol-response"`
	Propstats []internal.Propstat[addressbookProp] `xml:"DAV: propstat"`
}

type currentUserPrincipalProp struct {
	CurrentUserPrincipal *internal.Href `xml:"DAV: current-user-principal"`
}

type addressbookHomeSetProp struct {
	AddressbookHomeSet *internal.Href `xml:"urn:ietf:params:xml:ns:carddav addressbook-home-set"`
}

type addressbookProp struct {
	ResourceType *internal.ResourceType `xml:"DAV: resourcetype"`
	DisplayName  *string                `xml:"DAV: displayname"`
	Description  *string                `xml:"urn:ietf:params:xml:ns:carddav addressbook-description"`
	Color        *string                `xml:"http://apple.com/ns/ical/ addressbook-color"`
}

func (p *addressbookProp) isAddressbook() bool {
	return p.ResourceType != nil && p.ResourceType.Is(addressbookName)
}

// fields returns the non-blank properties.
func (p *addressbookProp) fields() (name, desc, color string) {
	value := func(s *string) string {
		if s == nil || strings.TrimSpace(*s) == "" {
			return ""
		}
		return *s
	}
	return value(p.DisplayName), value(p.Description), value(p.Color)
}

type addressDataProp struct {
	ETag        *string `xml:"DAV: getetag"`
	AddressData *string `xml:"urn:ietf:params:xml:ns:carddav address-data"`
}
