// Package internal provides the WebDAV XML elements shared by the CardDAV
// flows.
package internal

import (
	"bytes"
	"encoding/xml"
	"log/slog"
	"strings"
)

const Namespace = "DAV:"

// Status is a raw HTTP status line such as "HTTP/1.1 200 OK".
type Status string

// IsSuccess reports whether the status denotes a 2xx status.
func (s Status) IsSuccess() bool {
	return strings.Contains(string(s), " 2")
}

// https://tools.ietf.org/html/rfc4918#section-14.16
type Multistatus[P any] struct {
	XMLName   xml.Name      `xml:"DAV: multistatus"`
	Responses []Response[P] `xml:"DAV: response"`
	// TODO: responsedescription?
}

// https://tools.ietf.org/html/rfc4918#section-14.24
type Response[P any] struct {
	Href      string        `xml:"DAV: href"`
	Status    Status        `xml:"DAV: status,omitempty"`
	Propstats []Propstat[P] `xml:"DAV: propstat"`
	// TODO: error?, responsedescription? , location?
}

// https://tools.ietf.org/html/rfc4918#section-14.22
type Propstat[P any] struct {
	Prop   P      `xml:"DAV: prop"`
	Status Status `xml:"DAV: status"`
}

// Resource is a response reduced to its first successful propstat.
type Resource[P any] struct {
	Href string
	Prop *P
}

// DecodeMultistatus parses a multistatus document with props of type P.
func DecodeMultistatus[P any](b []byte) (*Multistatus[P], error) {
	var ms Multistatus[P]
	if err := xml.NewDecoder(bytes.NewReader(b)).Decode(&ms); err != nil {
		return nil, err
	}
	return &ms, nil
}

// Resources returns the usable resources of the multistatus, in document
// order. Responses with an unsuccessful status are skipped, and only the
// first successful propstat of each response is kept. Responses without one
// are omitted.
func (ms *Multistatus[P]) Resources(logger *slog.Logger) []Resource[P] {
	logger = Logger(logger)
	var l []Resource[P]
	for i := range ms.Responses {
		resp := &ms.Responses[i]
		if resp.Status != "" && !resp.Status.IsSuccess() {
			logger.Debug("skipping multistatus response", "href", resp.Href, "status", resp.Status)
			continue
		}

		prop := resp.successfulProp()
		if prop == nil {
			logger.Debug("skipping multistatus response without successful propstat", "href", resp.Href)
			continue
		}
		l = append(l, Resource[P]{Href: resp.Href, Prop: prop})
	}
	return l
}

func (resp *Response[P]) successfulProp() *P {
	for i := range resp.Propstats {
		if resp.Propstats[i].Status.IsSuccess() {
			return &resp.Propstats[i].Prop
		}
	}
	return nil
}

// Href is an element holding a DAV:href.
type Href struct {
	Href string `xml:"DAV: href"`
}

// https://tools.ietf.org/html/rfc4918#section-15.9
type ResourceType struct {
	Raw []xml.Name `xml:",any"`
}

// Is reports whether the resource type contains the provided name.
func (t *ResourceType) Is(name xml.Name) bool {
	for _, raw := range t.Raw {
		if raw == name {
			return true
		}
	}
	return false
}

// UnmarshalXML collects the names of the children of a DAV:resourcetype
// element.
func (t *ResourceType) UnmarshalXML(d *xml.Decoder, start xml.StartElement) error {
	for {
		tok, err := d.Token()
		if err != nil {
			return err
		}
		switch tok := tok.(type) {
		case xml.StartElement:
			t.Raw = append(t.Raw, tok.Name)
			if err := d.Skip(); err != nil {
				return err
			}
		case xml.EndElement:
			return nil
		}
	}
}
