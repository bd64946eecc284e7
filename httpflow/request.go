// Package httpflow implements HTTP/1.x request encoding and response
// framing as a resumable network flow.
package httpflow

import (
	"encoding/base64"
	"fmt"
	"net/http"
	"strconv"
	"time"
)

// HTTP methods used by CardDAV clients.
const (
	MethodGet       = "GET"
	MethodPut       = "PUT"
	MethodDelete    = "DELETE"
	MethodMkcol     = "MKCOL"
	MethodPropfind  = "PROPFIND"
	MethodProppatch = "PROPPATCH"
	MethodReport    = "REPORT"
)

// Version is an HTTP protocol version.
type Version string

const (
	Version10 Version = "1.0"
	Version11 Version = "1.1"
)

// ParseVersion parses "1.0" or "1.1". An empty string selects Version11.
func ParseVersion(s string) (Version, error) {
	switch Version(s) {
	case Version10:
		return Version10, nil
	case Version11, "":
		return Version11, nil
	}
	return "", fmt.Errorf("httpflow: unsupported HTTP version %q", s)
}

var crlf = []byte("\r\n")

type headerField struct {
	key, value string
}

// Request is an HTTP request head. Headers are serialized in the order they
// were added, after the Date header.
type Request struct {
	method  string
	path    string
	version Version
	date    time.Time
	fields  []headerField
}

// NewRequest creates a request dated now.
func NewRequest(method, path string, version Version) *Request {
	return &Request{
		method:  method,
		path:    path,
		version: version,
		date:    time.Now(),
	}
}

// Method returns the request method.
func (r *Request) Method() string {
	return r.method
}

// Path returns the request target.
func (r *Request) Path() string {
	return r.path
}

// Version returns the request protocol version.
func (r *Request) Version() Version {
	return r.version
}

// Header appends a header field.
func (r *Request) Header(key, value string) *Request {
	r.fields = append(r.fields, headerField{key, value})
	return r
}

// BasicAuth appends an Authorization header for HTTP basic authentication.
func (r *Request) BasicAuth(username, password string) *Request {
	auth := base64.StdEncoding.EncodeToString([]byte(username + ":" + password))
	return r.Header("Authorization", "Basic "+auth)
}

// Depth appends a Depth header.
func (r *Request) Depth(depth Depth) *Request {
	return r.Header("Depth", depth.String())
}

// ContentTypeXML sets an XML content type.
func (r *Request) ContentTypeXML() *Request {
	return r.Header("Content-Type", "text/xml; charset=utf-8")
}

// ContentTypeVCard sets a vCard content type.
func (r *Request) ContentTypeVCard() *Request {
	return r.Header("Content-Type", "text/vcard; charset=utf-8")
}

// Encode returns the wire representation of the request followed by body.
// Content-Length is always set.
func (r *Request) Encode(body []byte) []byte {
	b := make([]byte, 0, 128+len(body))

	b = append(b, r.method...)
	b = append(b, ' ')
	b = append(b, r.path...)
	b = append(b, " HTTP/"...)
	b = append(b, r.version...)
	b = append(b, crlf...)

	// http.TimeFormat already ends with "GMT"
	b = append(b, "Date: "...)
	b = append(b, r.date.UTC().Format(http.TimeFormat)...)
	b = append(b, crlf...)

	for _, f := range r.fields {
		b = append(b, f.key...)
		b = append(b, ": "...)
		b = append(b, f.value...)
		b = append(b, crlf...)
	}

	b = append(b, "Content-Length: "...)
	b = strconv.AppendInt(b, int64(len(body)), 10)
	b = append(b, crlf...)
	b = append(b, crlf...)

	return append(b, body...)
}
