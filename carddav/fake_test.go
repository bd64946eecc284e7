package carddav

import (
	"bufio"
	"bytes"
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"sync"
)

const testHome = "/dav/addressbooks/"

// handlerConn is a connection to an http.Handler. Written bytes are parsed
// as a request on the first read, and the handler reply is served back.
type handlerConn struct {
	h    http.Handler
	req  bytes.Buffer
	resp *bytes.Reader

	// chunk limits the size of reads and writes when positive
	chunk int
}

func (c *handlerConn) Write(p []byte) (int, error) {
	if c.chunk > 0 && len(p) > c.chunk {
		p = p[:c.chunk]
	}
	return c.req.Write(p)
}

func (c *handlerConn) Read(p []byte) (int, error) {
	if c.resp == nil {
		req, err := http.ReadRequest(bufio.NewReader(&c.req))
		if err != nil {
			return 0, err
		}
		rec := httptest.NewRecorder()
		c.h.ServeHTTP(rec, req)
		c.resp = bytes.NewReader(serializeResponse(rec))
	}
	if c.chunk > 0 && len(p) > c.chunk {
		p = p[:c.chunk]
	}
	return c.resp.Read(p)
}

func (c *handlerConn) Close() error {
	return nil
}

func serializeResponse(rec *httptest.ResponseRecorder) []byte {
	var b bytes.Buffer
	fmt.Fprintf(&b, "HTTP/1.1 %d %s\r\n", rec.Code, http.StatusText(rec.Code))
	for k, values := range rec.Header() {
		for _, v := range values {
			fmt.Fprintf(&b, "%s: %s\r\n", k, v)
		}
	}
	fmt.Fprintf(&b, "Content-Length: %d\r\n\r\n", rec.Body.Len())
	b.Write(rec.Body.Bytes())
	return b.Bytes()
}

type handlerDialer struct {
	h     http.Handler
	chunk int
}

func (d handlerDialer) Dial(ctx context.Context) (io.ReadWriteCloser, error) {
	return &handlerConn{h: d.h, chunk: d.chunk}, nil
}

// memServer is an in-memory CardDAV server rooted at testHome.
type memServer struct {
	mu           sync.Mutex
	addressbooks map[string]*memAddressbook
	requests     []string
}

type memAddressbook struct {
	props map[string]string
	cards map[string][]byte
}

func newMemServer() *memServer {
	return &memServer{addressbooks: make(map[string]*memAddressbook)}
}

type testSetProp struct {
	DisplayName *string `xml:"DAV: displayname"`
	Description *string `xml:"urn:ietf:params:xml:ns:carddav addressbook-description"`
	Color       *string `xml:"http://apple.com/ns/ical/ addressbook-color"`
}

type testPropUpdate struct {
	Set struct {
		Prop testSetProp `xml:"DAV: prop"`
	} `xml:"DAV: set"`
}

func (p *testSetProp) apply(props map[string]string) {
	if p.DisplayName != nil {
		props["displayname"] = *p.DisplayName
	}
	if p.Description != nil {
		props["description"] = *p.Description
	}
	if p.Color != nil {
		props["color"] = *p.Color
	}
}

func (s *memServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.requests = append(s.requests, r.Method+" "+r.URL.Path)

	if !strings.HasPrefix(r.URL.Path, testHome) {
		http.NotFound(w, r)
		return
	}
	abID, cardName, _ := strings.Cut(strings.TrimPrefix(r.URL.Path, testHome), "/")
	abID = strings.TrimSuffix(abID, "/")

	var err error
	switch {
	case abID == "" && r.Method == "PROPFIND":
		s.listAddressbooks(w)
	case cardName == "" && r.Method == "MKCOL":
		err = s.createAddressbook(w, r, abID)
	case cardName == "" && r.Method == "PROPPATCH":
		err = s.updateAddressbook(w, r, abID)
	case cardName == "" && r.Method == "DELETE":
		if _, ok := s.addressbooks[abID]; !ok {
			http.NotFound(w, r)
			return
		}
		delete(s.addressbooks, abID)
		w.WriteHeader(http.StatusNoContent)
	case cardName == "" && r.Method == "REPORT":
		s.listCards(w, r, abID)
	case cardName != "":
		err = s.serveCard(w, r, abID, strings.TrimSuffix(cardName, ".vcf"))
	default:
		http.Error(w, "unsupported request", http.StatusMethodNotAllowed)
	}
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
	}
}

func (s *memServer) createAddressbook(w http.ResponseWriter, r *http.Request, id string) error {
	if _, ok := s.addressbooks[id]; ok {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return nil
	}
	var mkcol testPropUpdate
	if err := xml.NewDecoder(r.Body).Decode(&mkcol); err != nil {
		return err
	}
	ab := &memAddressbook{props: make(map[string]string), cards: make(map[string][]byte)}
	mkcol.Set.Prop.apply(ab.props)
	s.addressbooks[id] = ab
	w.WriteHeader(http.StatusCreated)
	return nil
}

func (s *memServer) updateAddressbook(w http.ResponseWriter, r *http.Request, id string) error {
	ab, ok := s.addressbooks[id]
	if !ok {
		http.NotFound(w, r)
		return nil
	}
	var update testPropUpdate
	if err := xml.NewDecoder(r.Body).Decode(&update); err != nil {
		return err
	}
	update.Set.Prop.apply(ab.props)

	// Servers acknowledge the updated properties with empty elements
	var names []string
	if update.Set.Prop.DisplayName != nil {
		names = append(names, `<D:displayname/>`)
	}
	if update.Set.Prop.Description != nil {
		names = append(names, `<C:addressbook-description/>`)
	}
	if update.Set.Prop.Color != nil {
		names = append(names, `<A:addressbook-color/>`)
	}
	writeMultistatus(w, fmt.Sprintf(`<D:response><D:href>%s</D:href>
<D:propstat><D:prop>%s</D:prop><D:status>HTTP/1.1 200 OK</D:status></D:propstat>
</D:response>`, testHome+id+"/", strings.Join(names, "")))
	return nil
}

func (s *memServer) listAddressbooks(w http.ResponseWriter) {
	var b strings.Builder
	b.WriteString(`<D:response><D:href>` + testHome + `</D:href>
<D:propstat><D:prop><D:resourcetype><D:collection/></D:resourcetype></D:prop><D:status>HTTP/1.1 200 OK</D:status></D:propstat>
</D:response>`)
	for _, id := range sortedKeys(s.addressbooks) {
		ab := s.addressbooks[id]
		var found, missing strings.Builder
		found.WriteString(`<D:resourcetype><D:collection/><C:addressbook/></D:resourcetype>`)
		for _, p := range []struct{ key, elem string }{
			{"displayname", "D:displayname"},
			{"description", "C:addressbook-description"},
			{"color", "A:addressbook-color"},
		} {
			if v, ok := ab.props[p.key]; ok {
				fmt.Fprintf(&found, "<%s>%s</%s>", p.elem, escapeText(v), p.elem)
			} else {
				fmt.Fprintf(&missing, "<%s/>", p.elem)
			}
		}
		fmt.Fprintf(&b, `<D:response><D:href>%s</D:href>
<D:propstat><D:prop>%s</D:prop><D:status>HTTP/1.1 200 OK</D:status></D:propstat>
<D:propstat><D:prop>%s</D:prop><D:status>HTTP/1.1 404 Not Found</D:status></D:propstat>
</D:response>`, testHome+id+"/", found.String(), missing.String())
	}
	writeMultistatus(w, b.String())
}

func (s *memServer) listCards(w http.ResponseWriter, r *http.Request, abID string) {
	ab, ok := s.addressbooks[abID]
	if !ok {
		http.NotFound(w, r)
		return
	}
	var b strings.Builder
	for _, id := range sortedKeys(ab.cards) {
		fmt.Fprintf(&b, `<D:response><D:href>%s</D:href>
<D:propstat><D:prop><D:getetag>"%d"</D:getetag><C:address-data>%s</C:address-data></D:prop><D:status>HTTP/1.1 200 OK</D:status></D:propstat>
</D:response>`, testHome+abID+"/"+id+".vcf", len(ab.cards[id]), escapeText(string(ab.cards[id])))
	}
	writeMultistatus(w, b.String())
}

func (s *memServer) serveCard(w http.ResponseWriter, r *http.Request, abID, id string) error {
	ab, ok := s.addressbooks[abID]
	if !ok {
		http.NotFound(w, r)
		return nil
	}
	switch r.Method {
	case "PUT":
		b, err := io.ReadAll(r.Body)
		if err != nil {
			return err
		}
		_, exists := ab.cards[id]
		ab.cards[id] = b
		if exists {
			w.WriteHeader(http.StatusNoContent)
		} else {
			w.WriteHeader(http.StatusCreated)
		}
	case "GET":
		b, ok := ab.cards[id]
		if !ok {
			http.NotFound(w, r)
			return nil
		}
		w.Header().Set("Content-Type", "text/vcard")
		w.Write(b)
	case "DELETE":
		if _, ok := ab.cards[id]; !ok {
			http.NotFound(w, r)
			return nil
		}
		delete(ab.cards, id)
		w.WriteHeader(http.StatusNoContent)
	default:
		http.Error(w, "unsupported request", http.StatusMethodNotAllowed)
	}
	return nil
}

func writeMultistatus(w http.ResponseWriter, responses string) {
	w.Header().Set("Content-Type", "application/xml; charset=utf-8")
	w.WriteHeader(http.StatusMultiStatus)
	fmt.Fprintf(w, `<?xml version="1.0" encoding="UTF-8"?>
<D:multistatus xmlns:D="DAV:" xmlns:C="urn:ietf:params:xml:ns:carddav" xmlns:A="http://apple.com/ns/ical/">
%s
</D:multistatus>`, responses)
}

func escapeText(s string) string {
	var b strings.Builder
	xml.EscapeText(&b, []byte(s))
	return b.String()
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// scriptConn records the request and replies with a canned response.
type scriptConn struct {
	req  bytes.Buffer
	resp *strings.Reader
}

func newScriptConn(resp string) *scriptConn {
	return &scriptConn{resp: strings.NewReader(resp)}
}

func (c *scriptConn) Write(p []byte) (int, error) {
	return c.req.Write(p)
}

func (c *scriptConn) Read(p []byte) (int, error) {
	return c.resp.Read(p)
}

func multistatusResponse(body string) string {
	return fmt.Sprintf("HTTP/1.1 207 Multi-Status\r\nContent-Type: application/xml\r\nContent-Length: %d\r\n\r\n%s", len(body), body)
}
