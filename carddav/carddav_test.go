package carddav

import (
	"context"
	"errors"
	"fmt"
	"io"
	"regexp"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/emersion/go-addressbook"
	"github.com/emersion/go-addressbook/httpflow"
	"github.com/emersion/go-addressbook/stream"
)

const testCardData = "BEGIN:VCARD\r\nUID:1\r\nEND:VCARD\r\n"

func newTestClient(chunk int) (*Client, *memServer) {
	srv := newMemServer()
	c := NewClient(&Config{
		Host:    "dav.example.com",
		HomeURI: testHome,
	}, handlerDialer{h: srv, chunk: chunk})
	return c, srv
}

func TestClient_roundTrip(t *testing.T) {
	for _, chunk := range []int{0, 1, 7, 100} {
		t.Run(fmt.Sprintf("chunk=%v", chunk), func(t *testing.T) {
			ctx := context.Background()
			c, _ := newTestClient(chunk)

			ab, err := c.CreateAddressbook(ctx, &addressbook.Addressbook{
				ID:          "abc",
				Name:        "Test",
				Description: "Testing addressbook",
			})
			require.NoError(t, err)
			assert.Equal(t, "abc", ab.ID)

			l, err := c.ListAddressbooks(ctx)
			require.NoError(t, err)
			want := []addressbook.Addressbook{{ID: "abc", Name: "Test", Description: "Testing addressbook"}}
			if diff := cmp.Diff(want, l); diff != "" {
				t.Errorf("ListAddressbooks() mismatch (-want +got):\n%s", diff)
			}

			card := &addressbook.Card{ID: "1", AddressbookID: "abc", Content: []byte(testCardData)}
			_, err = c.CreateCard(ctx, card)
			require.NoError(t, err)

			cards, err := c.ListCards(ctx, "abc")
			require.NoError(t, err)
			require.Len(t, cards, 1)
			assert.Equal(t, "1", cards[0].ID)
			assert.Equal(t, "abc", cards[0].AddressbookID)
			assert.Equal(t, testCardData, string(cards[0].Content))
		})
	}
}

func TestClient_updateAddressbook(t *testing.T) {
	ctx := context.Background()
	c, _ := newTestClient(0)

	_, err := c.CreateAddressbook(ctx, &addressbook.Addressbook{
		ID:          "abc",
		Name:        "Test",
		Description: "Testing addressbook",
	})
	require.NoError(t, err)

	ab, err := c.UpdateAddressbook(ctx, &addressbook.Addressbook{ID: "abc", Name: "Renamed", Color: "#ff0000"})
	require.NoError(t, err)
	assert.Equal(t, &addressbook.Addressbook{ID: "abc", Name: "Renamed", Color: "#ff0000"}, ab)

	l, err := c.ListAddressbooks(ctx)
	require.NoError(t, err)
	want := []addressbook.Addressbook{{
		ID:          "abc",
		Name:        "Renamed",
		Description: "Testing addressbook",
		Color:       "#ff0000",
	}}
	if diff := cmp.Diff(want, l); diff != "" {
		t.Errorf("ListAddressbooks() mismatch (-want +got):\n%s", diff)
	}
}

func TestClient_deleteAddressbook(t *testing.T) {
	ctx := context.Background()
	c, _ := newTestClient(0)

	_, err := c.CreateAddressbook(ctx, &addressbook.Addressbook{ID: "abc"})
	require.NoError(t, err)
	require.NoError(t, c.DeleteAddressbook(ctx, "abc"))

	l, err := c.ListAddressbooks(ctx)
	require.NoError(t, err)
	assert.Empty(t, l)

	err = c.DeleteAddressbook(ctx, "abc")
	assert.ErrorIs(t, err, ErrNotDeleted)
}

func TestDeleteAddressbook_missing(t *testing.T) {
	f := NewDeleteAddressbook(&Config{HomeURI: testHome}, "missing")
	conn := newScriptConn("HTTP/1.1 404 Not Found\r\nContent-Length: 0\r\n\r\n")
	require.NoError(t, stream.Run(conn, f))

	ok, err := f.Deleted()
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestDeleteAddressbook_multistatus(t *testing.T) {
	body := `<?xml version="1.0" encoding="UTF-8"?>
<d:multistatus xmlns:d="DAV:">
  <d:response>
    <d:href>/dav/addressbooks/abc/</d:href>
    <d:status>HTTP/1.1 423 Locked</d:status>
  </d:response>
</d:multistatus>`
	f := NewDeleteAddressbook(&Config{HomeURI: testHome}, "abc")
	require.NoError(t, stream.Run(newScriptConn(multistatusResponse(body)), f))

	ok, err := f.Deleted()
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestClient_cards(t *testing.T) {
	ctx := context.Background()
	c, srv := newTestClient(0)

	_, err := c.CreateAddressbook(ctx, &addressbook.Addressbook{ID: "abc"})
	require.NoError(t, err)

	card := &addressbook.Card{ID: "1", AddressbookID: "abc", Content: []byte(testCardData)}
	_, err = c.CreateCard(ctx, card)
	require.NoError(t, err)

	got, err := c.ReadCard(ctx, "abc", "1")
	require.NoError(t, err)
	assert.True(t, got.Equal(card), "ReadCard() = %v, want %v", got, card)

	updated := &addressbook.Card{
		ID:            "1",
		AddressbookID: "abc",
		Content:       []byte("BEGIN:VCARD\r\nUID:1\r\nFN:Alice\r\nEND:VCARD\r\n"),
	}
	_, err = c.UpdateCard(ctx, updated)
	require.NoError(t, err)
	got, err = c.ReadCard(ctx, "abc", "1")
	require.NoError(t, err)
	assert.True(t, got.Equal(updated))

	require.NoError(t, c.DeleteCard(ctx, "abc", "1"))

	_, err = c.ReadCard(ctx, "abc", "1")
	var httpErr *HTTPError
	require.True(t, errors.As(err, &httpErr), "ReadCard() error = %v, want HTTPError", err)
	assert.Equal(t, 404, httpErr.Code)

	err = c.DeleteCard(ctx, "abc", "1")
	require.True(t, errors.As(err, &httpErr))
	assert.Equal(t, 404, httpErr.Code)

	assert.Equal(t, []string{
		"MKCOL /dav/addressbooks/abc",
		"PUT /dav/addressbooks/abc/1.vcf",
		"GET /dav/addressbooks/abc/1.vcf",
		"PUT /dav/addressbooks/abc/1.vcf",
		"GET /dav/addressbooks/abc/1.vcf",
		"DELETE /dav/addressbooks/abc/1.vcf",
		"GET /dav/addressbooks/abc/1.vcf",
		"DELETE /dav/addressbooks/abc/1.vcf",
	}, srv.requests)
}

func TestCreateCard_missingAddressbook(t *testing.T) {
	c, _ := newTestClient(0)
	card := &addressbook.Card{ID: "1", AddressbookID: "missing", Content: []byte(testCardData)}
	_, err := c.CreateCard(context.Background(), card)
	var httpErr *HTTPError
	require.True(t, errors.As(err, &httpErr), "CreateCard() error = %v, want HTTPError", err)
	assert.Equal(t, 404, httpErr.Code)
}

var dateRegexp = regexp.MustCompile(`Date: [^\r]*\r\n`)

func TestListAddressbooks_request(t *testing.T) {
	cfg := &Config{
		Host:      "dav.example.com",
		Port:      8443,
		HomeURI:   testHome,
		BasicAuth: &BasicAuth{Username: "user", Password: "pass"},
	}
	f := NewListAddressbooks(cfg)
	conn := newScriptConn(multistatusResponse(`<multistatus xmlns="DAV:"/>`))
	require.NoError(t, stream.Run(conn, f))

	head, body, ok := strings.Cut(conn.req.String(), "\r\n\r\n")
	require.True(t, ok)
	head = dateRegexp.ReplaceAllString(head+"\r\n", "")
	want := "PROPFIND /dav/addressbooks/ HTTP/1.1\r\n" +
		"Host: dav.example.com:8443\r\n" +
		"Authorization: Basic dXNlcjpwYXNz\r\n" +
		"Depth: 1\r\n" +
		"Content-Type: text/xml; charset=utf-8\r\n" +
		fmt.Sprintf("Content-Length: %d\r\n", len(body))
	assert.Equal(t, want, head)
	assert.Contains(t, body, "propfind")
	assert.Contains(t, body, "addressbook-color")

	l, err := f.Addressbooks()
	require.NoError(t, err)
	assert.Empty(t, l)
}

func TestConfig_http10(t *testing.T) {
	f := NewReadCard(&Config{Host: "dav.example.com", Version: httpflow.Version10, HomeURI: "/dav/"}, "my book", "1")
	conn := newScriptConn("HTTP/1.0 200 OK\r\n\r\n" + testCardData)
	require.NoError(t, stream.Run(conn, f))

	req := conn.req.String()
	assert.True(t, strings.HasPrefix(req, "GET /dav/my%20book/1.vcf HTTP/1.0\r\n"), "request = %q", req)
	assert.NotContains(t, req, "Host:")

	card, err := f.Card()
	require.NoError(t, err)
	assert.Equal(t, "my book", card.AddressbookID)
	assert.Equal(t, testCardData, string(card.Content))
}

func TestListAddressbooks_partialFailure(t *testing.T) {
	body := `<?xml version="1.0" encoding="UTF-8"?>
<d:multistatus xmlns:d="DAV:" xmlns:c="urn:ietf:params:xml:ns:carddav">
  <d:response>
    <d:href>/dav/addressbooks/locked/</d:href>
    <d:status>HTTP/1.1 403 Forbidden</d:status>
  </d:response>
  <d:response>
    <d:href>/dav/addressbooks/hidden/</d:href>
    <d:propstat>
      <d:prop><d:resourcetype><d:collection/><c:addressbook/></d:resourcetype></d:prop>
      <d:status>HTTP/1.1 404 Not Found</d:status>
    </d:propstat>
  </d:response>
  <d:response>
    <d:href>/dav/addressbooks/work/</d:href>
    <d:propstat>
      <d:prop><d:displayname/></d:prop>
      <d:status>HTTP/1.1 404 Not Found</d:status>
    </d:propstat>
    <d:propstat>
      <d:prop>
        <d:resourcetype><d:collection/><c:addressbook/></d:resourcetype>
        <d:displayname>Work</d:displayname>
        <c:addressbook-description>   </c:addressbook-description>
      </d:prop>
      <d:status>HTTP/1.1 200 OK</d:status>
    </d:propstat>
  </d:response>
</d:multistatus>`
	f := NewListAddressbooks(&Config{HomeURI: testHome})
	require.NoError(t, stream.Run(newScriptConn(multistatusResponse(body)), f))

	l, err := f.Addressbooks()
	require.NoError(t, err)
	assert.Equal(t, []addressbook.Addressbook{{ID: "work", Name: "Work"}}, l)
}

func TestListAddressbooks_defaultName(t *testing.T) {
	ctx := context.Background()
	c, _ := newTestClient(0)

	_, err := c.CreateAddressbook(ctx, &addressbook.Addressbook{ID: "abc"})
	require.NoError(t, err)
	l, err := c.ListAddressbooks(ctx)
	require.NoError(t, err)
	assert.Equal(t, []addressbook.Addressbook{{ID: "abc", Name: "abc"}}, l)

	body := `<?xml version="1.0" encoding="UTF-8"?>
<d:multistatus xmlns:d="DAV:" xmlns:c="urn:ietf:params:xml:ns:carddav">
  <d:response>
    <d:href>/dav/addressbooks/x/</d:href>
    <d:propstat>
      <d:prop>
        <d:resourcetype><d:collection/><c:addressbook/></d:resourcetype>
        <d:displayname>  </d:displayname>
      </d:prop>
      <d:status>HTTP/1.1 200 OK</d:status>
    </d:propstat>
  </d:response>
</d:multistatus>`
	f := NewListAddressbooks(&Config{HomeURI: testHome})
	require.NoError(t, stream.Run(newScriptConn(multistatusResponse(body)), f))
	l, err = f.Addressbooks()
	require.NoError(t, err)
	assert.Equal(t, []addressbook.Addressbook{{ID: "x", Name: "x"}}, l)
}

func TestConfig_hostHeader(t *testing.T) {
	tests := []struct {
		port int
		want string
	}{
		{0, "Host: dav.example.com\r\n"},
		{80, "Host: dav.example.com:80\r\n"},
		{443, "Host: dav.example.com:443\r\n"},
		{8443, "Host: dav.example.com:8443\r\n"},
	}
	for _, tc := range tests {
		t.Run(fmt.Sprintf("port=%v", tc.port), func(t *testing.T) {
			f := NewDeleteCard(&Config{Host: "dav.example.com", Port: tc.port, HomeURI: testHome}, "abc", "1")
			conn := newScriptConn("HTTP/1.1 204 No Content\r\nContent-Length: 0\r\n\r\n")
			require.NoError(t, stream.Run(conn, f))
			require.NoError(t, f.Err())
			assert.Contains(t, conn.req.String(), "\r\n"+tc.want)
		})
	}
}

func TestListCards_skipsInvalid(t *testing.T) {
	body := `<?xml version="1.0" encoding="UTF-8"?>
<d:multistatus xmlns:d="DAV:" xmlns:c="urn:ietf:params:xml:ns:carddav">
  <d:response>
    <d:href>/dav/addressbooks/abc/bad.vcf</d:href>
    <d:propstat>
      <d:prop><c:address-data>not a vcard</c:address-data></d:prop>
      <d:status>HTTP/1.1 200 OK</d:status>
    </d:propstat>
  </d:response>
  <d:response>
    <d:href>/dav/addressbooks/abc/good.vcf</d:href>
    <d:propstat>
      <d:prop>
        <d:getetag>"1"</d:getetag>
        <c:address-data>
BEGIN:VCARD
UID:good
END:VCARD
</c:address-data>
      </d:prop>
      <d:status>HTTP/1.1 200 OK</d:status>
    </d:propstat>
  </d:response>
</d:multistatus>`
	f := NewListCards(&Config{HomeURI: testHome}, "abc")
	require.NoError(t, stream.Run(newScriptConn(multistatusResponse(body)), f))

	cards, err := f.Cards()
	require.NoError(t, err)
	require.Len(t, cards, 1)
	assert.Equal(t, "good", cards[0].ID)
	assert.Equal(t, "BEGIN:VCARD\r\nUID:good\r\nEND:VCARD\r\n", string(cards[0].Content))
}

func TestFlow_errors(t *testing.T) {
	f := NewListAddressbooks(&Config{HomeURI: testHome})
	_, err := f.Addressbooks()
	assert.ErrorIs(t, err, ErrNotDone)

	conn := newScriptConn("HTTP/1.1 401 Unauthorized\r\nContent-Type: text/plain\r\nContent-Length: 12\r\n\r\nbad password")
	require.NoError(t, stream.Run(conn, f))
	_, err = f.Addressbooks()
	var httpErr *HTTPError
	require.True(t, errors.As(err, &httpErr))
	assert.Equal(t, 401, httpErr.Code)
	assert.Contains(t, err.Error(), "bad password")

	f = NewListAddressbooks(&Config{HomeURI: testHome})
	require.NoError(t, stream.Run(newScriptConn(multistatusResponse("<multistatus")), f))
	_, err = f.Addressbooks()
	var decodeErr *DecodeError
	assert.True(t, errors.As(err, &decodeErr), "Addressbooks() error = %v, want DecodeError", err)
}

func TestCreateAddressbook_mkcolResponse(t *testing.T) {
	body := `<?xml version="1.0" encoding="UTF-8"?>
<d:mkcol-response xmlns:d="DAV:" xmlns:a="http://apple.com/ns/ical/">
  <d:propstat>
    <d:prop><a:addressbook-color>#00ff00</a:addressbook-color></d:prop>
    <d:status>HTTP/1.1 200 OK</d:status>
  </d:propstat>
</d:mkcol-response>`
	resp := fmt.Sprintf("HTTP/1.1 201 Created\r\nContent-Length: %d\r\n\r\n%s", len(body), body)

	f := NewCreateAddressbook(&Config{HomeURI: testHome}, &addressbook.Addressbook{ID: "abc", Name: "Test"})
	require.NoError(t, stream.Run(newScriptConn(resp), f))

	ab, err := f.Addressbook()
	require.NoError(t, err)
	assert.Equal(t, &addressbook.Addressbook{ID: "abc", Name: "Test", Color: "#00ff00"}, ab)
}

func TestDiscovery(t *testing.T) {
	principal := `<?xml version="1.0" encoding="UTF-8"?>
<d:multistatus xmlns:d="DAV:">
  <d:response>
    <d:href>/dav/</d:href>
    <d:propstat>
      <d:prop><d:current-user-principal><d:href>/dav/principals/user/</d:href></d:current-user-principal></d:prop>
      <d:status>HTTP/1.1 200 OK</d:status>
    </d:propstat>
  </d:response>
</d:multistatus>`
	homeSet := `<?xml version="1.0" encoding="UTF-8"?>
<d:multistatus xmlns:d="DAV:" xmlns:c="urn:ietf:params:xml:ns:carddav">
  <d:response>
    <d:href>/dav/principals/user/</d:href>
    <d:propstat>
      <d:prop><c:addressbook-home-set><d:href>/dav/addressbooks/user/</d:href></c:addressbook-home-set></d:prop>
      <d:status>HTTP/1.1 200 OK</d:status>
    </d:propstat>
  </d:response>
</d:multistatus>`

	c := NewClient(&Config{Host: "dav.example.com"}, &scriptDialer{responses: []string{
		"HTTP/1.1 301 Moved Permanently\r\nLocation: https://dav.example.com/dav/\r\nContent-Length: 0\r\n\r\n",
		multistatusResponse(principal),
		multistatusResponse(homeSet),
	}})
	got, err := c.Discover(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "/dav/addressbooks/user/", got)
}

func TestDiscovery_crossHostRedirect(t *testing.T) {
	c := NewClient(&Config{Host: "dav.example.com"}, &scriptDialer{responses: []string{
		"HTTP/1.1 301 Moved Permanently\r\nLocation: https://dav.other.example/dav/\r\nContent-Length: 0\r\n\r\n",
	}})
	_, err := c.Discover(context.Background())
	assert.ErrorIs(t, err, ErrCrossHostRedirect)

	// the host comparison ignores case and port
	c = NewClient(&Config{Host: "dav.example.com"}, &scriptDialer{responses: []string{
		"HTTP/1.1 301 Moved Permanently\r\nLocation: https://DAV.example.com:443/dav/\r\nContent-Length: 0\r\n\r\n",
	}})
	_, err = c.Discover(context.Background())
	assert.NotErrorIs(t, err, ErrCrossHostRedirect)
}

func TestWellKnown_noRedirect(t *testing.T) {
	f := NewWellKnown(&Config{})
	require.NoError(t, stream.Run(newScriptConn(multistatusResponse(`<multistatus xmlns="DAV:"/>`)), f))
	loc, err := f.Location()
	require.NoError(t, err)
	assert.Empty(t, loc)
}

type scriptDialer struct {
	responses []string
}

func (d *scriptDialer) Dial(ctx context.Context) (io.ReadWriteCloser, error) {
	if len(d.responses) == 0 {
		return nil, errors.New("no more responses")
	}
	conn := &scriptCloser{newScriptConn(d.responses[0])}
	d.responses = d.responses[1:]
	return conn, nil
}

type scriptCloser struct {
	*scriptConn
}

func (*scriptCloser) Close() error {
	return nil
}
