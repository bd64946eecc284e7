package internal

import (
	"bytes"
	"fmt"
	"mime"
	"net/http"
	"strings"

	"github.com/emersion/go-addressbook/httpflow"
)

// HTTPError is an unsuccessful HTTP response.
type HTTPError struct {
	Code int
	Err  error
}

func (err *HTTPError) Error() string {
	s := fmt.Sprintf("%v %v", err.Code, http.StatusText(err.Code))
	if err.Err != nil {
		return fmt.Sprintf("%v: %v", s, err.Err)
	} else {
		return s
	}
}

func (err *HTTPError) Unwrap() error {
	return err.Err
}

const maxErrorBody = 1024

// NewHTTPError builds an error from an unsuccessful response. A textual
// body is kept as the wrapped error.
func NewHTTPError(resp *httpflow.Response) *HTTPError {
	contentType := resp.HeaderValue("Content-Type")
	if contentType == "" {
		contentType = "text/plain"
	}

	var wrappedErr error
	t, _, _ := mime.ParseMediaType(contentType)
	if strings.HasPrefix(t, "text/") || t == "application/xml" {
		body := resp.Body()
		truncated := len(body) > maxErrorBody
		if truncated {
			body = body[:maxErrorBody]
		}
		if s := string(bytes.TrimSpace(body)); s != "" {
			if truncated {
				s += " […]"
			}
			wrappedErr = fmt.Errorf("%v", s)
		}
	}
	return &HTTPError{Code: resp.StatusCode(), Err: wrappedErr}
}
