package httpflow

import (
	"bytes"
	"strconv"
	"strings"
)

const contentLengthName = "content-length:"

var crlfcrlf = []byte("\r\n\r\n")

// Response is an HTTP response framed incrementally from raw reads.
//
// The header/body boundary is the first CRLFCRLF. The body length comes from
// the Content-Length header, matched case-insensitively. Without one, the
// response ends when the peer closes the connection.
type Response struct {
	buf           []byte
	bodyStart     int // -1 until the boundary is found
	contentLength int // -1 until the header is found
}

func newResponse() *Response {
	return &Response{bodyStart: -1, contentLength: -1}
}

// feed appends a chunk and reports whether the response is complete. An
// empty chunk means end of stream.
func (r *Response) feed(chunk []byte) bool {
	// TODO: support chunked transfer encoding. Until then a response
	// without Content-Length is only complete at end of stream.
	if len(chunk) == 0 {
		return true
	}

	prev := len(r.buf)
	r.buf = append(r.buf, chunk...)

	if r.bodyStart < 0 {
		from := prev - len(crlfcrlf) + 1
		if from < 0 {
			from = 0
		}
		if i := bytes.Index(r.buf[from:], crlfcrlf); i >= 0 {
			r.bodyStart = from + i + len(crlfcrlf)
		}
	}

	if r.bodyStart >= 0 && r.contentLength < 0 {
		r.contentLength = scanContentLength(r.buf[:r.bodyStart])
	}

	return r.bodyStart >= 0 && r.contentLength >= 0 &&
		len(r.buf)-r.bodyStart >= r.contentLength
}

// scanContentLength looks for a Content-Length header line in a header
// section. It returns -1 if there is none or if its value is invalid.
func scanContentLength(header []byte) int {
	offset := 0
	for {
		i := bytes.Index(header[offset:], crlf)
		if i < 0 {
			return -1
		}
		line := header[offset+i+len(crlf):]
		// room for the name, a space and at least one digit
		if len(line) < len(contentLengthName)+2 {
			return -1
		}
		offset += i + len(crlf)

		if !bytes.EqualFold(line[:len(contentLengthName)], []byte(contentLengthName)) {
			continue
		}

		value := line[len(contentLengthName):]
		end := bytes.Index(value, crlf)
		if end < 0 {
			return -1
		}
		n, err := strconv.ParseUint(string(bytes.TrimSpace(value[:end])), 10, 31)
		if err != nil {
			return -1
		}
		return int(n)
	}
}

// Bytes returns the raw response.
func (r *Response) Bytes() []byte {
	return r.buf
}

// Header returns the status line and header fields, including the final
// blank line. If the boundary was never found, the whole response is
// returned.
func (r *Response) Header() []byte {
	if r.bodyStart < 0 {
		return r.buf
	}
	return r.buf[:r.bodyStart]
}

// Body returns the response body, truncated to Content-Length when known.
func (r *Response) Body() []byte {
	if r.bodyStart < 0 {
		return nil
	}
	body := r.buf[r.bodyStart:]
	if r.contentLength >= 0 && len(body) > r.contentLength {
		body = body[:r.contentLength]
	}
	return body
}

// ContentLength returns the declared body length.
func (r *Response) ContentLength() (n int, ok bool) {
	return r.contentLength, r.contentLength >= 0
}

// StatusLine returns the first line of the response, such as
// "HTTP/1.1 207 Multi-Status".
func (r *Response) StatusLine() string {
	line := r.buf
	if i := bytes.Index(line, crlf); i >= 0 {
		line = line[:i]
	}
	return string(line)
}

// StatusCode parses the status code from the status line. It returns 0 if
// the status line is malformed.
func (r *Response) StatusCode() int {
	fields := strings.Fields(r.StatusLine())
	if len(fields) < 2 || !strings.HasPrefix(fields[0], "HTTP/") {
		return 0
	}
	code, err := strconv.Atoi(fields[1])
	if err != nil {
		return 0
	}
	return code
}

// IsSuccess reports whether the status line denotes a 2xx status.
func (r *Response) IsSuccess() bool {
	return strings.Contains(r.StatusLine(), " 2")
}

// HeaderValue returns the value of the first header field named key,
// compared case-insensitively.
func (r *Response) HeaderValue(key string) string {
	lines := bytes.Split(r.Header(), crlf)
	if len(lines) > 0 {
		lines = lines[1:] // status line
	}
	for _, line := range lines {
		name, value, ok := bytes.Cut(line, []byte(":"))
		if !ok {
			continue
		}
		if strings.EqualFold(string(bytes.TrimSpace(name)), key) {
			return string(bytes.TrimSpace(value))
		}
	}
	return ""
}
