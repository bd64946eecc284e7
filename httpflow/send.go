package httpflow

import (
	"github.com/emersion/go-addressbook/stream"
)

// ReadBufferSize is the size of the buffer handed out for each read.
const ReadBufferSize = 512

type sendStep int

const (
	stepSerialize sendStep = iota
	stepWrite
	stepRead
	stepDone
)

// SendFlow writes a request and frames the response.
type SendFlow struct {
	step sendStep

	req  *Request
	body []byte

	wbuf  []byte
	rbuf  []byte
	nread int

	resp *Response
}

var _ stream.Flow = (*SendFlow)(nil)

// NewSendFlow creates a flow sending req with body.
func NewSendFlow(req *Request, body []byte) *SendFlow {
	return &SendFlow{req: req, body: body}
}

// Next implements stream.Flow.
func (f *SendFlow) Next() (stream.Intent, bool) {
	switch f.step {
	case stepSerialize:
		f.wbuf = f.req.Encode(f.body)
		f.req, f.body = nil, nil
		f.step = stepWrite
		return stream.Write, true
	case stepWrite:
		if len(f.wbuf) > 0 {
			return stream.Write, true
		}
		f.wbuf = nil
		f.rbuf = make([]byte, ReadBufferSize)
		f.resp = newResponse()
		f.step = stepRead
		return stream.Read, true
	case stepRead:
		n := f.nread
		f.nread = 0
		if f.resp.feed(f.rbuf[:n]) {
			f.rbuf = nil
			f.step = stepDone
			return 0, false
		}
		return stream.Read, true
	}
	return 0, false
}

// WriteBuffer implements stream.Writer.
func (f *SendFlow) WriteBuffer() []byte {
	return f.wbuf
}

// SetWriteCount implements stream.Writer. Unwritten bytes are requested
// again by the next call to Next.
func (f *SendFlow) SetWriteCount(n int) {
	if n > len(f.wbuf) {
		n = len(f.wbuf)
	}
	f.wbuf = f.wbuf[n:]
}

// ReadBuffer implements stream.Reader.
func (f *SendFlow) ReadBuffer() []byte {
	return f.rbuf
}

// SetReadCount implements stream.Reader.
func (f *SendFlow) SetReadCount(n int) {
	if n > len(f.rbuf) {
		n = len(f.rbuf)
	}
	f.nread = n
}

// Done reports whether the response has been fully received.
func (f *SendFlow) Done() bool {
	return f.step == stepDone
}

// Response returns the framed response, or nil if the flow did not complete
// or its body was taken.
func (f *SendFlow) Response() *Response {
	if f.step != stepDone {
		return nil
	}
	return f.resp
}

// Header returns the response header bytes.
func (f *SendFlow) Header() []byte {
	if resp := f.Response(); resp != nil {
		return resp.Header()
	}
	return nil
}

// Body returns the response body bytes.
func (f *SendFlow) Body() []byte {
	if resp := f.Response(); resp != nil {
		return resp.Body()
	}
	return nil
}

// TakeBody returns the response body without copying it. The flow no
// longer holds a response afterwards.
func (f *SendFlow) TakeBody() []byte {
	resp := f.Response()
	if resp == nil {
		return nil
	}
	f.resp = nil
	return resp.Body()
}
