// Package stream defines the I/O intents of network flows and the drivers
// that service them over an io.ReadWriter.
//
// A flow never reads or writes by itself. Instead, Next returns the next
// action it needs and the caller performs it with the flow's buffers:
//
//	for {
//		intent, ok := flow.Next()
//		if !ok {
//			break
//		}
//		if err := stream.Handle(conn, flow, intent); err != nil {
//			return err
//		}
//	}
package stream

import (
	"errors"
	"fmt"
	"io"
)

// Intent is an I/O action requested by a network flow.
type Intent int

const (
	// Read asks the caller to fill the flow's read buffer.
	Read Intent = iota + 1
	// Write asks the caller to send the flow's write buffer.
	Write
)

func (i Intent) String() string {
	switch i {
	case Read:
		return "read"
	case Write:
		return "write"
	}
	return fmt.Sprintf("Intent(%d)", int(i))
}

// Reader is implemented by flows consuming bytes.
type Reader interface {
	// ReadBuffer returns the buffer the caller must read into.
	ReadBuffer() []byte
	// SetReadCount reports how many bytes were read into the buffer. Zero
	// means end of stream.
	SetReadCount(n int)
}

// Writer is implemented by flows producing bytes.
type Writer interface {
	// WriteBuffer returns the bytes the caller must write.
	WriteBuffer() []byte
	// SetWriteCount reports how many bytes of the buffer were written.
	SetWriteCount(n int)
}

// Flow is a resumable network flow.
//
// Between two calls to Next, the caller must have serviced the intent
// returned by the first one. Once Next reports false, it keeps doing so.
type Flow interface {
	Reader
	Writer
	Next() (Intent, bool)
}

// Handle services a single intent on rw.
func Handle(rw io.ReadWriter, f Flow, intent Intent) error {
	switch intent {
	case Read:
		n, err := rw.Read(f.ReadBuffer())
		if err != nil && !errors.Is(err, io.EOF) {
			return fmt.Errorf("stream: read: %w", err)
		}
		f.SetReadCount(n)
	case Write:
		n, err := rw.Write(f.WriteBuffer())
		if err != nil {
			return fmt.Errorf("stream: write: %w", err)
		}
		f.SetWriteCount(n)
	default:
		return fmt.Errorf("stream: unknown intent %v", intent)
	}
	return nil
}

// Run drives f until completion.
func Run(rw io.ReadWriter, f Flow) error {
	for {
		intent, ok := f.Next()
		if !ok {
			return nil
		}
		if err := Handle(rw, f, intent); err != nil {
			return err
		}
	}
}
