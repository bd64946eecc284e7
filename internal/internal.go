package internal

import (
	"encoding/xml"
	"io"
	"log/slog"
)

var discardLogger = slog.New(slog.NewTextHandler(io.Discard, nil))

// Logger returns l, or a logger discarding everything if l is nil.
func Logger(l *slog.Logger) *slog.Logger {
	if l == nil {
		return discardLogger
	}
	return l
}

// EncodeXML marshals v into an XML document with a header.
func EncodeXML(v interface{}) ([]byte, error) {
	b, err := xml.Marshal(v)
	if err != nil {
		return nil, err
	}
	return append([]byte(xml.Header), b...), nil
}
