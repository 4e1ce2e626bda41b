package reader

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"strings"

	"cardplay/internal/services"
)

// inputEventSize is sizeof(struct input_event) on 64-bit Linux: a 16-byte
// timeval followed by type (u16), code (u16), and value (s32).
const inputEventSize = 24

// ScanEvent is one completed card read.
type ScanEvent struct {
	RawID string
}

// Source yields completed scans until it fails or is closed.
type Source interface {
	Next() (ScanEvent, error)
	Close() error
}

// Scanner assembles key-down events from an evdev stream into card ids.
type Scanner struct {
	r   io.Reader
	buf [inputEventSize]byte
	id  strings.Builder
}

// NewScanner reads raw input_event records from r.
func NewScanner(r io.Reader) *Scanner {
	return &Scanner{r: r}
}

// Next blocks until the reader sends Enter and returns the characters typed
// since the previous scan. Empty reads (a bare Enter) are skipped.
func (s *Scanner) Next() (ScanEvent, error) {
	for {
		if _, err := io.ReadFull(s.r, s.buf[:]); err != nil {
			if errors.Is(err, io.ErrUnexpectedEOF) {
				err = fmt.Errorf("truncated input event: %w", err)
			}
			return ScanEvent{}, services.Wrap(services.ErrTransport, "reader", "read event", "", err)
		}
		typ := binary.NativeEndian.Uint16(s.buf[16:18])
		code := binary.NativeEndian.Uint16(s.buf[18:20])
		value := int32(binary.NativeEndian.Uint32(s.buf[20:24]))
		if id, done := s.feed(typ, code, value); done {
			return ScanEvent{RawID: id}, nil
		}
	}
}

func (s *Scanner) feed(typ, code uint16, value int32) (string, bool) {
	if typ != evKey || value != keyDown {
		return "", false
	}
	if code == keyEnter {
		id := s.id.String()
		s.id.Reset()
		return id, id != ""
	}
	if char, ok := keyChar(code); ok {
		s.id.WriteString(char)
	}
	return "", false
}

// Close is a no-op; the underlying reader belongs to the caller.
func (s *Scanner) Close() error {
	return nil
}
