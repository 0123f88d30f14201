// Package nativemsg implements the browser native messaging framing: each
// message is a JSON document preceded by its length as a 32-bit unsigned
// integer in native byte order.
package nativemsg

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/tidwall/gjson"
)

const (
	// MaxOutgoing is the largest message a host may send to the browser.
	MaxOutgoing = 1 << 20
	// MaxIncoming bounds messages accepted from the browser.
	MaxIncoming = 64 << 20
)

var (
	// ErrMessageTooLarge indicates a frame exceeded the size limit.
	ErrMessageTooLarge = errors.New("native message too large")
	// ErrInvalidJSON indicates a frame did not contain a JSON document.
	ErrInvalidJSON = errors.New("native message is not valid json")
)

// Reader decodes frames from the browser.
type Reader struct {
	r   io.Reader
	max uint32
}

// NewReader wraps r, typically os.Stdin.
func NewReader(r io.Reader) *Reader {
	return &Reader{r: r, max: MaxIncoming}
}

// Read returns the next message body. A clean end of stream between frames
// yields io.EOF; a stream cut inside a frame yields io.ErrUnexpectedEOF.
func (r *Reader) Read() ([]byte, error) {
	var header [4]byte
	if _, err := io.ReadFull(r.r, header[:]); err != nil {
		return nil, err
	}
	size := binary.NativeEndian.Uint32(header[:])
	if size > r.max {
		return nil, fmt.Errorf("%w: %d bytes", ErrMessageTooLarge, size)
	}
	body := make([]byte, size)
	if _, err := io.ReadFull(r.r, body); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, io.ErrUnexpectedEOF
		}
		return nil, err
	}
	if !gjson.ValidBytes(body) {
		return nil, ErrInvalidJSON
	}
	return body, nil
}

// Writer encodes frames to the browser. It is safe for concurrent use.
type Writer struct {
	mu sync.Mutex
	w  io.Writer
}

// NewWriter wraps w, typically os.Stdout.
func NewWriter(w io.Writer) *Writer {
	return &Writer{w: w}
}

// Write marshals v and sends it as one frame.
func (w *Writer) Write(v any) error {
	body, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode native message: %w", err)
	}
	return w.WriteRaw(body)
}

// WriteRaw sends body, which must already be JSON, as one frame.
func (w *Writer) WriteRaw(body []byte) error {
	if len(body) > MaxOutgoing {
		return fmt.Errorf("%w: %d bytes", ErrMessageTooLarge, len(body))
	}
	frame := make([]byte, 4+len(body))
	binary.NativeEndian.PutUint32(frame[:4], uint32(len(body)))
	copy(frame[4:], body)

	w.mu.Lock()
	defer w.mu.Unlock()
	if _, err := w.w.Write(frame); err != nil {
		return fmt.Errorf("write native message: %w", err)
	}
	return nil
}

// Type returns the message's "type" field, or "" when absent.
func Type(msg []byte) string {
	return gjson.GetBytes(msg, "type").String()
}

// ID returns the message's "id" correlation field, or "" when absent.
func ID(msg []byte) string {
	return gjson.GetBytes(msg, "id").String()
}
