// Package native implements the native-messaging frame format used
// between the browser and the engine: a 32-bit little-endian length
// prefix followed by that many bytes of JSON.
package native

import (
	"bufio"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io"
)

// maxFrameSize bounds inbound frames so a corrupt length prefix
// cannot trigger an enormous allocation.
const maxFrameSize = 32 << 20

// ErrFrameTooLarge is returned for a length prefix above maxFrameSize.
var ErrFrameTooLarge = errors.New("frame exceeds maximum size")

// Decoder reads length-prefixed JSON frames.
type Decoder struct {
	r *bufio.Reader
}

// NewDecoder creates a Decoder reading from r.
func NewDecoder(r io.Reader) *Decoder {
	return &Decoder{r: bufio.NewReader(r)}
}

// Next returns the payload of the next frame. io.EOF is returned
// cleanly when the stream ends on a frame boundary.
func (d *Decoder) Next() ([]byte, error) {
	var header [4]byte
	if _, err := io.ReadFull(d.r, header[:]); err != nil {
		if errors.Is(err, io.ErrUnexpectedEOF) {
			return nil, fmt.Errorf("truncated frame header: %w", err)
		}
		return nil, err
	}
	size := binary.LittleEndian.Uint32(header[:])
	if size > maxFrameSize {
		return nil, fmt.Errorf("%w: %d bytes", ErrFrameTooLarge, size)
	}

	payload := make([]byte, size)
	if _, err := io.ReadFull(d.r, payload); err != nil {
		return nil, fmt.Errorf("truncated frame body: %w", err)
	}
	return payload, nil
}

// Encoder writes length-prefixed JSON frames.
type Encoder struct {
	w io.Writer
}

// NewEncoder creates an Encoder writing to w.
func NewEncoder(w io.Writer) *Encoder {
	return &Encoder{w: w}
}

// Encode marshals v and writes it as one frame.
func (e *Encoder) Encode(v any) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return e.EncodeRaw(payload)
}

// EncodeRaw writes an already-serialized payload as one frame.
func (e *Encoder) EncodeRaw(payload []byte) error {
	if len(payload) > maxFrameSize {
		return fmt.Errorf("%w: %d bytes", ErrFrameTooLarge, len(payload))
	}
	var header [4]byte
	binary.LittleEndian.PutUint32(header[:], uint32(len(payload)))
	if _, err := e.w.Write(header[:]); err != nil {
		return err
	}
	_, err := e.w.Write(payload)
	return err
}
