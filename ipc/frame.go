// Package ipc implements the parent/child handshake wire protocol.
//
// A handshake is a single length-prefixed msgpack frame whose payload is
// a map with one well-known top-level key. Anything else on the channel
// is noise and is ignored, so a child that never expects a handshake is
// unaffected by one arriving.
package ipc

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/covalent-sh/warden/types"
)

// Frame size constants.
const (
	// MaxFrameSize is the maximum frame size including length prefix.
	// Handshakes are small; anything larger is malformed.
	MaxFrameSize = 64 * 1024
	// MaxPayloadSize is the maximum payload size (MaxFrameSize - prefix).
	MaxPayloadSize = MaxFrameSize - LengthPrefixSize
	// LengthPrefixSize is the size of the big-endian length prefix.
	LengthPrefixSize = 4
)

// FrameErrorKind classifies frame decoding errors.
type FrameErrorKind int

const (
	// FrameErrorPartial indicates a truncated or incomplete frame.
	FrameErrorPartial FrameErrorKind = iota
	// FrameErrorTooLarge indicates a frame exceeding MaxFrameSize.
	FrameErrorTooLarge
	// FrameErrorDecode indicates a msgpack decoding error.
	FrameErrorDecode
	// FrameErrorForeign indicates a well-formed frame that is not a
	// handshake envelope (missing the top-level key).
	FrameErrorForeign
)

// FrameError represents a frame decoding error.
type FrameError struct {
	Kind FrameErrorKind
	Msg  string
	Err  error
}

func (e *FrameError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Msg, e.Err)
	}
	return e.Msg
}

func (e *FrameError) Unwrap() error {
	return e.Err
}

// ReadFrame reads a single length-prefixed frame from the stream and
// returns the raw msgpack payload.
//
// Errors:
//   - io.EOF: stream ended cleanly before any bytes
//   - *FrameError with Kind=FrameErrorPartial: incomplete frame
//   - *FrameError with Kind=FrameErrorTooLarge: frame exceeds limit
func ReadFrame(r io.Reader) ([]byte, error) {
	var lengthBuf [LengthPrefixSize]byte
	if _, err := io.ReadFull(r, lengthBuf[:]); err != nil {
		if err == io.EOF {
			return nil, io.EOF
		}
		return nil, &FrameError{
			Kind: FrameErrorPartial,
			Msg:  "failed to read length prefix",
			Err:  err,
		}
	}

	payloadSize := binary.BigEndian.Uint32(lengthBuf[:])
	if payloadSize > MaxPayloadSize {
		return nil, &FrameError{
			Kind: FrameErrorTooLarge,
			Msg:  fmt.Sprintf("payload size %d exceeds maximum %d", payloadSize, MaxPayloadSize),
		}
	}

	payload := make([]byte, payloadSize)
	if _, err := io.ReadFull(r, payload); err != nil {
		return nil, &FrameError{
			Kind: FrameErrorPartial,
			Msg:  "failed to read payload",
			Err:  err,
		}
	}

	return payload, nil
}

// WriteFrame writes payload to w as a single length-prefixed frame.
func WriteFrame(w io.Writer, payload []byte) error {
	if len(payload) > MaxPayloadSize {
		return &FrameError{
			Kind: FrameErrorTooLarge,
			Msg:  fmt.Sprintf("payload size %d exceeds maximum %d", len(payload), MaxPayloadSize),
		}
	}

	var lengthBuf [LengthPrefixSize]byte
	binary.BigEndian.PutUint32(lengthBuf[:], uint32(len(payload)))
	if _, err := w.Write(lengthBuf[:]); err != nil {
		return fmt.Errorf("write length prefix: %w", err)
	}
	if _, err := w.Write(payload); err != nil {
		return fmt.Errorf("write payload: %w", err)
	}
	return nil
}

// EncodeEnvelope encodes a handshake envelope as a msgpack payload under
// the single well-known top-level key.
func EncodeEnvelope(env *types.HandshakeEnvelope) ([]byte, error) {
	fields := map[string]any{
		types.FieldKind: string(env.Kind),
	}
	if env.EntryPoint != "" {
		fields[types.FieldEntryPoint] = env.EntryPoint
	}
	if env.APIToken != "" {
		fields[types.FieldAPIToken] = env.APIToken
	}
	if env.Kind == types.HandshakeShadowConfig {
		fields[types.FieldProgress] = env.Progress
	}
	if len(env.Extras) > 0 {
		fields[types.FieldExtras] = env.Extras
	}

	payload, err := msgpack.Marshal(map[string]any{types.EnvelopeKey: fields})
	if err != nil {
		return nil, fmt.Errorf("encode handshake: %w", err)
	}
	return payload, nil
}

// DecodeEnvelope decodes a msgpack payload into a handshake envelope.
// Unrecognized fields are ignored so the message stays additive across
// versions. A payload without the top-level key is a foreign frame.
func DecodeEnvelope(payload []byte) (*types.HandshakeEnvelope, error) {
	var outer map[string]map[string]any
	if err := msgpack.Unmarshal(payload, &outer); err != nil {
		return nil, &FrameError{
			Kind: FrameErrorDecode,
			Msg:  "failed to decode handshake payload",
			Err:  err,
		}
	}

	fields, ok := outer[types.EnvelopeKey]
	if !ok {
		return nil, &FrameError{
			Kind: FrameErrorForeign,
			Msg:  "frame is not a handshake envelope",
		}
	}

	env := &types.HandshakeEnvelope{}
	if kind, ok := fields[types.FieldKind].(string); ok {
		env.Kind = types.HandshakeKind(kind)
	}
	if entry, ok := fields[types.FieldEntryPoint].(string); ok {
		env.EntryPoint = entry
	}
	if token, ok := fields[types.FieldAPIToken].(string); ok {
		env.APIToken = token
	}
	if progress, ok := fields[types.FieldProgress].(bool); ok {
		env.Progress = progress
	}
	if extras, ok := fields[types.FieldExtras].(map[string]any); ok {
		env.Extras = make(map[string]string, len(extras))
		for key, value := range extras {
			if s, ok := value.(string); ok {
				env.Extras[key] = s
			}
		}
	}

	switch env.Kind {
	case types.HandshakeBootstrapSkip, types.HandshakeShadowConfig:
		return env, nil
	default:
		return nil, &FrameError{
			Kind: FrameErrorDecode,
			Msg:  fmt.Sprintf("unknown handshake kind %q", env.Kind),
		}
	}
}

// IsForeignFrame reports whether err marks a frame that was valid but not
// a handshake envelope.
func IsForeignFrame(err error) bool {
	var frameErr *FrameError
	return errors.As(err, &frameErr) && frameErr.Kind == FrameErrorForeign
}
