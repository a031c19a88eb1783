package event

import (
	"bytes"
	"encoding/json"

	dErrors "tenantcore/pkg/domain-errors"
)

// Payload is an opaque, JSON-encoded object. Holding encoded bytes keeps
// payloads tree-shaped: back-references cannot survive encoding, and an
// encoded payload can be copied and shared freely.
type Payload struct {
	raw json.RawMessage
}

// EmptyPayload is the payload "{}".
var EmptyPayload = Payload{raw: json.RawMessage(`{}`)}

// NewPayload encodes v, which must encode to a JSON object.
//
// Errors: CodeInvalidInput when v cannot be encoded (cycles, channels,
// functions) or does not encode to an object.
func NewPayload(v any) (Payload, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return Payload{}, dErrors.Wrap(err, dErrors.CodeInvalidInput, "payload is not JSON-encodable")
	}
	return PayloadFromJSON(raw)
}

// MustPayload is NewPayload for static payload types that cannot fail.
func MustPayload(v any) Payload {
	p, err := NewPayload(v)
	if err != nil {
		panic(err)
	}
	return p
}

// PayloadFromJSON wraps stored bytes after checking they hold a JSON object.
func PayloadFromJSON(raw []byte) (Payload, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || trimmed[0] != '{' || !json.Valid(trimmed) {
		return Payload{}, dErrors.New(dErrors.CodeInvalidInput, "payload must be a JSON object")
	}
	cp := make(json.RawMessage, len(trimmed))
	copy(cp, trimmed)
	return Payload{raw: cp}, nil
}

// Decode unmarshals the payload into v.
func (p Payload) Decode(v any) error {
	if err := json.Unmarshal(p.JSON(), v); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInvalidInput, "decode payload")
	}
	return nil
}

// Map decodes the payload into a generic map.
func (p Payload) Map() (map[string]any, error) {
	m := map[string]any{}
	if err := p.Decode(&m); err != nil {
		return nil, err
	}
	return m, nil
}

// JSON returns the encoded bytes; an unset payload renders as "{}".
func (p Payload) JSON() []byte {
	if len(p.raw) == 0 {
		return []byte(`{}`)
	}
	return p.raw
}

// IsZero reports whether the payload was never set.
func (p Payload) IsZero() bool {
	return len(p.raw) == 0
}

// Equal compares payloads semantically, ignoring key order and whitespace.
func (p Payload) Equal(other Payload) bool {
	a, errA := p.Map()
	b, errB := other.Map()
	if errA != nil || errB != nil {
		return false
	}
	ja, _ := json.Marshal(a)
	jb, _ := json.Marshal(b)
	return bytes.Equal(ja, jb)
}

func (p Payload) MarshalJSON() ([]byte, error) {
	return p.JSON(), nil
}

func (p *Payload) UnmarshalJSON(raw []byte) error {
	decoded, err := PayloadFromJSON(raw)
	if err != nil {
		return err
	}
	*p = decoded
	return nil
}
