package wire

import (
	"bytes"
	"errors"
	"fmt"
)

var ErrInvalidCodec = errors.New("invalid codec")

// Mapping pairs an enumeration code with the raw bytes the device uses for it.
type Mapping struct {
	Code Code
	Raw  []byte
}

// Codec translates between an enumeration and the raw value of a differently encoded device attribute. It is a
// bijection over its mappings, anything else resolves to the fallback.
type Codec struct {
	enum     *Enumeration
	mappings []Mapping
	fallback Code
}

func NewCodec(e *Enumeration, fallback Code, mappings ...Mapping) (*Codec, error) {
	if e == nil {
		return nil, fmt.Errorf("%w: no enumeration", ErrInvalidCodec)
	}

	c := &Codec{enum: e, fallback: fallback}
	fallbackMapped := false

	for _, m := range mappings {
		if _, found := e.Lookup(m.Code); !found {
			return nil, fmt.Errorf("%w: %s has no member with code 0x%02x", ErrInvalidCodec, e.Name(), m.Code)
		}

		if len(m.Raw) == 0 {
			return nil, fmt.Errorf("%w: empty raw value for %s", ErrInvalidCodec, e.String(m.Code))
		}

		for _, existing := range c.mappings {
			if existing.Code == m.Code {
				return nil, fmt.Errorf("%w: code %s mapped twice", ErrInvalidCodec, e.String(m.Code))
			}

			if bytes.Equal(existing.Raw, m.Raw) {
				return nil, fmt.Errorf("%w: raw value %#v mapped twice", ErrInvalidCodec, m.Raw)
			}
		}

		if m.Code == fallback {
			fallbackMapped = true
		}

		c.mappings = append(c.mappings, Mapping{Code: m.Code, Raw: bytes.Clone(m.Raw)})
	}

	if !fallbackMapped {
		return nil, fmt.Errorf("%w: fallback %s has no raw value", ErrInvalidCodec, e.String(fallback))
	}

	return c, nil
}

// MustCodec is NewCodec for static tables, it panics on an invalid definition.
func MustCodec(e *Enumeration, fallback Code, mappings ...Mapping) *Codec {
	c, err := NewCodec(e, fallback, mappings...)
	if err != nil {
		panic(err)
	}

	return c
}

func (c *Codec) Enumeration() *Enumeration {
	return c.enum
}

func (c *Codec) Fallback() Code {
	return c.fallback
}

func (c *Codec) Mappings() []Mapping {
	ret := make([]Mapping, 0, len(c.mappings))
	for _, m := range c.mappings {
		ret = append(ret, Mapping{Code: m.Code, Raw: bytes.Clone(m.Raw)})
	}
	return ret
}

// Forward returns the raw value for a code. Members of the enumeration without their own mapping encode as the
// fallback; codes outside the enumeration are rejected.
func (c *Codec) Forward(code Code) ([]byte, error) {
	if _, found := c.enum.Lookup(code); !found {
		return nil, fmt.Errorf("%w: %s has no member with code 0x%02x", ErrInvalidValue, c.enum.Name(), code)
	}

	if raw, found := c.raw(code); found {
		return raw, nil
	}

	raw, _ := c.raw(c.fallback)
	return raw, nil
}

// Reverse returns the code for a raw value, and whether the raw value was recognised. Unrecognised values
// return the fallback.
func (c *Codec) Reverse(raw []byte) (Code, bool) {
	for _, m := range c.mappings {
		if bytes.Equal(m.Raw, raw) {
			return m.Code, true
		}
	}

	return c.fallback, false
}

func (c *Codec) raw(code Code) ([]byte, bool) {
	for _, m := range c.mappings {
		if m.Code == code {
			return bytes.Clone(m.Raw), true
		}
	}

	return nil, false
}
