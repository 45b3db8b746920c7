package wire

import (
	"errors"
	"fmt"
	"strconv"
)

var ErrInvalidValue = errors.New("invalid value")
var ErrInvalidEnumeration = errors.New("invalid enumeration")

// Code is the 8-bit wire code of an enumeration value.
type Code uint8

// Value is one named member of an Enumeration. Aliases are alternative names accepted when parsing, used where
// variants of a device name the same code differently.
type Value struct {
	Name    string
	Code    Code
	Aliases []string
}

// Enumeration is a closed, ordered set of named codes. It is immutable once constructed.
type Enumeration struct {
	name   string
	values []Value
	byCode map[Code]int
	byName map[string]int
}

func NewEnumeration(name string, values ...Value) (*Enumeration, error) {
	if len(values) == 0 {
		return nil, fmt.Errorf("%w: %s: no values", ErrInvalidEnumeration, name)
	}

	e := &Enumeration{
		name:   name,
		byCode: make(map[Code]int, len(values)),
		byName: make(map[string]int, len(values)),
	}

	for i, v := range values {
		if _, found := e.byCode[v.Code]; found {
			return nil, fmt.Errorf("%w: %s: duplicate code 0x%02x", ErrInvalidEnumeration, name, v.Code)
		}
		e.byCode[v.Code] = i

		for _, n := range append([]string{v.Name}, v.Aliases...) {
			if n == "" {
				return nil, fmt.Errorf("%w: %s: empty name for code 0x%02x", ErrInvalidEnumeration, name, v.Code)
			}

			if _, found := e.byName[n]; found {
				return nil, fmt.Errorf("%w: %s: duplicate name %q", ErrInvalidEnumeration, name, n)
			}
			e.byName[n] = i
		}

		e.values = append(e.values, Value{Name: v.Name, Code: v.Code, Aliases: append([]string(nil), v.Aliases...)})
	}

	return e, nil
}

// MustEnumeration is NewEnumeration for static tables, it panics on an invalid definition.
func MustEnumeration(name string, values ...Value) *Enumeration {
	e, err := NewEnumeration(name, values...)
	if err != nil {
		panic(err)
	}

	return e
}

func (e *Enumeration) Name() string {
	return e.name
}

// Values returns the members in declaration order.
func (e *Enumeration) Values() []Value {
	ret := make([]Value, len(e.values))
	copy(ret, e.values)
	return ret
}

func (e *Enumeration) Lookup(c Code) (Value, bool) {
	if i, found := e.byCode[c]; found {
		return e.values[i], true
	}

	return Value{}, false
}

// ByName finds a member by its name or one of its aliases.
func (e *Enumeration) ByName(n string) (Value, bool) {
	if i, found := e.byName[n]; found {
		return e.values[i], true
	}

	return Value{}, false
}

func (e *Enumeration) String(c Code) string {
	if v, found := e.Lookup(c); found {
		return v.Name
	}

	return e.name + "(0x" + strconv.FormatUint(uint64(c), 16) + ")"
}

// Parse converts a caller supplied value into a member code. Names, aliases and any integer type holding a
// declared code are accepted.
func (e *Enumeration) Parse(v any) (Code, error) {
	var n uint64

	switch cv := v.(type) {
	case Code:
		n = uint64(cv)
	case Value:
		n = uint64(cv.Code)
	case string:
		if val, found := e.ByName(cv); found {
			return val.Code, nil
		}
		return 0, fmt.Errorf("%w: %s has no member named %q", ErrInvalidValue, e.name, cv)
	case uint8:
		n = uint64(cv)
	case uint16:
		n = uint64(cv)
	case uint32:
		n = uint64(cv)
	case uint64:
		n = cv
	case uint:
		n = uint64(cv)
	case int:
		if cv < 0 {
			return 0, fmt.Errorf("%w: %s: negative code %d", ErrInvalidValue, e.name, cv)
		}
		n = uint64(cv)
	case int64:
		if cv < 0 {
			return 0, fmt.Errorf("%w: %s: negative code %d", ErrInvalidValue, e.name, cv)
		}
		n = uint64(cv)
	default:
		return 0, fmt.Errorf("%w: %s: unsupported type %T", ErrInvalidValue, e.name, v)
	}

	if n > 0xff {
		return 0, fmt.Errorf("%w: %s: code %d out of range", ErrInvalidValue, e.name, n)
	}

	if _, found := e.byCode[Code(n)]; !found {
		return 0, fmt.Errorf("%w: %s has no member with code 0x%02x", ErrInvalidValue, e.name, n)
	}

	return Code(n), nil
}
