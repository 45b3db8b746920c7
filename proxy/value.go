package proxy

import (
	"encoding/binary"
	"fmt"
	"github.com/shimmeringbee/zcl"
	"github.com/shimmeringbee/zquirk/attribute"
	"github.com/shimmeringbee/zquirk/wire"
	"math"
)

func dataWidth(dt zcl.AttributeDataType) int {
	switch dt {
	case zcl.TypeData8:
		return 1
	case zcl.TypeData16:
		return 2
	case zcl.TypeData24:
		return 3
	case zcl.TypeData32:
		return 4
	default:
		return 0
	}
}

// coerce converts a caller supplied value into the zcl representation of the attribute. Byte slices for dataN
// attributes are given in the order they appear on the wire; zcl holds them last byte first.
func coerce(d attribute.Descriptor, v any) (zcl.AttributeDataTypeValue, error) {
	if dtv, ok := v.(zcl.AttributeDataTypeValue); ok {
		if dtv.DataType != d.DataType {
			return zcl.AttributeDataTypeValue{}, fmt.Errorf("%w: %s expects data type 0x%02x, got 0x%02x", wire.ErrInvalidValue, d.Name, d.DataType, dtv.DataType)
		}
		return dtv, nil
	}

	switch d.DataType {
	case zcl.TypeBoolean:
		if b, ok := v.(bool); ok {
			return zcl.AttributeDataTypeValue{DataType: d.DataType, Value: b}, nil
		}
		return zcl.AttributeDataTypeValue{}, fmt.Errorf("%w: %s expects a boolean, got %T", wire.ErrInvalidValue, d.Name, v)

	case zcl.TypeEnum8:
		if d.Enumeration != nil {
			code, err := d.Enumeration.Parse(v)
			if err != nil {
				return zcl.AttributeDataTypeValue{}, fmt.Errorf("%s: %w", d.Name, err)
			}
			return zcl.AttributeDataTypeValue{DataType: d.DataType, Value: uint8(code)}, nil
		}

		n, err := unsigned(v, math.MaxUint8)
		if err != nil {
			return zcl.AttributeDataTypeValue{}, fmt.Errorf("%s: %w", d.Name, err)
		}
		return zcl.AttributeDataTypeValue{DataType: d.DataType, Value: uint8(n)}, nil

	case zcl.TypeData8, zcl.TypeData16, zcl.TypeData24, zcl.TypeData32:
		width := dataWidth(d.DataType)

		if b, ok := v.([]byte); ok {
			if len(b) != width {
				return zcl.AttributeDataTypeValue{}, fmt.Errorf("%w: %s expects %d bytes, got %d", wire.ErrInvalidValue, d.Name, width, len(b))
			}
			return zcl.AttributeDataTypeValue{DataType: d.DataType, Value: reversed(b)}, nil
		}

		n, err := unsigned(v, 1<<(8*width)-1)
		if err != nil {
			return zcl.AttributeDataTypeValue{}, fmt.Errorf("%s: %w", d.Name, err)
		}
		return zcl.AttributeDataTypeValue{DataType: d.DataType, Value: reversed(littleEndian(n, width))}, nil

	case zcl.TypeUnsignedInt8, zcl.TypeUnsignedInt16, zcl.TypeUnsignedInt32, zcl.TypeUnsignedInt64:
		n, err := unsigned(v, math.MaxUint64)
		if err != nil {
			return zcl.AttributeDataTypeValue{}, fmt.Errorf("%s: %w", d.Name, err)
		}
		return zcl.AttributeDataTypeValue{DataType: d.DataType, Value: n}, nil

	default:
		return zcl.AttributeDataTypeValue{DataType: d.DataType, Value: v}, nil
	}
}

func unsigned(v any, max uint64) (uint64, error) {
	var n uint64

	switch cv := v.(type) {
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
	case wire.Code:
		n = uint64(cv)
	case int:
		if cv < 0 {
			return 0, fmt.Errorf("%w: negative value %d", wire.ErrInvalidValue, cv)
		}
		n = uint64(cv)
	case int64:
		if cv < 0 {
			return 0, fmt.Errorf("%w: negative value %d", wire.ErrInvalidValue, cv)
		}
		n = uint64(cv)
	default:
		return 0, fmt.Errorf("%w: unsupported type %T", wire.ErrInvalidValue, v)
	}

	if n > max {
		return 0, fmt.Errorf("%w: value %d out of range", wire.ErrInvalidValue, n)
	}

	return n, nil
}

func littleEndian(n uint64, width int) []byte {
	b := make([]byte, 8)
	binary.LittleEndian.PutUint64(b, n)
	return b[:width]
}

// reversed converts dataN bytes between wire order and the order zcl marshals them in, which is the reverse.
func reversed(b []byte) []byte {
	r := make([]byte, len(b))
	for i, v := range b {
		r[len(b)-1-i] = v
	}
	return r
}

// rawBytes extracts the wire order byte sequence of a raw device value, integer forms are taken as little endian
// words in the width of the data type.
func rawBytes(v zcl.AttributeDataTypeValue) ([]byte, bool) {
	width := dataWidth(v.DataType)
	if width == 0 {
		width = 2
	}

	switch cv := v.Value.(type) {
	case []byte:
		return reversed(cv), true
	case uint64:
		return littleEndian(cv, width), true
	case uint32:
		return littleEndian(uint64(cv), width), true
	case uint16:
		return littleEndian(uint64(cv), width), true
	case uint8:
		return littleEndian(uint64(cv), width), true
	default:
		return nil, false
	}
}
