package proxy

import (
	"context"
	"errors"
	"fmt"
	"github.com/shimmeringbee/logwrap"
	"github.com/shimmeringbee/zcl"
	"github.com/shimmeringbee/zcl/commands/global"
	"github.com/shimmeringbee/zigbee"
	"github.com/shimmeringbee/zquirk/attribute"
	"sort"
)

var ErrConflictingWrite = errors.New("conflicting write")

// Batch is a set of logical attribute names and the values to write to them.
type Batch map[string]any

// CommandWrite is an entry of a batch that is carried by a cluster command.
type CommandWrite struct {
	Attribute attribute.Descriptor
	Command   attribute.Command
	Argument  attribute.EnumArgument
}

// Partition is a batch split by how each entry reaches the device. PassThrough is keyed by wire id and already
// holds encoded values; Commands is ordered by attribute id.
type Partition struct {
	PassThrough map[zcl.AttributeID]zcl.AttributeDataTypeValue
	Commands    []CommandWrite
}

// Proxy translates writes of logical attributes into the vendor's wire operations, and raw attribute reports
// into the logical attributes derived from them.
//
// A write to a command backed attribute that requests read-back causes an additional read request on the wire
// after the command completes, beyond the operations the caller asked for.
type Proxy struct {
	attributes *attribute.Map
	primitives Primitives
	sink       UpdateSink
	logger     logwrap.Logger
}

func New(m *attribute.Map, p Primitives, s UpdateSink, l logwrap.Logger) *Proxy {
	return &Proxy{
		attributes: m,
		primitives: p,
		sink:       s,
		logger:     l,
	}
}

func (p *Proxy) Attributes() *attribute.Map {
	return p.attributes
}

// Partition resolves and encodes every entry of the batch without touching the wire. It fails if any name is
// unknown, any value cannot be encoded, or two entries would write the same wire attribute.
func (p *Proxy) Partition(batch Batch) (Partition, error) {
	part := Partition{PassThrough: make(map[zcl.AttributeID]zcl.AttributeDataTypeValue)}
	writtenBy := make(map[zcl.AttributeID]string)

	names := make([]string, 0, len(batch))
	for name := range batch {
		names = append(names, name)
	}
	sort.Strings(names)

	claim := func(id zcl.AttributeID, name string) error {
		if other, found := writtenBy[id]; found {
			return fmt.Errorf("%w: %s and %s both write attribute 0x%04x", ErrConflictingWrite, other, name, id)
		}
		writtenBy[id] = name
		return nil
	}

	for _, name := range names {
		value := batch[name]

		d, err := p.attributes.Resolve(name)
		if err != nil {
			return Partition{}, err
		}

		switch d.Kind {
		case attribute.PassThrough:
			dtv, err := coerce(d, value)
			if err != nil {
				return Partition{}, err
			}

			if err := claim(d.ID, d.Name); err != nil {
				return Partition{}, err
			}

			part.PassThrough[d.ID] = dtv

		case attribute.Alias:
			code, err := d.Codec.Enumeration().Parse(value)
			if err != nil {
				return Partition{}, fmt.Errorf("%s: %w", d.Name, err)
			}

			raw, err := d.Codec.Forward(code)
			if err != nil {
				return Partition{}, fmt.Errorf("%s: %w", d.Name, err)
			}

			underlying, err := p.attributes.Resolve(d.Underlying)
			if err != nil {
				return Partition{}, err
			}

			dtv, err := coerce(underlying, raw)
			if err != nil {
				return Partition{}, fmt.Errorf("%s: %w", d.Name, err)
			}

			if err := claim(underlying.ID, d.Name); err != nil {
				return Partition{}, err
			}

			part.PassThrough[underlying.ID] = dtv

		case attribute.CommandBacked:
			cmd, err := p.attributes.Command(d.Command)
			if err != nil {
				return Partition{}, err
			}

			enum := cmd.Argument
			if enum == nil {
				enum = d.Enumeration
			}

			var arg uint8
			if enum != nil {
				code, err := enum.Parse(value)
				if err != nil {
					return Partition{}, fmt.Errorf("%s: %w", d.Name, err)
				}
				arg = uint8(code)
			} else {
				dtv, err := coerce(attribute.Descriptor{Name: d.Name, DataType: zcl.TypeEnum8}, value)
				if err != nil {
					return Partition{}, err
				}
				arg = dtv.Value.(uint8)
			}

			if err := claim(d.ID, d.Name); err != nil {
				return Partition{}, err
			}

			part.Commands = append(part.Commands, CommandWrite{Attribute: d, Command: cmd, Argument: attribute.EnumArgument{Value: arg}})

		default:
			return Partition{}, fmt.Errorf("%w: %s: unhandled kind %s", attribute.ErrInvalidCluster, d.Name, d.Kind)
		}
	}

	sort.Slice(part.Commands, func(i, j int) bool {
		return part.Commands[i].Attribute.ID < part.Commands[j].Attribute.ID
	})

	return part, nil
}

// WriteAttributes carries a batch to the device. Command backed entries are issued first, each awaited and then
// optionally read back, and the remaining entries are written in a single delegated write whose records are
// returned unmodified. Nothing reaches the wire if the batch fails to partition. Failures of the delegated
// operations are returned unchanged and are not retried; earlier commands are not rolled back.
func (p *Proxy) WriteAttributes(pctx context.Context, batch Batch, manufacturer zigbee.ManufacturerCode) ([]global.WriteAttributesResponseRecord, error) {
	ctx, end := p.logger.Segment(pctx, "Writing attributes.", logwrap.Datum("Cluster", p.attributes.Name()), logwrap.Datum("Count", len(batch)))
	defer end()

	part, err := p.Partition(batch)
	if err != nil {
		p.logger.Warn(ctx, "Rejected attribute write.", logwrap.Err(err))
		return nil, err
	}

	for _, cw := range part.Commands {
		p.logger.Debug(ctx, "Issuing command in place of attribute write.", logwrap.Datum("Attribute", cw.Attribute.Name), logwrap.Datum("Command", cw.Command.Name), logwrap.Datum("Value", cw.Argument.Value))

		if err := p.primitives.IssueCommand(ctx, manufacturer, cw.Command, &cw.Argument); err != nil {
			p.logger.Error(ctx, "Command failed.", logwrap.Err(err), logwrap.Datum("Command", cw.Command.Name))
			return nil, err
		}

		if cw.Attribute.ReadBack {
			if err := p.primitives.ReadAttributes(ctx, manufacturer, []zcl.AttributeID{cw.Attribute.ID}); err != nil {
				p.logger.Warn(ctx, "Read back after command failed.", logwrap.Err(err), logwrap.Datum("Attribute", cw.Attribute.Name))
			}
		}
	}

	if len(part.PassThrough) == 0 {
		return []global.WriteAttributesResponseRecord{}, nil
	}

	return p.primitives.WriteAttributes(ctx, manufacturer, part.PassThrough)
}

// OnAttributeReport records a value received from the device, and every logical attribute derived from it,
// before returning. Raw values the codec does not recognise derive the codec's fallback.
func (p *Proxy) OnAttributeReport(ctx context.Context, id zcl.AttributeID, value zcl.AttributeDataTypeValue) {
	cluster := p.attributes.ClusterID()

	p.sink.UpdateAttribute(ctx, cluster, id, value)

	for _, alias := range p.attributes.AliasesOf(id) {
		raw, _ := rawBytes(value)
		code, recognised := alias.Codec.Reverse(raw)

		if !recognised {
			p.logger.Warn(ctx, "Unrecognised raw value, using fallback.", logwrap.Datum("Attribute", alias.Name), logwrap.Datum("Raw", fmt.Sprintf("%x", raw)), logwrap.Datum("Fallback", alias.Codec.Enumeration().String(code)))
		}

		p.sink.UpdateAttribute(ctx, cluster, alias.ID, zcl.AttributeDataTypeValue{DataType: zcl.TypeEnum8, Value: uint8(code)})
	}
}

// Decode returns the logical value of an enumeration attribute, dataN words as bytes in wire order, or the value
// unchanged for anything else.
func (p *Proxy) Decode(name string, value zcl.AttributeDataTypeValue) (any, error) {
	d, err := p.attributes.Resolve(name)
	if err != nil {
		return nil, err
	}

	if d.Enumeration == nil {
		if b, ok := value.Value.([]byte); ok && dataWidth(d.DataType) > 0 {
			return reversed(b), nil
		}
		return value.Value, nil
	}

	code, err := d.Enumeration.Parse(value.Value)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", d.Name, err)
	}

	v, _ := d.Enumeration.Lookup(code)
	return v, nil
}
