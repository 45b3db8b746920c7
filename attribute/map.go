package attribute

import (
	"errors"
	"fmt"
	"github.com/shimmeringbee/zcl"
	"github.com/shimmeringbee/zigbee"
)

var ErrUnknownAttribute = errors.New("unknown attribute")
var ErrUnknownCommand = errors.New("unknown command")
var ErrInvalidCluster = errors.New("invalid cluster definition")

// Map is the read-only lookup over a cluster declaration.
type Map struct {
	cluster  Cluster
	byName   map[string]int
	byID     map[zcl.AttributeID]int
	commands map[string]int
	aliases  map[zcl.AttributeID][]int
}

func NewMap(c Cluster) (*Map, error) {
	m := &Map{
		byName:   make(map[string]int, len(c.Attributes)),
		byID:     make(map[zcl.AttributeID]int, len(c.Attributes)),
		commands: make(map[string]int, len(c.Commands)),
		aliases:  make(map[zcl.AttributeID][]int),
	}

	m.cluster = Cluster{ID: c.ID, Name: c.Name, Manufacturer: c.Manufacturer}
	m.cluster.Attributes = append([]Descriptor(nil), c.Attributes...)
	m.cluster.Commands = append([]Command(nil), c.Commands...)

	commandIDs := map[zcl.CommandIdentifier]bool{}
	for i, cmd := range m.cluster.Commands {
		if _, found := m.commands[cmd.Name]; found || cmd.Name == "" {
			return nil, fmt.Errorf("%w: %s: duplicate or empty command name %q", ErrInvalidCluster, c.Name, cmd.Name)
		}

		if commandIDs[cmd.ID] {
			return nil, fmt.Errorf("%w: %s: duplicate command id 0x%02x", ErrInvalidCluster, c.Name, cmd.ID)
		}

		m.commands[cmd.Name] = i
		commandIDs[cmd.ID] = true
	}

	for i, d := range m.cluster.Attributes {
		if _, found := m.byName[d.Name]; found || d.Name == "" {
			return nil, fmt.Errorf("%w: %s: duplicate or empty attribute name %q", ErrInvalidCluster, c.Name, d.Name)
		}

		if _, found := m.byID[d.ID]; found {
			return nil, fmt.Errorf("%w: %s: duplicate attribute id 0x%04x", ErrInvalidCluster, c.Name, d.ID)
		}

		if d.Enumeration != nil && d.DataType != zcl.TypeEnum8 {
			return nil, fmt.Errorf("%w: %s: attribute %s has an enumeration but is not enum8", ErrInvalidCluster, c.Name, d.Name)
		}

		m.byName[d.Name] = i
		m.byID[d.ID] = i
	}

	for i, d := range m.cluster.Attributes {
		switch d.Kind {
		case PassThrough:
		case Alias:
			if d.Codec == nil {
				return nil, fmt.Errorf("%w: %s: alias %s has no codec", ErrInvalidCluster, c.Name, d.Name)
			}

			if d.Enumeration != nil && d.Enumeration != d.Codec.Enumeration() {
				return nil, fmt.Errorf("%w: %s: alias %s enumeration differs from its codec", ErrInvalidCluster, c.Name, d.Name)
			}

			ui, found := m.byName[d.Underlying]
			if !found {
				return nil, fmt.Errorf("%w: %s: alias %s refers to missing attribute %q", ErrInvalidCluster, c.Name, d.Name, d.Underlying)
			}

			underlying := m.cluster.Attributes[ui]
			if underlying.Kind != PassThrough {
				return nil, fmt.Errorf("%w: %s: alias %s must refer to a pass through attribute", ErrInvalidCluster, c.Name, d.Name)
			}

			m.aliases[underlying.ID] = append(m.aliases[underlying.ID], i)

			if d.Enumeration == nil {
				m.cluster.Attributes[i].Enumeration = d.Codec.Enumeration()
			}
		case CommandBacked:
			if _, found := m.commands[d.Command]; !found {
				return nil, fmt.Errorf("%w: %s: attribute %s uses undeclared command %q", ErrInvalidCluster, c.Name, d.Name, d.Command)
			}
		default:
			return nil, fmt.Errorf("%w: %s: attribute %s has unknown kind %d", ErrInvalidCluster, c.Name, d.Name, d.Kind)
		}
	}

	return m, nil
}

// MustMap is NewMap for static tables, it panics on an invalid definition.
func MustMap(c Cluster) *Map {
	m, err := NewMap(c)
	if err != nil {
		panic(err)
	}

	return m
}

func (m *Map) ClusterID() zigbee.ClusterID {
	return m.cluster.ID
}

func (m *Map) Name() string {
	return m.cluster.Name
}

func (m *Map) Manufacturer() zigbee.ManufacturerCode {
	return m.cluster.Manufacturer
}

// ManufacturerSpecific is true if any attribute or command in the cluster is outside the standard namespace.
func (m *Map) ManufacturerSpecific() bool {
	for _, d := range m.cluster.Attributes {
		if d.ManufacturerSpecific {
			return true
		}
	}

	for _, c := range m.cluster.Commands {
		if c.ManufacturerSpecific {
			return true
		}
	}

	return false
}

func (m *Map) Resolve(name string) (Descriptor, error) {
	if i, found := m.byName[name]; found {
		return m.cluster.Attributes[i], nil
	}

	return Descriptor{}, fmt.Errorf("%w: %s: %q", ErrUnknownAttribute, m.cluster.Name, name)
}

func (m *Map) ResolveID(id zcl.AttributeID) (Descriptor, bool) {
	if i, found := m.byID[id]; found {
		return m.cluster.Attributes[i], true
	}

	return Descriptor{}, false
}

// AliasesOf returns the aliases declared over the attribute with the wire id provided.
func (m *Map) AliasesOf(id zcl.AttributeID) []Descriptor {
	var ret []Descriptor

	for _, i := range m.aliases[id] {
		ret = append(ret, m.cluster.Attributes[i])
	}

	return ret
}

func (m *Map) Command(name string) (Command, error) {
	if i, found := m.commands[name]; found {
		return m.cluster.Commands[i], nil
	}

	return Command{}, fmt.Errorf("%w: %s: %q", ErrUnknownCommand, m.cluster.Name, name)
}

func (m *Map) Commands() []Command {
	return append([]Command(nil), m.cluster.Commands...)
}

// Descriptors returns all attributes in declaration order.
func (m *Map) Descriptors() []Descriptor {
	return append([]Descriptor(nil), m.cluster.Attributes...)
}

// DeviceAttributes returns the ids of attributes that exist on the device, i.e. everything except aliases.
func (m *Map) DeviceAttributes() []zcl.AttributeID {
	var ret []zcl.AttributeID

	for _, d := range m.cluster.Attributes {
		if d.Kind != Alias {
			ret = append(ret, d.ID)
		}
	}

	return ret
}
