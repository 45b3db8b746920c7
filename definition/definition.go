// Package definition loads quirks described in YAML into the same model as the built in vendor tables.
package definition

import (
	"encoding/hex"
	"errors"
	"fmt"
	"github.com/shimmeringbee/zcl"
	"github.com/shimmeringbee/zigbee"
	"github.com/shimmeringbee/zquirk"
	"github.com/shimmeringbee/zquirk/attribute"
	"github.com/shimmeringbee/zquirk/wire"
	"gopkg.in/yaml.v3"
	"io"
	"io/fs"
	"path"
	"time"
)

var ErrInvalidDefinition = errors.New("invalid quirk definition")

type Value struct {
	Name    string   `yaml:"name"`
	Code    uint8    `yaml:"code"`
	Aliases []string `yaml:"aliases"`
}

type Enumeration struct {
	Name   string  `yaml:"name"`
	Values []Value `yaml:"values"`
}

type Mapping struct {
	Value string `yaml:"value"`
	Raw   string `yaml:"raw"`
}

type Alias struct {
	Underlying string    `yaml:"underlying"`
	Fallback   string    `yaml:"fallback"`
	Mappings   []Mapping `yaml:"mappings"`
}

type CommandRef struct {
	Name     string `yaml:"name"`
	ReadBack bool   `yaml:"read_back"`
}

type Entity struct {
	TranslationKey string `yaml:"translation_key"`
	FallbackName   string `yaml:"fallback_name"`
	Type           string `yaml:"type"`
}

type Attribute struct {
	Name                 string      `yaml:"name"`
	ID                   uint16      `yaml:"id"`
	Type                 string      `yaml:"type"`
	ManufacturerSpecific bool        `yaml:"manufacturer_specific"`
	Enumeration          string      `yaml:"enumeration"`
	Alias                *Alias      `yaml:"alias"`
	Command              *CommandRef `yaml:"command"`
	Entity               *Entity     `yaml:"entity"`
}

type Command struct {
	Name                 string `yaml:"name"`
	ID                   uint8  `yaml:"id"`
	Direction            string `yaml:"direction"`
	ManufacturerSpecific bool   `yaml:"manufacturer_specific"`
	Argument             string `yaml:"argument"`
}

type Cluster struct {
	ID           uint16      `yaml:"id"`
	Name         string      `yaml:"name"`
	Manufacturer uint16      `yaml:"manufacturer"`
	Attributes   []Attribute `yaml:"attributes"`
	Commands     []Command   `yaml:"commands"`
}

type Definition struct {
	Name           string        `yaml:"name"`
	PollIntervalMs int           `yaml:"poll_interval_ms"`
	Enumerations   []Enumeration `yaml:"enumerations"`
	Clusters       []Cluster     `yaml:"clusters"`
}

var dataTypes = map[string]zcl.AttributeDataType{
	"bool":   zcl.TypeBoolean,
	"data8":  zcl.TypeData8,
	"data16": zcl.TypeData16,
	"data24": zcl.TypeData24,
	"data32": zcl.TypeData32,
	"enum8":  zcl.TypeEnum8,
	"uint8":  zcl.TypeUnsignedInt8,
	"uint16": zcl.TypeUnsignedInt16,
	"uint32": zcl.TypeUnsignedInt32,
	"uint64": zcl.TypeUnsignedInt64,
	"int8":   zcl.TypeSignedInt8,
	"int16":  zcl.TypeSignedInt16,
	"int32":  zcl.TypeSignedInt32,
	"int64":  zcl.TypeSignedInt64,
	"string": zcl.TypeStringCharacter8,
}

var directions = map[string]zcl.Direction{
	"":                 zcl.ClientToServer,
	"client_to_server": zcl.ClientToServer,
	"server_to_client": zcl.ServerToClient,
}

var entityTypes = map[string]attribute.EntityType{
	"":         attribute.ConfigEntity,
	"config":   attribute.ConfigEntity,
	"standard": attribute.StandardEntity,
}

// Load reads every YAML document in r as a quirk definition.
func Load(r io.Reader) ([]zquirk.Quirk, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	var quirks []zquirk.Quirk

	for {
		var d Definition

		if err := dec.Decode(&d); err != nil {
			if errors.Is(err, io.EOF) {
				return quirks, nil
			}
			return nil, fmt.Errorf("%w: %w", ErrInvalidDefinition, err)
		}

		q, err := d.Quirk()
		if err != nil {
			return nil, err
		}

		quirks = append(quirks, q)
	}
}

// LoadFS loads every YAML file in the file system.
func LoadFS(fsys fs.FS) ([]zquirk.Quirk, error) {
	var quirks []zquirk.Quirk

	err := fs.WalkDir(fsys, ".", func(p string, de fs.DirEntry, err error) error {
		if err != nil {
			return err
		}

		if de.IsDir() || (path.Ext(p) != ".yaml" && path.Ext(p) != ".yml") {
			return nil
		}

		f, err := fsys.Open(p)
		if err != nil {
			return err
		}
		defer f.Close()

		q, err := Load(f)
		if err != nil {
			return fmt.Errorf("%s: %w", p, err)
		}

		quirks = append(quirks, q...)
		return nil
	})

	return quirks, err
}

// Quirk converts the definition into a quirk, validating it on the way.
func (d Definition) Quirk() (zquirk.Quirk, error) {
	invalid := func(format string, args ...any) error {
		return fmt.Errorf("%w: %s: %s", ErrInvalidDefinition, d.Name, fmt.Sprintf(format, args...))
	}

	if d.Name == "" {
		return zquirk.Quirk{}, fmt.Errorf("%w: missing name", ErrInvalidDefinition)
	}

	enums := map[string]*wire.Enumeration{}

	for _, e := range d.Enumerations {
		var values []wire.Value
		for _, v := range e.Values {
			values = append(values, wire.Value{Name: v.Name, Code: wire.Code(v.Code), Aliases: v.Aliases})
		}

		enum, err := wire.NewEnumeration(e.Name, values...)
		if err != nil {
			return zquirk.Quirk{}, invalid("%v", err)
		}

		if _, found := enums[e.Name]; found {
			return zquirk.Quirk{}, invalid("enumeration %s declared twice", e.Name)
		}

		enums[e.Name] = enum
	}

	lookupEnum := func(name string) (*wire.Enumeration, error) {
		if name == "" {
			return nil, nil
		}

		if e, found := enums[name]; found {
			return e, nil
		}

		return nil, invalid("unknown enumeration %s", name)
	}

	q := zquirk.Quirk{Name: d.Name, PollInterval: time.Duration(d.PollIntervalMs) * time.Millisecond}

	for _, c := range d.Clusters {
		cluster := attribute.Cluster{
			ID:           zigbee.ClusterID(c.ID),
			Name:         c.Name,
			Manufacturer: zigbee.ManufacturerCode(c.Manufacturer),
		}

		for _, cmd := range c.Commands {
			dir, found := directions[cmd.Direction]
			if !found {
				return zquirk.Quirk{}, invalid("command %s: unknown direction %s", cmd.Name, cmd.Direction)
			}

			arg, err := lookupEnum(cmd.Argument)
			if err != nil {
				return zquirk.Quirk{}, err
			}

			cluster.Commands = append(cluster.Commands, attribute.Command{
				Name:                 cmd.Name,
				ID:                   zcl.CommandIdentifier(cmd.ID),
				Direction:            dir,
				ManufacturerSpecific: cmd.ManufacturerSpecific,
				Argument:             arg,
			})
		}

		for _, a := range c.Attributes {
			desc, err := a.descriptor(lookupEnum)
			if err != nil {
				return zquirk.Quirk{}, invalid("attribute %s: %v", a.Name, err)
			}

			cluster.Attributes = append(cluster.Attributes, desc)
		}

		m, err := attribute.NewMap(cluster)
		if err != nil {
			return zquirk.Quirk{}, invalid("%v", err)
		}

		q.Clusters = append(q.Clusters, m)
	}

	return q, nil
}

func (a Attribute) descriptor(lookupEnum func(string) (*wire.Enumeration, error)) (attribute.Descriptor, error) {
	dt, found := dataTypes[a.Type]
	if !found {
		return attribute.Descriptor{}, fmt.Errorf("unknown type %q", a.Type)
	}

	enum, err := lookupEnum(a.Enumeration)
	if err != nil {
		return attribute.Descriptor{}, err
	}

	desc := attribute.Descriptor{
		Name:                 a.Name,
		ID:                   zcl.AttributeID(a.ID),
		DataType:             dt,
		ManufacturerSpecific: a.ManufacturerSpecific,
		Enumeration:          enum,
	}

	if a.Alias != nil && a.Command != nil {
		return attribute.Descriptor{}, fmt.Errorf("cannot be both an alias and command backed")
	}

	if a.Alias != nil {
		if enum == nil {
			return attribute.Descriptor{}, fmt.Errorf("alias requires an enumeration")
		}

		codec, err := a.Alias.codec(enum)
		if err != nil {
			return attribute.Descriptor{}, err
		}

		desc.Kind = attribute.Alias
		desc.Underlying = a.Alias.Underlying
		desc.Codec = codec
	}

	if a.Command != nil {
		desc.Kind = attribute.CommandBacked
		desc.Command = a.Command.Name
		desc.ReadBack = a.Command.ReadBack
	}

	if a.Entity != nil {
		et, found := entityTypes[a.Entity.Type]
		if !found {
			return attribute.Descriptor{}, fmt.Errorf("unknown entity type %q", a.Entity.Type)
		}

		desc.Entity = &attribute.Entity{TranslationKey: a.Entity.TranslationKey, FallbackName: a.Entity.FallbackName, Type: et}
	}

	return desc, nil
}

func (a Alias) codec(enum *wire.Enumeration) (*wire.Codec, error) {
	fallback, found := enum.ByName(a.Fallback)
	if !found {
		return nil, fmt.Errorf("unknown fallback %q", a.Fallback)
	}

	var mappings []wire.Mapping

	for _, m := range a.Mappings {
		v, found := enum.ByName(m.Value)
		if !found {
			return nil, fmt.Errorf("unknown mapped value %q", m.Value)
		}

		raw, err := hex.DecodeString(m.Raw)
		if err != nil {
			return nil, fmt.Errorf("mapping %s: %w", m.Value, err)
		}

		mappings = append(mappings, wire.Mapping{Code: v.Code, Raw: raw})
	}

	return wire.NewCodec(enum, fallback.Code, mappings...)
}
