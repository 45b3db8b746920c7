package zquirk

import (
	"context"
	"encoding/hex"
	"github.com/shimmeringbee/callbacks"
	"github.com/shimmeringbee/da"
	"github.com/shimmeringbee/logwrap"
	"github.com/shimmeringbee/persistence"
	"github.com/shimmeringbee/persistence/converter"
	"github.com/shimmeringbee/zcl"
	"github.com/shimmeringbee/zigbee"
	"github.com/shimmeringbee/zquirk/proxy"
	"reflect"
	"strconv"
	"sync"
	"time"
)

const DataTypeKey = "DataType"
const ValueKey = "Value"
const LastUpdatedKey = "LastUpdated"
const LastChangedKey = "LastChanged"

// AttributeUpdate is published whenever the cache records a value, Changed is false if the value is the same as
// the one already held.
type AttributeUpdate struct {
	Device    da.Device
	ClusterID zigbee.ClusterID
	Attribute zcl.AttributeID
	Value     zcl.AttributeDataTypeValue
	Changed   bool
}

// Cache holds the last known value of every attribute of a device, including those derived by a proxy.
type Cache struct {
	section   persistence.Section
	device    da.Device
	callbacks callbacks.Caller
	logger    logwrap.Logger

	m *sync.RWMutex
}

var _ proxy.UpdateSink = (*Cache)(nil)

func NewCache(s persistence.Section, d da.Device, c callbacks.Caller, l logwrap.Logger) *Cache {
	return &Cache{
		section:   s,
		device:    d,
		callbacks: c,
		logger:    l,
		m:         &sync.RWMutex{},
	}
}

func (c *Cache) sectionFor(cluster zigbee.ClusterID, id zcl.AttributeID) persistence.Section {
	return c.section.Section(strconv.FormatUint(uint64(cluster), 16), strconv.FormatUint(uint64(id), 16))
}

func (c *Cache) UpdateAttribute(ctx context.Context, cluster zigbee.ClusterID, id zcl.AttributeID, value zcl.AttributeDataTypeValue) {
	c.m.Lock()

	s := c.sectionFor(cluster, id)

	prev, found := load(s)
	changed := !found || !reflect.DeepEqual(prev, value)

	now := time.Now()

	if changed {
		if !store(s, value) {
			c.m.Unlock()
			c.logger.Warn(ctx, "Unable to cache attribute value of unsupported type.", logwrap.Datum("ClusterID", cluster), logwrap.Datum("AttributeID", id), logwrap.Datum("DataType", value.DataType))
			return
		}

		converter.Store(s, LastChangedKey, now, converter.TimeEncoder)
	}

	converter.Store(s, LastUpdatedKey, now, converter.TimeEncoder)

	c.m.Unlock()

	if c.callbacks == nil {
		return
	}

	if err := c.callbacks.Call(ctx, AttributeUpdate{Device: c.device, ClusterID: cluster, Attribute: id, Value: value, Changed: changed}); err != nil {
		c.logger.Warn(ctx, "Attribute update callback failed.", logwrap.Err(err), logwrap.Datum("ClusterID", cluster), logwrap.Datum("AttributeID", id))
	}
}

func (c *Cache) Value(cluster zigbee.ClusterID, id zcl.AttributeID) (zcl.AttributeDataTypeValue, bool) {
	c.m.RLock()
	defer c.m.RUnlock()

	return load(c.sectionFor(cluster, id))
}

func (c *Cache) LastUpdateTime(cluster zigbee.ClusterID, id zcl.AttributeID) (time.Time, bool) {
	c.m.RLock()
	defer c.m.RUnlock()

	return converter.Retrieve(c.sectionFor(cluster, id), LastUpdatedKey, converter.TimeDecoder)
}

func (c *Cache) LastChangeTime(cluster zigbee.ClusterID, id zcl.AttributeID) (time.Time, bool) {
	c.m.RLock()
	defer c.m.RUnlock()

	return converter.Retrieve(c.sectionFor(cluster, id), LastChangedKey, converter.TimeDecoder)
}

// Forget removes all cached values of a cluster.
func (c *Cache) Forget(cluster zigbee.ClusterID) {
	c.m.Lock()
	defer c.m.Unlock()

	c.section.SectionDelete(strconv.FormatUint(uint64(cluster), 16))
}

func store(s persistence.Section, v zcl.AttributeDataTypeValue) bool {
	switch cv := v.Value.(type) {
	case bool:
		s.Set(ValueKey, cv)
	case []byte:
		s.Set(ValueKey, hex.EncodeToString(cv))
	case string:
		s.Set(ValueKey, cv)
	case uint8:
		s.Set(ValueKey, int(cv))
	case uint16:
		s.Set(ValueKey, int(cv))
	case uint32:
		s.Set(ValueKey, int(cv))
	case uint64:
		s.Set(ValueKey, int(cv))
	case int64:
		s.Set(ValueKey, int(cv))
	default:
		return false
	}

	s.Set(DataTypeKey, int(v.DataType))
	return true
}

func load(s persistence.Section) (zcl.AttributeDataTypeValue, bool) {
	dt, found := s.Int(DataTypeKey)
	if !found {
		return zcl.AttributeDataTypeValue{}, false
	}

	v := zcl.AttributeDataTypeValue{DataType: zcl.AttributeDataType(dt)}

	switch v.DataType {
	case zcl.TypeBoolean:
		b, ok := s.Bool(ValueKey)
		if !ok {
			return zcl.AttributeDataTypeValue{}, false
		}
		v.Value = b

	case zcl.TypeData8, zcl.TypeData16, zcl.TypeData24, zcl.TypeData32:
		str, ok := s.String(ValueKey)
		if !ok {
			return zcl.AttributeDataTypeValue{}, false
		}

		raw, err := hex.DecodeString(str)
		if err != nil {
			return zcl.AttributeDataTypeValue{}, false
		}
		v.Value = raw

	case zcl.TypeStringCharacter8:
		str, ok := s.String(ValueKey)
		if !ok {
			return zcl.AttributeDataTypeValue{}, false
		}
		v.Value = str

	case zcl.TypeEnum8:
		n, ok := s.Int(ValueKey)
		if !ok {
			return zcl.AttributeDataTypeValue{}, false
		}
		v.Value = uint8(n)

	case zcl.TypeSignedInt8, zcl.TypeSignedInt16, zcl.TypeSignedInt24, zcl.TypeSignedInt32, zcl.TypeSignedInt64:
		n, ok := s.Int(ValueKey)
		if !ok {
			return zcl.AttributeDataTypeValue{}, false
		}
		v.Value = int64(n)

	default:
		n, ok := s.Int(ValueKey)
		if !ok {
			return zcl.AttributeDataTypeValue{}, false
		}
		v.Value = uint64(n)
	}

	return v, true
}
