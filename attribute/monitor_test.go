package attribute

import (
	"context"
	"github.com/shimmeringbee/da"
	"github.com/shimmeringbee/logwrap"
	"github.com/shimmeringbee/logwrap/impl/discard"
	"github.com/shimmeringbee/persistence/impl/memory"
	"github.com/shimmeringbee/zcl"
	"github.com/shimmeringbee/zcl/commands/global"
	"github.com/shimmeringbee/zcl/communicator"
	"github.com/shimmeringbee/zigbee"
	"github.com/shimmeringbee/zquirk/mocks"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"testing"
	"time"
)

func testDevice() da.Device {
	return da.BaseDevice{DeviceIdentifier: zigbee.GenerateLocalAdministeredIEEEAddress()}
}

func Test_zclMonitor_Init(t *testing.T) {
	t.Run("constructor and Init sets up struct correctly", func(t *testing.T) {
		mzc := &mocks.MockZCLCommunicator{}
		defer mzc.AssertExpectations(t)

		tl := func(da.Device, zigbee.ProfileID) (zigbee.IEEEAddress, zigbee.Endpoint, bool, uint8) {
			return 0, 0, false, 0
		}

		s := memory.New()
		d := testDevice()

		cb := func(zcl.AttributeID, zcl.AttributeDataTypeValue) {}

		z := NewMonitor(mzc, tl, logwrap.New(discard.Discard())).(*zclMonitor)
		z.Init(s, d, cb)

		assert.Equal(t, mzc, z.zclCommunicator)
		assert.NotNil(t, z.transmissionLookup)

		assert.Equal(t, s, z.config)
		assert.Equal(t, d, z.device)
		assert.NotNil(t, z.callback)
	})
}

func Test_zclMonitor_Attach(t *testing.T) {
	t.Run("populates structure and persistence, no polling", func(t *testing.T) {
		mzc := &mocks.MockZCLCommunicator{}
		defer mzc.AssertExpectations(t)
		mzc.On("RegisterMatch", mock.Anything)
		mzc.On("UnregisterMatch", mock.Anything)

		expectedIeee := zigbee.GenerateLocalAdministeredIEEEAddress()

		s := memory.New()
		d := testDevice()

		tl := func(dd da.Device, _ zigbee.ProfileID) (zigbee.IEEEAddress, zigbee.Endpoint, bool, uint8) {
			assert.Equal(t, d, dd)
			return expectedIeee, 2, false, 0
		}

		cb := func(zcl.AttributeID, zcl.AttributeDataTypeValue) {}

		z := NewMonitor(mzc, tl, logwrap.New(discard.Discard())).(*zclMonitor)
		z.Init(s, d, cb)
		defer z.Detach(context.Background())

		err := z.Attach(context.Background(), 1, 0xfc01, 0x1021, PollingConfig{Mode: NeverPoll})
		assert.NoError(t, err)

		assert.Equal(t, expectedIeee, z.ieeeAddress)
		assert.Equal(t, zigbee.Endpoint(2), z.localEndpoint)

		assert.Equal(t, zigbee.Endpoint(1), z.remoteEndpoint)
		assert.Equal(t, zigbee.ClusterID(0xfc01), z.clusterID)
		assert.Equal(t, zigbee.ManufacturerCode(0x1021), z.manufacturer)

		remoteEndpointSetting, _ := z.config.Int(RemoteEndpointKey)
		assert.Equal(t, int(z.remoteEndpoint), remoteEndpointSetting)

		clusterIdSetting, _ := z.config.Int(ClusterIdKey)
		assert.Equal(t, int(z.clusterID), clusterIdSetting)

		manufacturerSetting, _ := z.config.Int(ManufacturerKey)
		assert.Equal(t, 0x1021, manufacturerSetting)

		_, pollingPresent := z.config.Bool(PollingConfiguredKey)
		assert.False(t, pollingPresent)
		assert.Nil(t, z.ticker)
	})

	t.Run("polling configured when requested", func(t *testing.T) {
		mzc := &mocks.MockZCLCommunicator{}
		defer mzc.AssertExpectations(t)
		mzc.On("RegisterMatch", mock.Anything)
		mzc.On("UnregisterMatch", mock.Anything)
		mzc.On("ReadAttributes", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return([]global.ReadAttributeResponseRecord{}, nil).Maybe()

		s := memory.New()
		d := testDevice()

		tl := func(da.Device, zigbee.ProfileID) (zigbee.IEEEAddress, zigbee.Endpoint, bool, uint8) {
			return zigbee.GenerateLocalAdministeredIEEEAddress(), 2, false, 0
		}

		z := NewMonitor(mzc, tl, logwrap.New(discard.Discard())).(*zclMonitor)
		z.Init(s, d, func(zcl.AttributeID, zcl.AttributeDataTypeValue) {})

		err := z.Attach(context.Background(), 1, 0xfc40, 0x1021, PollingConfig{Mode: AlwaysPoll, Interval: time.Hour, Attributes: []zcl.AttributeID{0x0000}})
		assert.NoError(t, err)

		pollingConfigured, _ := z.config.Bool(PollingConfiguredKey)
		assert.True(t, pollingConfigured)
		assert.Contains(t, z.config.Section(PollingAttributesKey).SectionKeys(), "0")
		assert.NotNil(t, z.ticker)
		assert.Equal(t, 1, mzc.Registered())

		err = z.Detach(context.Background())
		assert.NoError(t, err)
		assert.Nil(t, z.ticker)
		assert.Zero(t, mzc.Registered())
	})
}

func Test_zclMonitor_Load(t *testing.T) {
	t.Run("fails if required configuration is missing", func(t *testing.T) {
		z := NewMonitor(&mocks.MockZCLCommunicator{}, func(da.Device, zigbee.ProfileID) (zigbee.IEEEAddress, zigbee.Endpoint, bool, uint8) {
			return 0, 0, false, 0
		}, logwrap.New(discard.Discard())).(*zclMonitor)
		z.Init(memory.New(), testDevice(), func(zcl.AttributeID, zcl.AttributeDataTypeValue) {})

		err := z.Load(context.Background())
		assert.Error(t, err)
	})

	t.Run("restores state persisted by Attach", func(t *testing.T) {
		mzc := &mocks.MockZCLCommunicator{}
		defer mzc.AssertExpectations(t)
		mzc.On("RegisterMatch", mock.Anything)
		mzc.On("UnregisterMatch", mock.Anything)

		s := memory.New()
		s.Set(RemoteEndpointKey, 3)
		s.Set(ClusterIdKey, 0xfc01)
		s.Set(ManufacturerKey, 0x1021)
		s.Section(PollingAttributesKey, "2")
		s.Section(PollingAttributesKey, "0")

		tl := func(da.Device, zigbee.ProfileID) (zigbee.IEEEAddress, zigbee.Endpoint, bool, uint8) {
			return 0, 1, false, 0
		}

		z := NewMonitor(mzc, tl, logwrap.New(discard.Discard())).(*zclMonitor)
		z.Init(s, testDevice(), func(zcl.AttributeID, zcl.AttributeDataTypeValue) {})

		err := z.Load(context.Background())
		assert.NoError(t, err)

		assert.Equal(t, zigbee.Endpoint(3), z.remoteEndpoint)
		assert.Equal(t, zigbee.ClusterID(0xfc01), z.clusterID)
		assert.Equal(t, zigbee.ManufacturerCode(0x1021), z.manufacturer)
		assert.Equal(t, []zcl.AttributeID{0, 2}, z.pollAttributes)
		assert.Equal(t, 1, mzc.Registered())

		assert.NoError(t, z.Detach(context.Background()))
		assert.NoError(t, z.Detach(context.Background()))
		assert.Zero(t, mzc.Registered(), "a second detach does not unregister again")
	})
}

func Test_zclMonitor_poller(t *testing.T) {
	t.Run("polls device for data when requested", func(t *testing.T) {
		expectedIeee := zigbee.GenerateLocalAdministeredIEEEAddress()

		mzc := &mocks.MockZCLCommunicator{}
		defer mzc.AssertExpectations(t)

		l := logwrap.New(discard.Discard())

		z := &zclMonitor{
			ieeeAddress:     expectedIeee,
			clusterID:       0xfc40,
			manufacturer:    0x1021,
			localEndpoint:   2,
			remoteEndpoint:  3,
			pollAttributes:  []zcl.AttributeID{0},
			zclCommunicator: mzc,
			logger:          &l,
		}

		mzc.On("ReadAttributes", mock.Anything, expectedIeee, false, z.clusterID, z.manufacturer, z.localEndpoint, z.remoteEndpoint, uint8(0), []zcl.AttributeID{0}).Return([]global.ReadAttributeResponseRecord{}, nil)

		z.transmissionLookup = func(da.Device, zigbee.ProfileID) (zigbee.IEEEAddress, zigbee.Endpoint, bool, uint8) {
			return expectedIeee, 2, false, 0
		}

		stop := make(chan struct{})
		go z.poller(context.Background(), time.NewTicker(time.Millisecond), stop)

		time.Sleep(25 * time.Millisecond)
		stop <- struct{}{}
		<-stop
	})
}

func Test_zclMonitor_zclFilter(t *testing.T) {
	newMonitor := func() zclMonitor {
		z := zclMonitor{}
		z.ieeeAddress = zigbee.GenerateLocalAdministeredIEEEAddress()
		z.clusterID = 0xfc01
		z.localEndpoint = 1
		z.remoteEndpoint = 2
		return z
	}

	t.Run("returns true if everything matches", func(t *testing.T) {
		z := newMonitor()

		match := z.zclFilter(z.ieeeAddress, zigbee.ApplicationMessage{}, zcl.Message{
			ClusterID:           z.clusterID,
			SourceEndpoint:      z.remoteEndpoint,
			DestinationEndpoint: z.localEndpoint,
			Direction:           zcl.ServerToClient,
		})

		assert.True(t, match)
	})

	t.Run("returns true for the client side of the cluster", func(t *testing.T) {
		z := newMonitor()

		match := z.zclFilter(z.ieeeAddress, zigbee.ApplicationMessage{}, zcl.Message{
			ClusterID:           z.clusterID,
			SourceEndpoint:      z.remoteEndpoint,
			DestinationEndpoint: z.localEndpoint,
			Direction:           zcl.ClientToServer,
		})

		assert.True(t, match)
	})

	t.Run("returns false if ieee doesn't match", func(t *testing.T) {
		z := newMonitor()

		match := z.zclFilter(zigbee.GenerateLocalAdministeredIEEEAddress(), zigbee.ApplicationMessage{}, zcl.Message{
			ClusterID:           z.clusterID,
			SourceEndpoint:      z.remoteEndpoint,
			DestinationEndpoint: z.localEndpoint,
		})

		assert.False(t, match)
	})

	t.Run("returns false if cluster doesn't match", func(t *testing.T) {
		z := newMonitor()

		match := z.zclFilter(z.ieeeAddress, zigbee.ApplicationMessage{}, zcl.Message{
			ClusterID:           0xfc40,
			SourceEndpoint:      z.remoteEndpoint,
			DestinationEndpoint: z.localEndpoint,
		})

		assert.False(t, match)
	})

	t.Run("returns false if source endpoint doesn't match", func(t *testing.T) {
		z := newMonitor()

		match := z.zclFilter(z.ieeeAddress, zigbee.ApplicationMessage{}, zcl.Message{
			ClusterID:           z.clusterID,
			SourceEndpoint:      99,
			DestinationEndpoint: z.localEndpoint,
		})

		assert.False(t, match)
	})

	t.Run("returns false if destination endpoint doesn't match", func(t *testing.T) {
		z := newMonitor()

		match := z.zclFilter(z.ieeeAddress, zigbee.ApplicationMessage{}, zcl.Message{
			ClusterID:           z.clusterID,
			SourceEndpoint:      z.remoteEndpoint,
			DestinationEndpoint: 99,
		})

		assert.False(t, match)
	})
}

func Test_zclMonitor_zclMessage(t *testing.T) {
	t.Run("callback activated for every ReadAttribute record with success state", func(t *testing.T) {
		var seen []zcl.AttributeID

		z := zclMonitor{}
		z.callback = func(id zcl.AttributeID, _ zcl.AttributeDataTypeValue) {
			seen = append(seen, id)
		}

		z.zclMessage(communicator.MessageWithSource{
			Message: zcl.Message{
				Command: &global.ReadAttributesResponse{
					Records: []global.ReadAttributeResponseRecord{
						{Identifier: 0x0000, Status: 0, DataTypeValue: &zcl.AttributeDataTypeValue{DataType: zcl.TypeData16, Value: []byte{0x02, 0x00}}},
						{Identifier: 0x0001, Status: 1, DataTypeValue: &zcl.AttributeDataTypeValue{DataType: zcl.TypeBoolean, Value: true}},
						{Identifier: 0x0002, Status: 0, DataTypeValue: &zcl.AttributeDataTypeValue{DataType: zcl.TypeBoolean, Value: false}},
					},
				},
			},
		})

		assert.Equal(t, []zcl.AttributeID{0x0000, 0x0002}, seen)
	})

	t.Run("callback activated for ReportAttributes", func(t *testing.T) {
		called := false

		value := &zcl.AttributeDataTypeValue{
			DataType: zcl.TypeData16,
			Value:    []byte{0x02, 0x00},
		}

		z := zclMonitor{}
		z.callback = func(id zcl.AttributeID, cbValue zcl.AttributeDataTypeValue) {
			called = true

			assert.Equal(t, zcl.AttributeID(0x0000), id)
			assert.Equal(t, *value, cbValue)
		}

		z.zclMessage(communicator.MessageWithSource{
			Message: zcl.Message{
				Command: &global.ReportAttributes{
					Records: []global.ReportAttributesRecord{
						{
							Identifier:    0x0000,
							DataTypeValue: value,
						},
					},
				},
			},
		})

		assert.True(t, called)
	})
}
