package proxy

import (
	"context"
	"github.com/shimmeringbee/bytecodec"
	"github.com/shimmeringbee/zcl"
	"github.com/shimmeringbee/zcl/commands/global"
	"github.com/shimmeringbee/zigbee"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"testing"
)

func marshalWrite(t *testing.T, payload map[zcl.AttributeID]zcl.AttributeDataTypeValue) []byte {
	var records []global.WriteAttributesRecord

	for id, v := range payload {
		v := v
		records = append(records, global.WriteAttributesRecord{Identifier: id, DataTypeValue: &v})
	}

	data, err := bytecodec.Marshal(&global.WriteAttributes{Records: records})
	require.NoError(t, err)

	return data
}

func TestProxy_WireOrder(t *testing.T) {
	t.Run("device mode words are written to the wire in table order", func(t *testing.T) {
		p, _, _ := newProxy(legrandMap())

		cases := map[string][]byte{
			"Wire_pilot": {0x00, 0x00, 0x09, 0x02, 0x00},
			"Switch":     {0x00, 0x00, 0x09, 0x01, 0x00},
		}

		for mode, expected := range cases {
			part, err := p.Partition(Batch{"device_mode_enum": mode})
			require.NoError(t, err)

			assert.Equal(t, expected, marshalWrite(t, part.PassThrough), mode)
		}
	})

	t.Run("integer raw words are written little endian", func(t *testing.T) {
		p, _, _ := newProxy(legrandMap())

		part, err := p.Partition(Batch{"device_mode": uint16(0x0102)})
		require.NoError(t, err)

		assert.Equal(t, []byte{0x00, 0x00, 0x09, 0x02, 0x01}, marshalWrite(t, part.PassThrough))
	})

	t.Run("a device mode report from the wire derives the mode", func(t *testing.T) {
		cases := map[string]struct {
			frame    []byte
			expected uint8
		}{
			"wire pilot": {frame: []byte{0x00, 0x00, 0x09, 0x02, 0x00}, expected: 0x01},
			"switch":     {frame: []byte{0x00, 0x00, 0x09, 0x01, 0x00}, expected: 0x00},
		}

		for name, tc := range cases {
			t.Run(name, func(t *testing.T) {
				report := global.ReportAttributes{}
				require.NoError(t, bytecodec.Unmarshal(tc.frame, &report))
				require.Len(t, report.Records, 1)

				record := report.Records[0]
				require.NotNil(t, record.DataTypeValue)

				p, _, ms := newProxy(legrandMap())
				defer ms.AssertExpectations(t)

				ms.On("UpdateAttribute", mock.Anything, zigbee.ClusterID(0xfc01), zcl.AttributeID(0x0000), *record.DataTypeValue).Once()
				ms.On("UpdateAttribute", mock.Anything, zigbee.ClusterID(0xfc01), zcl.AttributeID(0x4000), zcl.AttributeDataTypeValue{DataType: zcl.TypeEnum8, Value: tc.expected}).Once()

				p.OnAttributeReport(context.Background(), record.Identifier, *record.DataTypeValue)
			})
		}
	})
}
