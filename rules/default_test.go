package rules

import (
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"testing"
)

func TestDefault(t *testing.T) {
	t.Run("default rules can be loaded and pass compilation", func(t *testing.T) {
		e, err := Default()
		require.NoError(t, err)

		assert.Contains(t, e.RuleSets, "legrand")
		assert.NotEmpty(t, e.Rules)
	})

	t.Run("a Legrand cable outlet selects the wire pilot quirk", func(t *testing.T) {
		e, err := Default()
		require.NoError(t, err)

		o, err := e.Execute(Input{
			Product:  InputProductData{Manufacturer: " Legrand", Name: " Cable outlet"},
			Node:     InputNode{ManufacturerCode: 0x1021},
			Endpoint: InputEndpoint{ID: 1, ProfileID: 0x0104, InClusters: []uint16{0x0000, 0x0006, 0xfc01, 0xfc40}},
		})
		require.NoError(t, err)

		assert.Equal(t, []string{"legrand/wire_pilot"}, o.Quirks)
	})

	t.Run("other devices select nothing", func(t *testing.T) {
		e, err := Default()
		require.NoError(t, err)

		o, err := e.Execute(Input{Product: InputProductData{Manufacturer: "IKEA of Sweden", Name: "TRADFRI bulb"}})
		require.NoError(t, err)

		assert.Empty(t, o.Quirks)
	})
}
