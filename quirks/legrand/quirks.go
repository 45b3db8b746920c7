package legrand

import (
	"github.com/shimmeringbee/zquirk"
	"github.com/shimmeringbee/zquirk/attribute"
)

const (
	WirePilotQuirk   = "legrand/wire_pilot"
	CableOutletQuirk = "legrand/cable_outlet"
	PilotWireQuirk   = "legrand/pilot_wire"
)

// Quirks returns every Legrand quirk. The wire pilot and cable outlet quirks describe the same product, the rules
// select the wire pilot one by default.
func Quirks() []zquirk.Quirk {
	return []zquirk.Quirk{
		{Name: WirePilotQuirk, Clusters: []*attribute.Map{Cluster(), WirePilotCluster()}},
		{Name: CableOutletQuirk, Clusters: []*attribute.Map{PlainCluster(), CableOutletCluster()}},
		{Name: PilotWireQuirk, Clusters: []*attribute.Map{Cluster(), PilotWireCluster()}},
	}
}

// Register adds every Legrand quirk to the registry.
func Register(r *zquirk.Registry) error {
	for _, q := range Quirks() {
		if err := r.Register(q); err != nil {
			return err
		}
	}

	return nil
}
