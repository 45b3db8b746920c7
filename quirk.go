package zquirk

import (
	"errors"
	"fmt"
	"github.com/shimmeringbee/zigbee"
	"github.com/shimmeringbee/zquirk/attribute"
	"time"
)

var ErrInvalidQuirk = errors.New("invalid quirk")

// Quirk is a named set of cluster translations applied together to a device.
type Quirk struct {
	Name     string
	Clusters []*attribute.Map
	// PollInterval, if set, polls every device attribute of each cluster in addition to listening for reports.
	PollInterval time.Duration
}

func (q Quirk) validate() error {
	if q.Name == "" {
		return fmt.Errorf("%w: missing name", ErrInvalidQuirk)
	}

	if len(q.Clusters) == 0 {
		return fmt.Errorf("%w: %s: no clusters", ErrInvalidQuirk, q.Name)
	}

	seen := map[zigbee.ClusterID]bool{}

	for _, m := range q.Clusters {
		if m == nil {
			return fmt.Errorf("%w: %s: nil cluster", ErrInvalidQuirk, q.Name)
		}

		if seen[m.ClusterID()] {
			return fmt.Errorf("%w: %s: cluster 0x%04x declared twice", ErrInvalidQuirk, q.Name, m.ClusterID())
		}

		seen[m.ClusterID()] = true
	}

	return nil
}

// Cluster returns the translation of the cluster id provided.
func (q Quirk) Cluster(id zigbee.ClusterID) (*attribute.Map, bool) {
	for _, m := range q.Clusters {
		if m.ClusterID() == id {
			return m, true
		}
	}

	return nil, false
}
