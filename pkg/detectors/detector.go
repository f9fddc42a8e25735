// Package detectors transforms raw adapter payloads into canonical
// hazard records. Each detector implements the same narrow capability
// set so new hazard kinds are additions, not modifications.
package detectors

import (
	"context"
	"time"

	"github.com/afrostorm/hazard-monitor/pkg/adapters"
	"github.com/afrostorm/hazard-monitor/pkg/hazard"
	"github.com/afrostorm/hazard-monitor/pkg/store"
)

// Detector is the per-kind pipeline stage. Fetch performs the network
// I/O and may run concurrently with other detectors' fetches; Detect is
// pure computation over the fetched payload; Persist writes the
// resulting records. Fetched payloads are per-cycle state, valid because
// cycles are strictly serial.
type Detector interface {
	Name() string
	Fetch(ctx context.Context, w adapters.Window) error
	Detect(now time.Time) ([]hazard.Hazard, error)
	Persist(st *store.Store, hazards []hazard.Hazard) error
}

// persistDetections inserts each record in the order produced.
func persistDetections(st *store.Store, hazards []hazard.Hazard) error {
	for _, h := range hazards {
		if _, err := st.InsertDetection(h); err != nil {
			return err
		}
	}
	return nil
}
