package influxdb

import (
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"

	"github.com/nerrad567/osc-bridge/internal/entity"
)

// MeasurementState is the measurement holding published state values.
const MeasurementState = "osc_state"

// WriteEntityState queues one state value for address. direction names the
// side the value came from ("osc" or "hub"). Non-blocking; no-op when closed.
func (c *Client) WriteEntityState(address string, e entity.Entity, v entity.Value, direction string) {
	if !c.IsConnected() {
		return
	}
	c.writeAPI.WritePoint(StatePoint(address, e, v, direction, time.Now()))
}

// StatePoint builds the osc_state point for a value. Booleans are stored
// as 0/1 so every entity shares a float field.
func StatePoint(address string, e entity.Entity, v entity.Value, direction string, ts time.Time) *write.Point {
	return write.NewPoint(
		MeasurementState,
		map[string]string{
			"entity":    e.Name,
			"address":   address,
			"direction": direction,
		},
		map[string]interface{}{
			"value": v.Float64(),
		},
		ts,
	)
}
