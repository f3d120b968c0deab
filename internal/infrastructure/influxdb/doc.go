// Package influxdb records the bridge's state history in InfluxDB.
//
// Every state value the bridge publishes to the hub, from either direction,
// can be mirrored as an osc_state point:
//
//	osc_state,address=/p/x,direction=osc,entity=OscX value=1
//
// Writes go through the non-blocking batched write API of
// influxdb-client-go v2; failures surface asynchronously through the
// callback set with SetOnError. The sink is optional and disabled by default.
package influxdb
