// Package api implements the bridge's read-only status HTTP server.
//
// Endpoints:
//   - GET /api/v1/health         component health (MQTT, database, InfluxDB)
//   - GET /api/v1/status         runtime, bridge and database counters
//   - GET /api/v1/entities       registered address → entity mappings
//   - GET /api/v1/entities/{name} one mapping by entity name
//   - GET /api/v1/registrations  registration history from the audit log
//   - GET /metrics               Prometheus exposition
//
// There is no authentication; bind the server to a trusted interface.
package api
