// Package osc runs the two message pumps that connect an OSC device to a
// Home Assistant MQTT broker.
//
// Ingress A reads OSC messages, registers an entity for every new address
// (publishing its discovery record once) and publishes the first argument
// to the entity's state topic. Ingress B consumes hub commands from the
// discovery namespace, routes them by command topic, clamps the decoded
// value, sends it to the device and echoes the clamped value back as state.
//
// The entity registry is the only state shared by the two pumps.
//
// Failure policy:
//   - A single bad message (no arguments, unsupported type, unparseable
//     payload, kind mismatch, name conflict) is dropped, logged and counted.
//   - A single failed publish or send is logged and the pump continues.
//   - A receive failure on the OSC socket ends Run with ErrTransport.
package osc
