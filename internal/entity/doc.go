// Package entity maps OSC addresses onto Home Assistant entities.
//
// This package owns the translation core of the bridge:
//   - Value: the three OSC argument kinds the bridge understands (bool, int32, float32)
//   - Codec: conversion between a Value and the hub's string wire form, plus clamping
//   - Factory: deterministic derivation of an Entity from an address and a sample value
//   - DiscoveryPublisher: the one-time Home Assistant MQTT discovery record
//   - Registry: the shared address ⇄ entity bijection with register-once semantics
//
// # Data Flow
//
//	OSC message ──► Registry.GetOrRegister ──► Encode ──► state topic
//	                     │ first sight only
//	                     └─► Factory.Derive ──► DiscoveryPublisher.Publish
//
//	command topic ──► Registry.FindByCommandTopic ──► DecodeAs ──► Clamp ──► OSC
//
// # Thread Safety
//
// Registry is safe for concurrent use. Codec and Factory functions are pure.
package entity
