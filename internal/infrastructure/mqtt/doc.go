// Package mqtt provides the bridge's MQTT connection to Home Assistant.
//
// This package manages:
//   - Connection to the broker with auto-reconnect
//   - Message publishing with QoS guarantees
//   - Topic subscriptions with wildcard support
//   - Bridge availability: retained "online" on connect, "offline" as
//     Last Will and on graceful close
//
// # Architecture
//
//	OSC application ↔ oscbridge ↔ MQTT Broker ↔ Home Assistant
//
// Discovery configs and state go out on {namespace}/{component}/{name}/...;
// commands arrive on .../set through a {namespace}/# subscription.
//
// # Security Considerations
//
//   - Enable TLS (cfg.Broker.TLS=true) when the broker is not on localhost
//   - Supply credentials through OSCBRIDGE_MQTT_USERNAME / OSCBRIDGE_MQTT_PASSWORD
//
// # Usage
//
//	topics := mqtt.Topics{Namespace: "homeassistant", BridgeID: cfg.Bridge.ID}
//	client, err := mqtt.Connect(cfg.MQTT, topics)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Close()
//
//	err = client.Subscribe(topics.Commands(), 1,
//	    func(topic string, payload []byte) error {
//	        log.Printf("command: %s = %s", topic, payload)
//	        return nil
//	    })
package mqtt
