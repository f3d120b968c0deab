// Package osc provides the UDP transport for Open Sound Control messages.
//
// A Listener receives packets on the configured listen address and hands
// back the messages they contain (bundles are flattened, depth first). A
// Sender encodes single messages and sends them to the target application.
// Both are built on github.com/hypebeast/go-osc.
//
// Receive errors come in two kinds:
//   - ErrMalformedPacket: one datagram could not be parsed. Drop it and keep reading.
//   - ErrReceiveFailed: the socket itself failed. The listener is unusable.
//
// Usage:
//
//	l, err := osc.Listen(cfg.OSC)
//	if err != nil {
//	    return err
//	}
//	defer l.Close()
//
//	for {
//	    msgs, err := l.Receive(ctx)
//	    if errors.Is(err, osc.ErrMalformedPacket) {
//	        continue
//	    }
//	    if err != nil {
//	        return err
//	    }
//	    for _, m := range msgs {
//	        handle(m)
//	    }
//	}
package osc
