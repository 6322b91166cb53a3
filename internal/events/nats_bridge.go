package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/nats-io/nats.go"

	"git.home.luguber.info/inful/bakery/internal/logfields"
)

// NATSBridge forwards terminal run outcomes to a NATS subject so external
// systems (chat notifiers, audit pipelines) can observe publishes without
// polling the panel API.
type NATSBridge struct {
	conn    *nats.Conn
	subject string
	unsub   func()
}

// NewNATSBridge connects to NATS and subscribes to RunFinished events on the
// bus. Call Stop to detach and close the connection.
func NewNATSBridge(bus *Bus, url, subject string) (*NATSBridge, error) {
	if url == "" {
		return nil, fmt.Errorf("nats url is required")
	}
	conn, err := nats.Connect(url, nats.Name("bakery-panel"))
	if err != nil {
		return nil, fmt.Errorf("connect to NATS: %w", err)
	}

	ch, unsub := Subscribe[RunFinished](bus, 16)
	b := &NATSBridge{conn: conn, subject: subject, unsub: unsub}
	go b.forward(ch)

	slog.Info("NATS outcome bridge started", "subject", subject)
	return b, nil
}

func (b *NATSBridge) forward(ch <-chan RunFinished) {
	for evt := range ch {
		payload, err := json.Marshal(evt)
		if err != nil {
			slog.Error("Failed to marshal run outcome", logfields.RunID(evt.RunID), logfields.Error(err))
			continue
		}
		if err := b.conn.Publish(b.subject, payload); err != nil {
			slog.Error("Failed to publish run outcome to NATS",
				logfields.RunID(evt.RunID), logfields.Error(err))
		}
	}
}

// Stop detaches from the bus and drains the NATS connection.
func (b *NATSBridge) Stop(ctx context.Context) {
	b.unsub()
	if err := b.conn.Drain(); err != nil {
		slog.Warn("NATS drain failed", logfields.Error(err))
	}
}
