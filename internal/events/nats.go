package events

import (
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/justyntemme/filetree/internal/debug"
)

// NATSPublisher publishes root changes as JSON on a NATS subject.
type NATSPublisher struct {
	nc      *nats.Conn
	subject string
}

// NewNATSPublisher connects to natsURL. Publishing is fire-and-forget; the
// connection keeps retrying in the background.
func NewNATSPublisher(natsURL, subject string) (*NATSPublisher, error) {
	nc, err := nats.Connect(natsURL,
		nats.Name("filetree"),
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}
	if subject == "" {
		subject = "filetree.root"
	}
	return &NATSPublisher{nc: nc, subject: subject}, nil
}

// Subject returns the subject events are published on.
func (p *NATSPublisher) Subject() string { return p.subject }

func (p *NATSPublisher) RootChanged(ev RootEvent) {
	data, err := json.Marshal(ev)
	if err != nil {
		log.Printf("events: marshal root event: %v", err)
		return
	}
	if err := p.nc.Publish(p.subject, data); err != nil {
		log.Printf("events: publish to %s: %v", p.subject, err)
		return
	}
	debug.Log(debug.EVENT, "NATS: published root=%q on %s", ev.Root, p.subject)
}

// Close flushes pending messages and closes the connection.
func (p *NATSPublisher) Close() {
	if err := p.nc.FlushTimeout(2 * time.Second); err != nil {
		debug.Log(debug.EVENT, "NATS: flush on close: %v", err)
	}
	p.nc.Close()
}
