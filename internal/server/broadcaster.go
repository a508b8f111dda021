package server

import (
	"log"

	"github.com/pawhaven/pawchat/internal/stats"
)

// Broadcaster fans an event out to every connection registered for a
// scope at call time. Delivery is send-and-forget per connection: a full
// or closed target is skipped and never aborts delivery to the rest.
type Broadcaster struct {
	log      *log.Logger
	registry *Registry
	stats    stats.StatsProvider
}

func NewBroadcaster(logger *log.Logger, registry *Registry, su stats.StatsProvider) *Broadcaster {
	su.RegisterMetric("BroadcastsDelivered")
	su.RegisterMetric("EventsDropped")

	return &Broadcaster{
		log:      logger,
		registry: registry,
		stats:    su,
	}
}

func (b *Broadcaster) Broadcast(scopeKey string, event *ServerEvent) {
	clients := b.registry.ConnectionsFor(scopeKey)
	b.log.Printf("broadcasting %q to %d connections in %q", event.Event, len(clients), scopeKey)

	for _, c := range clients {
		if c.queueEvent(event) {
			b.stats.Incr("BroadcastsDelivered")
		} else {
			b.stats.Incr("EventsDropped")
		}
	}
}
