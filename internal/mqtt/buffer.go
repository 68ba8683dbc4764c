package mqtt

import "github.com/sweeney/door-monitor/internal/logger"

// pendingPublish is a retained publish made while the broker was unreachable.
type pendingPublish struct {
	topic   string
	payload []byte
}

// pending holds the latest retained payload per topic until the broker is
// reachable again. Only the newest document on a topic matters to a reader of
// retained messages, so a later publish replaces an earlier one in place.
// When more than capacity topics are waiting, the topic queued longest ago is
// dropped. Not safe for concurrent use.
type pending struct {
	capacity int
	order    []string
	payloads map[string][]byte
	dropped  int
	log      *logger.Logger
}

func newPending(capacity int, log *logger.Logger) *pending {
	return &pending{
		capacity: capacity,
		payloads: make(map[string][]byte, capacity),
		log:      log,
	}
}

func (p *pending) put(topic string, payload []byte) {
	if _, ok := p.payloads[topic]; ok {
		p.payloads[topic] = payload
		return
	}
	if len(p.order) == p.capacity {
		oldest := p.order[0]
		p.order = p.order[1:]
		delete(p.payloads, oldest)
		if p.dropped == 0 {
			p.log.Warnw("publish buffer full, dropping oldest", "capacity", p.capacity, "topic", oldest)
		}
		p.dropped++
	}
	p.order = append(p.order, topic)
	p.payloads[topic] = payload
}

// take empties the buffer and returns its contents in first-queued order.
func (p *pending) take() []pendingPublish {
	if len(p.order) == 0 {
		return nil
	}

	out := make([]pendingPublish, 0, len(p.order))
	for _, topic := range p.order {
		out = append(out, pendingPublish{topic: topic, payload: p.payloads[topic]})
	}
	if p.dropped > 0 {
		p.log.Infow("buffered publishes were dropped while disconnected", "dropped", p.dropped)
	}

	p.order = nil
	p.payloads = make(map[string][]byte, p.capacity)
	p.dropped = 0
	return out
}

func (p *pending) len() int {
	return len(p.order)
}
