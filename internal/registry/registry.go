// Package registry tracks the status message kept for each subscriber.
package registry

import (
	"context"
	"sort"
	"sync"

	"github.com/sweeney/door-monitor/internal/logger"
	"github.com/sweeney/door-monitor/internal/persist"
	"github.com/sweeney/door-monitor/internal/surface"
)

// Target is a subscriber's tracked status message.
type Target struct {
	SubscriberID string
	ChannelID    string
	MessageID    string

	msg surface.Message
}

// Message returns the live message handle.
func (t Target) Message() surface.Message {
	return t.msg
}

// Registry maps subscriber ids to targets. It owns both the live handle and
// the id pair that gets persisted, so the two never diverge.
type Registry struct {
	mu      sync.RWMutex
	targets map[string]Target
}

// New creates an empty registry.
func New() *Registry {
	return &Registry{targets: make(map[string]Target)}
}

// set is the only writer of targets.
func (r *Registry) set(subscriberID string, msg surface.Message) {
	r.targets[subscriberID] = Target{
		SubscriberID: subscriberID,
		ChannelID:    msg.ChannelID(),
		MessageID:    msg.ID(),
		msg:          msg,
	}
}

// Link creates or overwrites the target for subscriberID.
func (r *Registry) Link(subscriberID string, msg surface.Message) {
	r.mu.Lock()
	r.set(subscriberID, msg)
	r.mu.Unlock()
}

// Refresh swaps in the handle returned by an edit of prev. It does nothing if
// the subscriber was relinked to a different message in the meantime.
func (r *Registry) Refresh(subscriberID string, prev, msg surface.Message) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	cur, ok := r.targets[subscriberID]
	if !ok || cur.ChannelID != prev.ChannelID() || cur.MessageID != prev.ID() {
		return false
	}
	r.set(subscriberID, msg)
	return true
}

// IsLinked reports whether subscriberID has a target.
func (r *Registry) IsLinked(subscriberID string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.targets[subscriberID]
	return ok
}

// Get returns the target for subscriberID.
func (r *Registry) Get(subscriberID string) (Target, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.targets[subscriberID]
	return t, ok
}

// Len returns the number of linked subscribers.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.targets)
}

// Targets returns a snapshot ordered by subscriber id.
func (r *Registry) Targets() []Target {
	r.mu.RLock()
	out := make([]Target, 0, len(r.targets))
	for _, t := range r.targets {
		out = append(out, t)
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].SubscriberID < out[j].SubscriberID })
	return out
}

// Records returns the serializable id pairs.
func (r *Registry) Records() map[string]persist.TrackedMessage {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make(map[string]persist.TrackedMessage, len(r.targets))
	for id, t := range r.targets {
		out[id] = persist.TrackedMessage{Channel: t.ChannelID, Message: t.MessageID}
	}
	return out
}

// Rehydrate resolves persisted records against s. Records whose channel or
// message cannot be resolved are dropped; those subscribers must link again.
// It returns the number of targets restored.
func (r *Registry) Rehydrate(ctx context.Context, s surface.Surface, records map[string]persist.TrackedMessage, log *logger.Logger) int {
	restored := 0
	for id, rec := range records {
		ch, err := s.Channel(ctx, rec.Channel)
		if err != nil {
			log.Debugw("dropping tracked target", "subscriber", id, "channel", rec.Channel, "err", err)
			continue
		}
		msg, err := ch.Fetch(ctx, rec.Message)
		if err != nil {
			log.Debugw("dropping tracked target", "subscriber", id, "message", rec.Message, "err", err)
			continue
		}

		r.Link(id, msg)
		restored++
	}
	return restored
}
