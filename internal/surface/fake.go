package surface

import (
	"context"
	"fmt"
	"sync"
)

// Fake is an in-memory Surface that records every send and edit.
type Fake struct {
	mu       sync.Mutex
	channels map[string]bool
	messages map[string]*FakeRecord
	seq      int

	// SendErr, if set, is returned by Send.
	SendErr error
	// EditErr, if set, is returned by Edit.
	EditErr error
}

// FakeRecord is the history of one message: the sent display followed by edits.
type FakeRecord struct {
	Channel  string
	ID       string
	Displays []Display
}

// Last returns the most recent display.
func (r FakeRecord) Last() Display {
	return r.Displays[len(r.Displays)-1]
}

// NewFake creates a Fake with the given channels.
func NewFake(channels ...string) *Fake {
	f := &Fake{
		channels: make(map[string]bool),
		messages: make(map[string]*FakeRecord),
	}
	for _, c := range channels {
		f.channels[c] = true
	}
	return f
}

// AddChannel makes id resolvable.
func (f *Fake) AddChannel(id string) {
	f.mu.Lock()
	f.channels[id] = true
	f.mu.Unlock()
}

// RemoveChannel makes id unresolvable.
func (f *Fake) RemoveChannel(id string) {
	f.mu.Lock()
	delete(f.channels, id)
	f.mu.Unlock()
}

// DeleteMessage removes a message so Fetch no longer finds it.
func (f *Fake) DeleteMessage(channel, id string) {
	f.mu.Lock()
	delete(f.messages, key(channel, id))
	f.mu.Unlock()
}

// Record returns a copy of a message's history.
func (f *Fake) Record(channel, id string) (FakeRecord, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.messages[key(channel, id)]
	if !ok {
		return FakeRecord{}, false
	}
	cp := *r
	cp.Displays = append([]Display(nil), r.Displays...)
	return cp, true
}

// Sent returns how many messages were created.
func (f *Fake) Sent() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.seq
}

// Channel resolves id.
func (f *Fake) Channel(_ context.Context, id string) (Channel, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.channels[id] {
		return nil, fmt.Errorf("channel %q: %w", id, ErrNotFound)
	}
	return &fakeChannel{f: f, id: id}, nil
}

func key(channel, id string) string {
	return channel + "/" + id
}

type fakeChannel struct {
	f  *Fake
	id string
}

func (c *fakeChannel) ID() string { return c.id }

func (c *fakeChannel) Send(_ context.Context, d Display) (Message, error) {
	c.f.mu.Lock()
	defer c.f.mu.Unlock()
	if c.f.SendErr != nil {
		return nil, c.f.SendErr
	}
	c.f.seq++
	id := fmt.Sprintf("m%d", c.f.seq)
	c.f.messages[key(c.id, id)] = &FakeRecord{Channel: c.id, ID: id, Displays: []Display{d}}
	return &fakeMessage{f: c.f, channel: c.id, id: id}, nil
}

func (c *fakeChannel) Fetch(_ context.Context, messageID string) (Message, error) {
	c.f.mu.Lock()
	defer c.f.mu.Unlock()
	if _, ok := c.f.messages[key(c.id, messageID)]; !ok {
		return nil, fmt.Errorf("message %q: %w", messageID, ErrNotFound)
	}
	return &fakeMessage{f: c.f, channel: c.id, id: messageID}, nil
}

type fakeMessage struct {
	f       *Fake
	channel string
	id      string
}

func (m *fakeMessage) ID() string        { return m.id }
func (m *fakeMessage) ChannelID() string { return m.channel }

func (m *fakeMessage) Edit(_ context.Context, d Display) (Message, error) {
	m.f.mu.Lock()
	defer m.f.mu.Unlock()
	if m.f.EditErr != nil {
		return nil, m.f.EditErr
	}
	r, ok := m.f.messages[key(m.channel, m.id)]
	if !ok {
		return nil, fmt.Errorf("message %q: %w", m.id, ErrNotFound)
	}
	r.Displays = append(r.Displays, d)
	return m, nil
}
