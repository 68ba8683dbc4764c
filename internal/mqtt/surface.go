package mqtt

import (
	"context"
	"fmt"
	"sync"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"

	"github.com/sweeney/door-monitor/internal/logger"
	"github.com/sweeney/door-monitor/internal/surface"
)

const (
	// BufferCapacity bounds the topics held while disconnected.
	BufferCapacity = 100

	connectTimeout = 10 * time.Second
	publishTimeout = 5 * time.Second
	fetchTimeout   = 3 * time.Second

	// QoS 1 so edits survive a flaky link.
	qos = 1
)

// client is the subset of paho.Client the surface uses.
type client interface {
	IsConnected() bool
	Publish(topic string, qos byte, retained bool, payload interface{}) paho.Token
	Subscribe(topic string, qos byte, callback paho.MessageHandler) paho.Token
	Unsubscribe(topics ...string) paho.Token
	Disconnect(quiesce uint)
}

// Surface is a surface.Surface backed by an MQTT broker.
type Surface struct {
	client       client
	prefix       string
	log          *logger.Logger
	fetchTimeout time.Duration

	mu  sync.Mutex
	buf *pending
}

var _ surface.Surface = (*Surface)(nil)

func newSurface(c client, prefix string, log *logger.Logger) *Surface {
	if prefix == "" {
		prefix = DefaultTopicPrefix
	}
	return &Surface{
		client:       c,
		prefix:       prefix,
		log:          log,
		fetchTimeout: fetchTimeout,
		buf:          newPending(BufferCapacity, log),
	}
}

// NewSurface connects to broker. An unreachable broker is not fatal: the
// client keeps retrying and publishes are buffered until it connects.
func NewSurface(broker, prefix, clientID string, log *logger.Logger) (*Surface, error) {
	s := newSurface(nil, prefix, log)

	opts := paho.NewClientOptions().
		AddBroker(broker).
		SetClientID(clientID).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(5 * time.Second).
		SetOnConnectHandler(func(paho.Client) { s.drain() }).
		SetConnectionLostHandler(func(_ paho.Client, err error) {
			log.Warnw("broker connection lost", "broker", broker, "err", err)
		})

	c := paho.NewClient(opts)
	s.client = c

	token := c.Connect()
	if !token.WaitTimeout(connectTimeout) {
		log.Warnw("broker not reachable yet, buffering publishes", "broker", broker)
		return s, nil
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("connect to broker: %w", err)
	}
	return s, nil
}

// IsConnected reports whether the broker connection is up.
func (s *Surface) IsConnected() bool {
	return s.client.IsConnected()
}

// Buffered returns the number of publishes waiting for a connection.
func (s *Surface) Buffered() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.buf.len()
}

// Close disconnects from the broker.
func (s *Surface) Close() error {
	s.client.Disconnect(1000)
	return nil
}

// Channel returns the channel for id. Any well-formed topic segment resolves.
func (s *Surface) Channel(_ context.Context, id string) (surface.Channel, error) {
	if !validChannelID(id) {
		return nil, fmt.Errorf("%w: channel %q", surface.ErrNotFound, id)
	}
	return &channel{s: s, id: id}, nil
}

func (s *Surface) publish(topic string, payload []byte) error {
	// The check and the put share the lock with drain, so a reconnect
	// either sees this payload buffered or publishes it directly.
	s.mu.Lock()
	if !s.client.IsConnected() {
		s.buf.put(topic, payload)
		s.mu.Unlock()
		return nil
	}
	s.mu.Unlock()

	token := s.client.Publish(topic, qos, true, payload)
	if !token.WaitTimeout(publishTimeout) {
		return fmt.Errorf("publish timeout")
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("publish: %w", err)
	}
	return nil
}

func (s *Surface) drain() {
	s.mu.Lock()
	msgs := s.buf.take()
	s.mu.Unlock()

	if len(msgs) == 0 {
		return
	}
	s.log.Infow("broker connected, replaying buffered publishes", "count", len(msgs))
	for _, m := range msgs {
		token := s.client.Publish(m.topic, qos, true, m.payload)
		if !token.WaitTimeout(publishTimeout) || token.Error() != nil {
			s.log.Warnw("replay publish failed", "topic", m.topic, "err", token.Error())
		}
	}
}

func (s *Surface) retained(ctx context.Context, topic string) ([]byte, error) {
	if !s.client.IsConnected() {
		return nil, fmt.Errorf("broker not connected")
	}

	got := make(chan []byte, 1)
	token := s.client.Subscribe(topic, qos, func(_ paho.Client, m paho.Message) {
		select {
		case got <- m.Payload():
		default:
		}
	})
	if !token.WaitTimeout(publishTimeout) {
		return nil, fmt.Errorf("subscribe timeout")
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("subscribe: %w", err)
	}
	defer s.client.Unsubscribe(topic)

	timer := time.NewTimer(s.fetchTimeout)
	defer timer.Stop()

	select {
	case b := <-got:
		return b, nil
	case <-timer.C:
		return nil, fmt.Errorf("%w: no retained message on %s", surface.ErrNotFound, topic)
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

type channel struct {
	s  *Surface
	id string
}

func (c *channel) ID() string { return c.id }

func (c *channel) topic() string { return Topic(c.s.prefix, c.id) }

func (c *channel) Send(_ context.Context, d surface.Display) (surface.Message, error) {
	m := &message{ch: c, id: uuid.NewString()}
	if err := m.publish(d); err != nil {
		return nil, err
	}
	return m, nil
}

// Fetch succeeds only if the retained document on the topic carries
// messageID. A newer Send from another link replaces it.
func (c *channel) Fetch(ctx context.Context, messageID string) (surface.Message, error) {
	b, err := c.s.retained(ctx, c.topic())
	if err != nil {
		return nil, err
	}
	p, err := ParsePayload(b)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", surface.ErrNotFound, err)
	}
	if p.Status.MessageID != messageID {
		return nil, fmt.Errorf("%w: message %s", surface.ErrNotFound, messageID)
	}
	return &message{ch: c, id: messageID}, nil
}

type message struct {
	ch *channel
	id string
}

func (m *message) ID() string        { return m.id }
func (m *message) ChannelID() string { return m.ch.id }

func (m *message) Edit(_ context.Context, d surface.Display) (surface.Message, error) {
	if err := m.publish(d); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *message) publish(d surface.Display) error {
	payload, err := FormatPayload(m.id, d)
	if err != nil {
		return fmt.Errorf("format payload: %w", err)
	}
	return m.ch.s.publish(m.ch.topic(), payload)
}
