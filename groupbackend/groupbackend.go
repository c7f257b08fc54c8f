// Package groupbackend bridges actor.GroupManager's process-local
// broadcast groups onto an NSQ topic per group, so a group subscriber on
// one node receives messages published to that group on any other node
// in the cluster. Adapted from an NSQ producer/consumer wrapper.
package groupbackend

import (
	"encoding"
	"fmt"
	"sync"

	"github.com/nsqio/go-nsq"

	"github.com/phuhao00/actorcore/actor"
	"github.com/phuhao00/actorcore/config"
	"github.com/phuhao00/actorcore/wire"
)

const topicPrefix = "actorcore.group."

// RemoteMessage is the subset of actor.Message a group can broadcast
// across nodes: it must round-trip through bytes, matching the
// middleman's RemotePayload restriction to primitives-only wire
// encoding rather than arbitrary reflection-based serialization.
type RemoteMessage interface {
	encoding.BinaryMarshaler
}

type factory func() encoding.BinaryUnmarshaler

// Bridge relays a GroupManager's local groups onto NSQ. Each bridged
// group gets its own NSQ topic (topicPrefix + group name) and its own
// channel per bridge instance, so every node hears every publish.
type Bridge struct {
	groups   *actor.GroupManager
	producer *nsq.Producer
	nsqCfg   config.NSQConfig
	channel  string

	mu        sync.Mutex
	consumers map[string]*nsq.Consumer

	typesMu sync.RWMutex
	types   map[string]factory
}

// New connects a producer to the configured NSQD(s), matching the
// teacher's NewProducer fallback-list behavior.
func New(groups *actor.GroupManager, cfg config.NSQConfig, channel string) (*Bridge, error) {
	nsqCfg := nsq.NewConfig()
	var (
		producer *nsq.Producer
		err      error
	)
	switch {
	case len(cfg.NSQDAddresses) > 0:
		for _, addr := range cfg.NSQDAddresses {
			producer, err = nsq.NewProducer(addr, nsqCfg)
			if err == nil {
				break
			}
		}
		if producer == nil {
			return nil, fmt.Errorf("groupbackend: failed to connect to any nsqd in %v", cfg.NSQDAddresses)
		}
	case cfg.NSQDAddr != "":
		producer, err = nsq.NewProducer(cfg.NSQDAddr, nsqCfg)
		if err != nil {
			return nil, fmt.Errorf("groupbackend: connect nsqd %s: %w", cfg.NSQDAddr, err)
		}
	default:
		return nil, fmt.Errorf("groupbackend: no nsqd addresses configured")
	}

	return &Bridge{
		groups:    groups,
		producer:  producer,
		nsqCfg:    cfg,
		channel:   channel,
		consumers: make(map[string]*nsq.Consumer),
		types:     make(map[string]factory),
	}, nil
}

// RegisterType maps a wire type name to a zero-value constructor, so
// relayed bytes can be decoded back into a concrete RemoteMessage
// before being fanned into the local group.
func (b *Bridge) RegisterType(name string, f func() encoding.BinaryUnmarshaler) {
	b.typesMu.Lock()
	b.types[name] = f
	b.typesMu.Unlock()
}

// Join subscribes this node to name's NSQ topic, relaying every inbound
// publish into the local group's Enqueue fan-out, and returns a
// Subscription that also removes the local membership.
func (b *Bridge) Join(name string, addr actor.ActorAddr) (*actor.Subscription, error) {
	topic := topicPrefix + name
	b.mu.Lock()
	if _, ok := b.consumers[name]; !ok {
		c, err := nsq.NewConsumer(topic, b.channel, nsq.NewConfig())
		if err != nil {
			b.mu.Unlock()
			return nil, fmt.Errorf("groupbackend: new consumer for %s: %w", topic, err)
		}
		c.AddHandler(nsq.HandlerFunc(func(msg *nsq.Message) error {
			return b.deliver(name, msg.Body)
		}))
		if err := b.connect(c); err != nil {
			b.mu.Unlock()
			return nil, err
		}
		b.consumers[name] = c
	}
	b.mu.Unlock()

	return b.groups.Subscribe(name, addr), nil
}

func (b *Bridge) connect(c *nsq.Consumer) error {
	if len(b.nsqCfg.NSQLookupdHTTPAddresses) > 0 {
		return c.ConnectToNSQLookupds(b.nsqCfg.NSQLookupdHTTPAddresses)
	}
	if len(b.nsqCfg.NSQDAddresses) > 0 {
		return c.ConnectToNSQD(b.nsqCfg.NSQDAddresses[0])
	}
	return c.ConnectToNSQD(b.nsqCfg.NSQDAddr)
}

// Publish serializes msg under typeName and sends it to name's NSQ
// topic; every node's Join'd consumer, including this one, will
// re-deliver it into the local group.
func (b *Bridge) Publish(name, typeName string, msg RemoteMessage) error {
	body, err := msg.MarshalBinary()
	if err != nil {
		return fmt.Errorf("groupbackend: marshal %s: %w", typeName, err)
	}
	enc := wire.NewEncoder()
	enc.WriteString(typeName)
	enc.WriteBytes(body)
	return b.producer.Publish(topicPrefix+name, enc.Bytes())
}

func (b *Bridge) deliver(name string, raw []byte) error {
	dec := wire.NewDecoder(raw)
	typeName, err := dec.ReadString()
	if err != nil {
		return fmt.Errorf("groupbackend: read type name: %w", err)
	}
	body, err := dec.ReadBytes()
	if err != nil {
		return fmt.Errorf("groupbackend: read body: %w", err)
	}

	b.typesMu.RLock()
	f, ok := b.types[typeName]
	b.typesMu.RUnlock()
	if !ok {
		return fmt.Errorf("groupbackend: unregistered type %q", typeName)
	}
	payload := f()
	if err := payload.UnmarshalBinary(body); err != nil {
		return fmt.Errorf("groupbackend: unmarshal %s: %w", typeName, err)
	}

	b.groups.Get(name).Enqueue(actor.Invalid, actor.Invalid, 0, payload, nil)
	return nil
}

// Close stops the producer and every consumer this bridge created.
func (b *Bridge) Close() {
	b.producer.Stop()
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, c := range b.consumers {
		c.Stop()
	}
}
