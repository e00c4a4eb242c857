package relay

import (
	"context"
	"errors"
	"fmt"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	rstream "github.com/ThreeDotsLabs/watermill-redisstream/pkg/redisstream"
	"github.com/redis/go-redis/v9"
	"github.com/sandevgo/verve/pkg/log"
	"github.com/sandevgo/verve/pkg/retry"
)

type RedisConfig struct {
	Addr     string
	Group    string
	Consumer string
}

// Backend is a publisher and subscriber pair sharing one transport.
type Backend struct {
	Publisher  message.Publisher
	Subscriber message.Subscriber
	Name       string

	// subscriberFor builds a subscriber reading in its own consumer group.
	subscriberFor func(group string) (message.Subscriber, error)
	closers       []func() error
}

// NewGoChannel builds the in-process backend.
func NewGoChannel(ctx context.Context) *Backend {
	logger := log.NewWatermillLoggerFromCtx(ctx)
	ch := gochannel.NewGoChannel(gochannel.Config{OutputChannelBuffer: 256}, logger)
	b := &Backend{
		Publisher:  ch,
		Subscriber: ch,
		Name:       "gochannel",
		closers:    []func() error{ch.Close},
	}
	b.subscriberFor = func(string) (message.Subscriber, error) {
		return ch, nil
	}
	return b
}

// NewRedisStream builds the Redis Streams backend once the server answers.
func NewRedisStream(ctx context.Context, cfg RedisConfig) (*Backend, error) {
	client := redis.NewClient(&redis.Options{Addr: cfg.Addr})

	err := retry.NewDefaultRetrier().Do(ctx, func() error {
		return client.Ping(ctx).Err()
	})
	if err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("connect redis %s: %w", cfg.Addr, err)
	}

	logger := log.NewWatermillLoggerFromCtx(ctx)
	marshaler := rstream.DefaultMarshallerUnmarshaller{}

	pub, err := rstream.NewPublisher(rstream.PublisherConfig{
		Client:     client,
		Marshaller: marshaler,
	}, logger)
	if err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("create redis publisher: %w", err)
	}

	sub, err := rstream.NewSubscriber(rstream.SubscriberConfig{
		Client:        client,
		Unmarshaller:  marshaler,
		ConsumerGroup: cfg.Group,
		Consumer:      cfg.Consumer,
	}, logger)
	if err != nil {
		_ = pub.Close()
		_ = client.Close()
		return nil, fmt.Errorf("create redis subscriber: %w", err)
	}

	b := &Backend{
		Publisher:  pub,
		Subscriber: sub,
		Name:       "redisstream",
		closers:    []func() error{sub.Close, pub.Close},
	}
	b.subscriberFor = func(group string) (message.Subscriber, error) {
		s, err := rstream.NewSubscriber(rstream.SubscriberConfig{
			Client:        client,
			Unmarshaller:  marshaler,
			ConsumerGroup: group,
			Consumer:      cfg.Consumer,
		}, logger)
		if err != nil {
			return nil, err
		}
		b.closers = append([]func() error{s.Close}, b.closers...)
		return s, nil
	}
	b.closers = append(b.closers, client.Close)

	log.FromCtx(ctx).Info().Str("addr", cfg.Addr).Str("group", cfg.Group).Msg("relay connected to redis streams")
	return b, nil
}

// SubscriberFor returns a subscriber that sees every event regardless of the
// other consumers of the topic.
func (b *Backend) SubscriberFor(group string) (message.Subscriber, error) {
	s, err := b.subscriberFor(group)
	if err != nil {
		return nil, fmt.Errorf("create subscriber for %s: %w", group, err)
	}
	return s, nil
}

func (b *Backend) Close() error {
	var errs []error
	for _, c := range b.closers {
		if err := c(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
