package jetstream

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/nats-io/nats.go"
	"github.com/sirupsen/logrus"
)

// JetStreamConsumer starts a pull consumer on subj and calls f with every
// batch of up to batch messages, which is never empty. Returning true acks
// the batch and false naks it. The consumer runs until ctx is done.
func JetStreamConsumer(
	ctx context.Context, js nats.JetStreamContext, subj, durable string, batch int,
	f func(ctx context.Context, msgs []*nats.Msg) bool,
	opts ...nats.SubOpt,
) error {
	// With more than one message per batch, acking the last one acks the
	// rest as well.
	if batch > 1 {
		opts = append(opts, nats.AckAll())
	}

	sub, err := js.PullSubscribe(subj, durable+"Pull", opts...)
	if err != nil {
		sentry.CaptureException(err)
		return fmt.Errorf("js.PullSubscribe: %w", err)
	}
	logger := logrus.WithContext(ctx).WithField("subject", subj)
	go func() {
		for {
			select {
			case <-ctx.Done():
				if err := sub.Unsubscribe(); err != nil && !errors.Is(err, nats.ErrConnectionClosed) {
					logger.WithError(err).Warnf("Failed to unsubscribe %q", durable)
				}
				return
			default:
			}
			// NATS enforces its own fetch deadline (roughly 5 seconds) even
			// when we supply a context, so a context error may be either.
			msgs, err := sub.Fetch(batch, nats.Context(ctx))
			switch {
			case err == nil:
			case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded), errors.Is(err, nats.ErrTimeout):
				if ctx.Err() != nil {
					return
				}
				continue
			case errors.Is(err, nats.ErrConnectionClosed), errors.Is(err, nats.ErrBadSubscription):
				return
			default:
				sentry.CaptureException(err)
				logger.WithError(err).Error("Failed to fetch messages")
				select {
				case <-ctx.Done():
				case <-time.After(time.Second):
				}
				continue
			}
			if len(msgs) < 1 {
				continue
			}
			msg := msgs[len(msgs)-1] // most recent message, in case of AckAll
			if err = msg.InProgress(nats.Context(ctx)); err != nil {
				logger.Warn(fmt.Errorf("msg.InProgress: %w", err))
				sentry.CaptureException(err)
				continue
			}
			if f(ctx, msgs) {
				if err = msg.AckSync(nats.Context(ctx)); err != nil {
					logger.Warn(fmt.Errorf("msg.AckSync: %w", err))
					sentry.CaptureException(err)
				}
			} else {
				if err = msg.Nak(nats.Context(ctx)); err != nil {
					logger.Warn(fmt.Errorf("msg.Nak: %w", err))
					sentry.CaptureException(err)
				}
			}
		}
	}()
	return nil
}
