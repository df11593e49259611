package signal

import (
	"context"
	"time"

	"tvcast/receiver/internal/domain"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

// ReconnectPolicy decides what Run does when the control socket is lost.
// The zero value never reconnects.
type ReconnectPolicy struct {
	// Delay between attempts. Zero disables reconnection.
	Delay time.Duration
	// MaxAttempts bounds consecutive failed dials. Zero means unlimited.
	MaxAttempts int
}

func (p ReconnectPolicy) enabled() bool { return p.Delay > 0 }

// Run connects and keeps the channel up according to policy until ctx is
// done or the client is closed. With reconnection disabled a failed first
// dial is returned, and a dropped connection is left down until ctx ends.
func (c *Client) Run(ctx context.Context, policy ReconnectPolicy) error {
	failures := 0
	for {
		err := c.Connect(ctx)
		switch {
		case err == nil:
			failures = 0
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-c.Disconnected():
			}
			if !policy.enabled() {
				log.Warn().Str("module", "signal").Msg("control channel down, reconnect disabled")
				<-ctx.Done()
				return ctx.Err()
			}

		case errors.Is(err, domain.ErrChannelClosed):
			return err

		case !policy.enabled():
			return err

		default:
			failures++
			if policy.MaxAttempts > 0 && failures >= policy.MaxAttempts {
				return errors.Wrapf(err, "giving up after %d attempts", failures)
			}
		}

		log.Info().Str("module", "signal").Dur("delay", policy.Delay).Int("failures", failures).Msg("reconnecting")
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(policy.Delay):
		}
	}
}
