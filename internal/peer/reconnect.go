package peer

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"playmesh/internal/core/domain"
	"playmesh/pkg/retry"
)

// ReconnectController brings a lost signaling transport back. Each
// outage gets a fresh attempt budget: delays follow the backoff
// schedule, a successful dial re-announces the seat via rejoin, and an
// exhausted budget surfaces ErrDisconnected to the session.
type ReconnectController struct {
	transport Transport
	cfg       retry.Config
	sleep     func(ctx context.Context, d time.Duration) error
	logger    *zap.SugaredLogger
}

func NewReconnectController(transport Transport, cfg retry.Config, logger *zap.SugaredLogger) *ReconnectController {
	return &ReconnectController{
		transport: transport,
		cfg:       cfg,
		sleep:     sleepCtx,
		logger:    logger,
	}
}

// Schedule returns the delay sequence one outage walks through.
func (c *ReconnectController) Schedule() []time.Duration {
	return retry.Delays(c.cfg)
}

// Reconnect runs one outage's attempt loop: wait, redial, rejoin. A
// dead room is terminal immediately; anything else retries until the
// budget runs out.
func (c *ReconnectController) Reconnect(ctx context.Context, code domain.RoomCode, seat domain.Seat, token domain.Token) error {
	var lastErr error
	for attempt := 1; attempt <= c.cfg.MaxAttempts; attempt++ {
		delay := retry.Delay(c.cfg, attempt)
		c.logger.Infow("reconnecting",
			"room_code", code,
			"seat", seat,
			"attempt", attempt,
			"delay", delay,
		)
		if c.cfg.OnRetry != nil {
			c.cfg.OnRetry(attempt, delay, lastErr)
		}

		if err := c.sleep(ctx, delay); err != nil {
			return err
		}

		if err := c.transport.Listen(ctx, code, seat, token); err != nil {
			lastErr = err
			continue
		}
		if err := c.transport.Rejoin(ctx, code, seat, token); err != nil {
			if errors.Is(err, domain.ErrRoomNotFound) || errors.Is(err, domain.ErrSeatConflict) {
				// The room died or the seat was reassigned while we were
				// away; no amount of retrying gets it back.
				return fmt.Errorf("%w: %v", domain.ErrDisconnected, err)
			}
			lastErr = err
			continue
		}

		c.logger.Infow("reconnected", "room_code", code, "seat", seat, "attempt", attempt)
		return nil
	}

	return fmt.Errorf("%w: %d attempts exhausted: %v", domain.ErrDisconnected, c.cfg.MaxAttempts, lastErr)
}

// Supervise blocks watching the transport's error channel, running the
// reconnect loop on each outage until the context ends or an outage is
// terminal.
func (c *ReconnectController) Supervise(ctx context.Context, code domain.RoomCode, seat domain.Seat, token domain.Token) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case err := <-c.transport.Errors():
			c.logger.Warnw("transport lost", "room_code", code, "seat", seat, "error", err)
			if err := c.Reconnect(ctx, code, seat, token); err != nil {
				return err
			}
		}
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
