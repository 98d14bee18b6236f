package database

import (
	"context"
	"fmt"
	"time"

	"portfolio-backend/pkg/logger"

	"github.com/lib/pq"
)

const (
	minReconnectInterval = 2 * time.Second
	maxReconnectInterval = time.Minute
	pingInterval         = 90 * time.Second
)

// ChangeListener turns Postgres NOTIFY traffic on one channel into a stream
// of change signals. A reconnect also emits a signal, since notifications
// sent while disconnected are lost.
type ChangeListener struct {
	listener *pq.Listener
	channel  string
	signals  chan struct{}
}

// Listen opens a dedicated connection (pgx pools cannot hold LISTEN state
// across acquisitions) and subscribes to channel.
func Listen(connString, channel string) (*ChangeListener, error) {
	l := &ChangeListener{
		channel: channel,
		signals: make(chan struct{}, 1),
	}
	l.listener = pq.NewListener(connString, minReconnectInterval, maxReconnectInterval, l.onEvent)
	if err := l.listener.Listen(channel); err != nil {
		l.listener.Close()
		return nil, fmt.Errorf("listen %s: %w", channel, err)
	}
	return l, nil
}

func (l *ChangeListener) onEvent(ev pq.ListenerEventType, err error) {
	switch ev {
	case pq.ListenerEventConnectionAttemptFailed, pq.ListenerEventDisconnected:
		logger.Log.Warn("Change listener connection problem", "channel", l.channel, "error", err)
	case pq.ListenerEventReconnected:
		logger.Log.Info("Change listener reconnected", "channel", l.channel)
		l.signal()
	}
}

func (l *ChangeListener) signal() {
	select {
	case l.signals <- struct{}{}:
	default:
	}
}

// Run forwards notifications into Signals until ctx is done. Bursts are
// coalesced into one pending signal.
func (l *ChangeListener) Run(ctx context.Context) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case n := <-l.listener.Notify:
			// nil after a reconnect; onEvent already signalled.
			if n != nil {
				l.signal()
			}
		case <-ticker.C:
			go func() {
				if err := l.listener.Ping(); err != nil {
					logger.Log.Warn("Change listener ping failed", "channel", l.channel, "error", err)
				}
			}()
		}
	}
}

func (l *ChangeListener) Signals() <-chan struct{} {
	return l.signals
}

func (l *ChangeListener) Close() error {
	return l.listener.Close()
}
