// Package cluster coordinates several shopdesk instances over NATS.
package cluster

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
)

type Options struct {
	URL      string
	User     string
	Password string
	Name     string
	Attempts int
	Wait     time.Duration
}

// Connect dials NATS with retry and opens a JetStream context.
func Connect(ctx context.Context, o Options) (*nats.Conn, jetstream.JetStream, error) {
	if o.Attempts <= 0 {
		o.Attempts = 30
	}
	if o.Wait <= 0 {
		o.Wait = 2 * time.Second
	}
	opts := []nats.Option{
		nats.Name(o.Name),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(o.Wait),
	}
	if o.User != "" {
		opts = append(opts, nats.UserInfo(o.User, o.Password))
	}

	var (
		nc  *nats.Conn
		err error
	)
	for attempt := 1; attempt <= o.Attempts; attempt++ {
		nc, err = nats.Connect(o.URL, opts...)
		if err == nil {
			break
		}
		slog.Info("Waiting for NATS", "attempt", attempt, "error", err)
		select {
		case <-ctx.Done():
			return nil, nil, ctx.Err()
		case <-time.After(o.Wait):
		}
	}
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}
	slog.Info("Connected to NATS", "url", nc.ConnectedUrl())

	js, err := jetstream.New(nc)
	if err != nil {
		nc.Close()
		return nil, nil, fmt.Errorf("failed to create JetStream context: %w", err)
	}
	return nc, js, nil
}
