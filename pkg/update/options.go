package update

import (
	"time"

	"github.com/rs/zerolog"
)

// GatewayOption configures a gateway.
type GatewayOption func(*gatewayConfig)

type gatewayConfig struct {
	log zerolog.Logger
	now func() time.Time
}

func newGatewayConfig(opts []GatewayOption) gatewayConfig {
	cfg := gatewayConfig{log: zerolog.Nop(), now: time.Now}
	for _, o := range opts {
		o(&cfg)
	}
	return cfg
}

// WithLogger sets the logger used for diagnostics.
func WithLogger(l zerolog.Logger) GatewayOption {
	return func(c *gatewayConfig) { c.log = l }
}

// WithClock overrides the clock used to stamp StoreUpdateInfo.FetchedAt.
func WithClock(now func() time.Time) GatewayOption {
	return func(c *gatewayConfig) {
		if now != nil {
			c.now = now
		}
	}
}
