package push

import (
	"context"

	"github.com/rs/zerolog/log"
)

// NoopSender logs deliveries instead of performing them. Used in development
// when no FCM server key is configured.
type NoopSender struct{}

func (NoopSender) Send(ctx context.Context, token string, msg Message) Result {
	log.Debug().
		Str("token", Abbrev(token)).
		Str("title", msg.Title).
		Msg("noop push delivery")
	return Result{Success: true}
}

// Abbrev shortens a device token for logs and error entries. Full tokens are
// both noisy and sensitive enough to keep out of campaign rows.
func Abbrev(token string) string {
	if len(token) <= 12 {
		return token
	}
	return token[:12] + "..."
}

var _ Sender = NoopSender{}
