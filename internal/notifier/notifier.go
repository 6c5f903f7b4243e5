// Package notifier formats and delivers project update messages to
// Discord channels.
package notifier

import (
	"context"
	"log"
	"time"

	"github.com/bwmarrin/discordgo"
	"golang.org/x/time/rate"

	"github.com/good-yellow-bee/modwatch/internal/catalog"
	"github.com/good-yellow-bee/modwatch/internal/metrics"
	"github.com/good-yellow-bee/modwatch/internal/models"
)

// DefaultSendDelay paces outbound channel messages to stay under the
// chat platform's rate limits.
const DefaultSendDelay = 200 * time.Millisecond

// ChannelSender delivers one embed to one channel. Implemented by the
// Discord session; mocked in tests.
type ChannelSender interface {
	SendEmbed(ctx context.Context, channelID string, embed *discordgo.MessageEmbed) error
}

// Notifier fans an update embed out to a set of channels, pacing sends
// and logging per-channel failures without aborting the fan-out.
type Notifier struct {
	sender  ChannelSender
	pacer   *rate.Limiter
	verbose bool
}

// New creates a Notifier. A zero sendDelay falls back to DefaultSendDelay.
func New(sender ChannelSender, sendDelay time.Duration) *Notifier {
	if sendDelay <= 0 {
		sendDelay = DefaultSendDelay
	}
	return &Notifier{
		sender: sender,
		pacer:  rate.NewLimiter(rate.Every(sendDelay), 1),
	}
}

// SetVerbose enables verbose logging.
func (n *Notifier) SetVerbose(v bool) {
	n.verbose = v
}

// NotifyChannels sends the embed to every channel in order and returns the
// number of successful deliveries. A failed send is logged and skipped;
// only context cancellation stops the fan-out early.
func (n *Notifier) NotifyChannels(ctx context.Context, channels []string, embed *discordgo.MessageEmbed) (int, error) {
	delivered := 0
	for _, channelID := range channels {
		if err := n.pacer.Wait(ctx); err != nil {
			return delivered, err
		}

		if err := n.sender.SendEmbed(ctx, channelID, embed); err != nil {
			metrics.NotificationErrors.Inc()
			log.Printf("[notifier] send to channel %s failed: %v", channelID, err)
			continue
		}

		metrics.NotificationsSent.Inc()
		delivered++
		n.logf("delivered update to channel %s", channelID)
	}
	return delivered, nil
}

// NotifyUpdate formats the update embed for one new version and fans it
// out to the subscribed channels. This is the entry point the tracker uses.
func (n *Notifier) NotifyUpdate(ctx context.Context, project *models.Project, version *catalog.Version, channels []string) error {
	embed := BuildUpdateEmbed(project, version)
	_, err := n.NotifyChannels(ctx, channels, embed)
	return err
}

func (n *Notifier) logf(format string, args ...any) {
	if n.verbose {
		log.Printf("[notifier] "+format, args...)
	}
}
