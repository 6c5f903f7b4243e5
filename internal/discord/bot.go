// Package discord owns the chat-platform session: gateway connection,
// slash-command registration and interaction dispatch.
package discord

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/bwmarrin/discordgo"

	"github.com/good-yellow-bee/modwatch/internal/commands"
)

// handlerTimeout bounds one slash-command invocation end to end.
const handlerTimeout = 30 * time.Second

// Bot wraps the Discord session and routes /track interactions to the
// command handler. It also implements notifier.ChannelSender.
type Bot struct {
	session *discordgo.Session
	handler *commands.Handler
	verbose bool
}

// New creates a Bot from a bot token. The session is not opened yet.
func New(token string, handler *commands.Handler) (*Bot, error) {
	session, err := discordgo.New("Bot " + token)
	if err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}
	session.Identify.Intents = discordgo.IntentsGuilds

	b := &Bot{session: session, handler: handler}
	session.AddHandler(b.onInteraction)
	return b, nil
}

// SetVerbose enables verbose logging.
func (b *Bot) SetVerbose(v bool) {
	b.verbose = v
}

// Run opens the gateway connection, reconciles the registered slash
// commands, and blocks until ctx is cancelled.
func (b *Bot) Run(ctx context.Context) error {
	if err := b.session.Open(); err != nil {
		return fmt.Errorf("open gateway: %w", err)
	}
	defer b.session.Close()

	log.Printf("[discord] connected as %s", b.session.State.User.Username)

	if err := b.syncCommands(); err != nil {
		return fmt.Errorf("sync commands: %w", err)
	}

	<-ctx.Done()
	log.Printf("[discord] shutting down gateway connection")
	return nil
}

// SendEmbed delivers one embed to one channel. Implements
// notifier.ChannelSender.
func (b *Bot) SendEmbed(ctx context.Context, channelID string, embed *discordgo.MessageEmbed) error {
	_, err := b.session.ChannelMessageSendEmbed(channelID, embed, discordgo.WithContext(ctx))
	return err
}

// onInteraction handles one slash-command event. The reply is deferred
// immediately and the handler runs on its own goroutine so a slow catalog
// fetch never blocks the gateway event loop.
func (b *Bot) onInteraction(s *discordgo.Session, i *discordgo.InteractionCreate) {
	if i.Type != discordgo.InteractionApplicationCommand {
		return
	}
	data := i.ApplicationCommandData()
	if data.Name != commandName {
		return
	}

	in := commands.Interaction{ChannelID: i.ChannelID}
	if i.Member != nil && i.Member.User != nil {
		in.UserID = i.Member.User.ID
	} else if i.User != nil {
		in.UserID = i.User.ID
	}
	in.Command, in.ProjectID = decodeOptions(data)

	b.logf("command %q from channel %s by %s", in.Command, in.ChannelID, in.UserID)

	err := s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseDeferredChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Flags: discordgo.MessageFlagsEphemeral,
		},
	})
	if err != nil {
		log.Printf("[discord] defer reply failed: %v", err)
		return
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), handlerTimeout)
		defer cancel()

		reply := b.handler.Handle(ctx, in)
		if _, err := s.InteractionResponseEdit(i.Interaction, &discordgo.WebhookEdit{
			Content: &reply,
		}); err != nil {
			log.Printf("[discord] edit reply failed: %v", err)
		}
	}()
}

func (b *Bot) logf(format string, args ...any) {
	if b.verbose {
		log.Printf("[discord] "+format, args...)
	}
}
