package discord

import (
	"fmt"
	"log"

	"github.com/bwmarrin/discordgo"
)

const commandName = "track"

// trackPermissions restricts /track to members who can manage channels.
var trackPermissions int64 = discordgo.PermissionManageChannels

// trackCommand is the /track slash command definition.
var trackCommand = &discordgo.ApplicationCommand{
	Name:                     commandName,
	Description:              "Manage Modrinth project update tracking in this channel",
	DefaultMemberPermissions: &trackPermissions,
	Options: []*discordgo.ApplicationCommandOption{
		{
			Type:        discordgo.ApplicationCommandOptionSubCommand,
			Name:        "add",
			Description: "Track a project in this channel",
			Options: []*discordgo.ApplicationCommandOption{
				projectOption(),
			},
		},
		{
			Type:        discordgo.ApplicationCommandOptionSubCommand,
			Name:        "remove",
			Description: "Stop tracking a project in this channel",
			Options: []*discordgo.ApplicationCommandOption{
				projectOption(),
			},
		},
		{
			Type:        discordgo.ApplicationCommandOptionSubCommand,
			Name:        "removeall",
			Description: "Stop tracking every project in this channel",
		},
		{
			Type:        discordgo.ApplicationCommandOptionSubCommand,
			Name:        "list",
			Description: "Show projects tracked in this channel",
		},
	},
}

func projectOption() *discordgo.ApplicationCommandOption {
	return &discordgo.ApplicationCommandOption{
		Type:        discordgo.ApplicationCommandOptionString,
		Name:        "project",
		Description: "Project id or slug",
		Required:    true,
	}
}

// syncCommands reconciles the application's registered commands with what
// this build defines: /track is uploaded when missing or outdated, and
// remote commands modwatch does not own are deleted.
func (b *Bot) syncCommands() error {
	appID := b.session.State.User.ID

	remote, err := b.session.ApplicationCommands(appID, "")
	if err != nil {
		return fmt.Errorf("list remote commands: %w", err)
	}

	upload := true
	for _, cmd := range remote {
		if cmd.Name == commandName {
			if commandsEqual(trackCommand, cmd) {
				upload = false
				continue
			}
			continue // outdated, will be overwritten below
		}
		if err := b.session.ApplicationCommandDelete(appID, "", cmd.ID); err != nil {
			log.Printf("[discord] delete stale command %q: %v", cmd.Name, err)
			continue
		}
		log.Printf("[discord] deleted stale command %q", cmd.Name)
	}

	if upload {
		if _, err := b.session.ApplicationCommandCreate(appID, "", trackCommand); err != nil {
			return fmt.Errorf("upload /%s: %w", commandName, err)
		}
		log.Printf("[discord] command /%s uploaded", commandName)
	}

	log.Printf("[discord] command /%s registered", commandName)
	return nil
}

// commandsEqual reports whether a locally defined command matches its
// remote registration closely enough to skip re-uploading.
func commandsEqual(local, remote *discordgo.ApplicationCommand) bool {
	if local.Name != remote.Name || local.Description != remote.Description {
		return false
	}
	if len(local.Options) != len(remote.Options) {
		return false
	}
	for i, opt := range local.Options {
		if !optionsEqual(opt, remote.Options[i]) {
			return false
		}
	}
	return true
}

func optionsEqual(local, remote *discordgo.ApplicationCommandOption) bool {
	if local.Type != remote.Type ||
		local.Name != remote.Name ||
		local.Description != remote.Description ||
		local.Required != remote.Required {
		return false
	}
	if len(local.Options) != len(remote.Options) {
		return false
	}
	for i, opt := range local.Options {
		if !optionsEqual(opt, remote.Options[i]) {
			return false
		}
	}
	return true
}

// decodeOptions extracts the subcommand and its project option from an
// interaction payload.
func decodeOptions(data discordgo.ApplicationCommandInteractionData) (subcommand, projectID string) {
	if len(data.Options) == 0 {
		return "", ""
	}
	sub := data.Options[0]
	for _, opt := range sub.Options {
		if opt.Name == "project" && opt.Type == discordgo.ApplicationCommandOptionString {
			projectID = opt.StringValue()
		}
	}
	return sub.Name, projectID
}
