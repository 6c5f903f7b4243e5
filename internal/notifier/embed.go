package notifier

import (
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"

	"github.com/good-yellow-bee/modwatch/internal/catalog"
	"github.com/good-yellow-bee/modwatch/internal/models"
)

// Embed colors per release channel.
const (
	colorRelease = 0x1bd96a
	colorBeta    = 0xffa347
	colorAlpha   = 0xff496e
)

// BuildUpdateEmbed renders one "new version published" message for a
// tracked project. Pure formatting, no side effects.
func BuildUpdateEmbed(project *models.Project, version *catalog.Version) *discordgo.MessageEmbed {
	embed := &discordgo.MessageEmbed{
		Author: &discordgo.MessageEmbedAuthor{
			Name: project.Title,
			URL:  "https://modrinth.com/project/" + project.ID,
		},
		Title:       version.Name,
		Description: "A new file has been released",
		Color:       channelColor(version.VersionType),
		Timestamp:   version.DatePublished.Format(time.RFC3339),
	}
	if embed.Title == "" {
		embed.Title = version.VersionNumber
	}

	embed.Fields = append(embed.Fields, &discordgo.MessageEmbedField{
		Name:   "Release channel",
		Value:  releaseChannel(version.VersionType),
		Inline: true,
	})
	if len(version.Loaders) > 0 {
		embed.Fields = append(embed.Fields, &discordgo.MessageEmbedField{
			Name:   "Loaders",
			Value:  strings.Join(version.Loaders, ", "),
			Inline: true,
		})
	}
	if len(version.GameVersions) > 0 {
		embed.Fields = append(embed.Fields, &discordgo.MessageEmbedField{
			Name:   "Game versions",
			Value:  strings.Join(version.GameVersions, ", "),
			Inline: true,
		})
	}
	if file, ok := version.PrimaryFile(); ok {
		value := fmt.Sprintf("[%s](%s)", file.Filename, file.URL)
		if extra := len(version.Files) - 1; extra > 0 {
			value += fmt.Sprintf(" +%d more files", extra)
		}
		embed.Fields = append(embed.Fields, &discordgo.MessageEmbedField{
			Name:  "File",
			Value: value,
		})
	}

	return embed
}

// releaseChannel maps a version type to its display name.
func releaseChannel(versionType string) string {
	switch versionType {
	case "release":
		return "Release"
	case "beta":
		return "Beta"
	case "alpha":
		return "Alpha"
	default:
		return versionType
	}
}

func channelColor(versionType string) int {
	switch versionType {
	case "beta":
		return colorBeta
	case "alpha":
		return colorAlpha
	default:
		return colorRelease
	}
}
