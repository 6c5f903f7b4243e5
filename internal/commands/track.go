// Package commands implements the /track slash-command handlers.
package commands

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/good-yellow-bee/modwatch/internal/catalog"
	"github.com/good-yellow-bee/modwatch/internal/metrics"
	"github.com/good-yellow-bee/modwatch/internal/models"
	"github.com/good-yellow-bee/modwatch/internal/storage"
)

// replyIssue is the generic user-facing reply for internal failures.
// Handlers never surface raw errors and never crash the process.
const replyIssue = "Something went wrong, try again later."

// Interaction is a decoded /track invocation, decoupled from the chat
// platform's event types.
type Interaction struct {
	ChannelID string
	UserID    string
	Command   string // add, remove, removeall, list
	ProjectID string // id or slug, empty for removeall/list
}

// Handler resolves projects against the catalog and mutates the tracking
// stores on behalf of users.
type Handler struct {
	projects storage.ProjectRepository
	subs     storage.SubscriptionRepository
	source   catalog.Source
}

// NewHandler creates a command handler over the given store and catalog.
func NewHandler(store storage.Storage, source catalog.Source) *Handler {
	return &Handler{
		projects: store.Projects(),
		subs:     store.Subscriptions(),
		source:   source,
	}
}

// Handle dispatches one interaction and returns the ephemeral reply text.
func (h *Handler) Handle(ctx context.Context, in Interaction) string {
	metrics.CommandsTotal.WithLabelValues(in.Command).Inc()

	switch in.Command {
	case "add":
		return h.add(ctx, in)
	case "remove":
		return h.remove(ctx, in)
	case "removeall":
		return h.removeAll(ctx, in)
	case "list":
		return h.list(ctx, in)
	default:
		return "Unknown subcommand"
	}
}

func (h *Handler) add(ctx context.Context, in Interaction) string {
	remote, reply := h.resolve(ctx, in.ProjectID)
	if reply != "" {
		return reply
	}

	versions, err := h.source.Versions(ctx, remote.ID)
	if err != nil {
		log.Printf("[commands] fetch versions for %s: %v", remote.ID, err)
		return replyIssue
	}

	project := &models.Project{
		ID:         remote.ID,
		Title:      remote.Title,
		LastUpdate: remote.Updated,
	}
	if len(versions) > 0 {
		project.LatestVersion = versions[0].ID
	}

	// Two-step insert: the project row is best-effort (it may already be
	// tracked elsewhere), the subscription row decides the outcome.
	if err := h.projects.Create(ctx, project); err != nil && !errors.Is(err, storage.ErrAlreadyExists) {
		log.Printf("[commands] insert project %s: %v", remote.ID, err)
		return replyIssue
	}

	sub := models.NewSubscription(remote.ID, in.ChannelID, in.UserID)
	if err := h.subs.Create(ctx, sub); err != nil {
		if errors.Is(err, storage.ErrAlreadyExists) {
			return remote.Title + " is already in the tracking list"
		}
		log.Printf("[commands] insert subscription %s/%s: %v", remote.ID, in.ChannelID, err)
		return replyIssue
	}

	return remote.Title + " is added to the tracking list"
}

func (h *Handler) remove(ctx context.Context, in Interaction) string {
	remote, reply := h.resolve(ctx, in.ProjectID)
	if reply != "" {
		return reply
	}

	if err := h.subs.DeleteBy(ctx, remote.ID, in.ChannelID); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return fmt.Sprintf("%q is not being tracked in this channel", remote.Title)
		}
		log.Printf("[commands] delete subscription %s/%s: %v", remote.ID, in.ChannelID, err)
		return replyIssue
	}

	return fmt.Sprintf("No longer tracking %q in this channel", remote.Title)
}

func (h *Handler) removeAll(ctx context.Context, in Interaction) string {
	if err := h.subs.DeleteBy(ctx, "", in.ChannelID); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return "No project is being tracked in this channel"
		}
		log.Printf("[commands] delete subscriptions for channel %s: %v", in.ChannelID, err)
		return replyIssue
	}
	return "No longer tracking any project in this channel"
}

func (h *Handler) list(ctx context.Context, in Interaction) string {
	ids, err := h.subs.ProjectsFor(ctx, in.ChannelID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return "No project is being tracked in this channel"
		}
		log.Printf("[commands] list subscriptions for channel %s: %v", in.ChannelID, err)
		return replyIssue
	}

	titles := map[string]string{}
	if projects, err := h.projects.List(ctx); err == nil {
		for _, p := range projects {
			titles[p.ID] = p.Title
		}
	}

	var b strings.Builder
	b.WriteString("Tracking in this channel:\n")
	for _, id := range ids {
		if title, ok := titles[id]; ok {
			fmt.Fprintf(&b, "- %s (%s)\n", title, id)
		} else {
			fmt.Fprintf(&b, "- %s\n", id)
		}
	}
	return strings.TrimRight(b.String(), "\n")
}

// resolve fetches a project by id or slug, mapping fetch failures to the
// user-facing replies. The reply is empty on success.
func (h *Handler) resolve(ctx context.Context, projectID string) (*catalog.Project, string) {
	if projectID == "" {
		return nil, "A project id or slug is required"
	}

	remote, err := h.source.Project(ctx, projectID)
	if err != nil {
		if catalog.IsNotFound(err) {
			return nil, "Project " + projectID + " is not found"
		}
		log.Printf("[commands] resolve project %s: %v", projectID, err)
		return nil, replyIssue
	}
	return remote, ""
}
