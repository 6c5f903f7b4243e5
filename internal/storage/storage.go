// Package storage provides database storage interfaces and implementations.
package storage

import (
	"context"
	"errors"

	"github.com/good-yellow-bee/modwatch/internal/models"
)

// ErrAlreadyExists is returned when an insert violates a uniqueness
// constraint (duplicate project id or duplicate (project, channel) pair).
var ErrAlreadyExists = errors.New("already exists")

// ErrNotFound is returned when a lookup or delete matches no rows.
var ErrNotFound = errors.New("not found")

// Storage is the main interface for database operations.
type Storage interface {
	// Open initializes the database connection.
	Open() error
	// Close closes the database connection.
	Close() error
	// Migrate runs database migrations.
	Migrate() error

	// Repository accessors
	Projects() ProjectRepository
	Subscriptions() SubscriptionRepository
}

// ProjectRepository defines operations for tracked projects.
type ProjectRepository interface {
	// Create inserts a new project. Returns ErrAlreadyExists if the id is
	// already present.
	Create(ctx context.Context, project *models.Project) error
	// UpdateVersion overwrites title, latest version and last update for an
	// existing project. Returns ErrNotFound if the project is missing.
	UpdateVersion(ctx context.Context, project *models.Project) error
	// List returns a snapshot of all tracked projects.
	List(ctx context.Context) ([]*models.Project, error)
	// GetLatestVersion returns the stored watermark version id for a project.
	GetLatestVersion(ctx context.Context, id string) (string, error)
	// Delete removes a project. Returns ErrNotFound if no row matched.
	Delete(ctx context.Context, id string) error
}

// SubscriptionRepository defines operations for channel subscriptions.
type SubscriptionRepository interface {
	// Create inserts a new subscription. Returns ErrAlreadyExists if the
	// (project, channel) pair is already subscribed.
	Create(ctx context.Context, sub *models.Subscription) error
	// ChannelsFor returns the channel ids subscribed to a project.
	// An empty result is not an error.
	ChannelsFor(ctx context.Context, projectID string) ([]string, error)
	// ProjectsFor returns the project ids tracked in a channel.
	// Returns ErrNotFound when the channel has no subscriptions.
	ProjectsFor(ctx context.Context, channelID string) ([]string, error)
	// DeleteBy deletes subscriptions matching all non-empty filters.
	// At least one filter is required. Returns ErrNotFound when no row
	// matched.
	DeleteBy(ctx context.Context, projectID, channelID string) error
	// DeleteByProject removes every subscription for a project. Matching
	// zero rows is not an error; used when pruning dead projects.
	DeleteByProject(ctx context.Context, projectID string) error
}
