package models

import (
	"time"

	"github.com/google/uuid"
)

// Subscription links a tracked project to a Discord channel.
// The (ProjectID, ChannelID) pair is unique; OwnerID records who
// requested tracking.
type Subscription struct {
	ID        string    `json:"id"`
	ProjectID string    `json:"project_id"`
	ChannelID string    `json:"channel_id"`
	OwnerID   string    `json:"owner_id"`
	CreatedAt time.Time `json:"created_at"`
}

// NewSubscription creates a new Subscription with a generated id.
func NewSubscription(projectID, channelID, ownerID string) *Subscription {
	return &Subscription{
		ID:        uuid.New().String(),
		ProjectID: projectID,
		ChannelID: channelID,
		OwnerID:   ownerID,
		CreatedAt: time.Now(),
	}
}
