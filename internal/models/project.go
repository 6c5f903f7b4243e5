package models

import (
	"time"
)

// Project is a Modrinth project tracked by at least one channel.
// LatestVersion is the id of the newest version that has already been
// announced to the project's subscribers; it is the watermark the tracker
// diffs against on each pass.
type Project struct {
	ID            string    `json:"id"`
	Title         string    `json:"title"`
	LatestVersion string    `json:"latest_version"`
	LastUpdate    time.Time `json:"last_update"`
}
