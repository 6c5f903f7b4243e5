// Package catalog provides a read-only client for the Modrinth API.
package catalog

import (
	"time"
)

// Project is a Modrinth project as returned by the API. Only the fields
// modwatch consumes are decoded.
type Project struct {
	ID          string    `json:"id"`
	Slug        string    `json:"slug"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	IconURL     string    `json:"icon_url"`
	Updated     time.Time `json:"updated"`
	Versions    []string  `json:"versions"`
}

// PageURL returns the project's page on Modrinth.
func (p *Project) PageURL() string {
	return "https://modrinth.com/project/" + p.ID
}

// Version is one published release of a project, newest-first in API
// responses.
type Version struct {
	ID            string    `json:"id"`
	ProjectID     string    `json:"project_id"`
	Name          string    `json:"name"`
	VersionNumber string    `json:"version_number"`
	VersionType   string    `json:"version_type"` // release, beta, alpha
	Loaders       []string  `json:"loaders"`
	GameVersions  []string  `json:"game_versions"`
	DatePublished time.Time `json:"date_published"`
	Files         []File    `json:"files"`
}

// PrimaryFile returns the version's primary artifact, falling back to the
// first file when none is flagged primary.
func (v *Version) PrimaryFile() (File, bool) {
	if len(v.Files) == 0 {
		return File{}, false
	}
	for _, f := range v.Files {
		if f.Primary {
			return f, true
		}
	}
	return v.Files[0], true
}

// File is a downloadable artifact attached to a version.
type File struct {
	URL      string            `json:"url"`
	Filename string            `json:"filename"`
	Primary  bool              `json:"primary"`
	Size     int64             `json:"size"`
	Hashes   map[string]string `json:"hashes"`
}
