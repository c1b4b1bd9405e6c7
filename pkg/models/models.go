package models

import (
	"strings"
	"time"
)

// ListingItem is one downloadable unit found on the listing page. Its link is
// its only identity within a run.
type ListingItem struct {
	Link string `json:"link"`
}

// DeliveredArchive is a local zip file obtained for a listing item.
type DeliveredArchive struct {
	Path string `json:"path"`
	Link string `json:"link"`
	Size int64  `json:"size"`
}

// ProcessedItem records one archive that was installed successfully.
type ProcessedItem struct {
	Name        string `json:"name"`
	Car         string `json:"car"`
	Track       string `json:"track"`
	Category1   string `json:"category1"`
	Category2   string `json:"category2"`
	Package     string `json:"package"`
	Destination string `json:"destination"`
	Link        string `json:"link"`
}

// DisplayName formats a raw directory name for people: hyphens become spaces.
func DisplayName(raw string) string {
	return strings.ReplaceAll(raw, "-", " ")
}

// NewProcessedItem builds the record for verbatim category names.
func NewProcessedItem(category1, category2, pkg, destination, link string) ProcessedItem {
	car := DisplayName(category1)
	track := DisplayName(category2)
	return ProcessedItem{
		Name:        car + " - " + track,
		Car:         car,
		Track:       track,
		Category1:   category1,
		Category2:   category2,
		Package:     pkg,
		Destination: destination,
		Link:        link,
	}
}

// Failure is a link that produced no item, with its cause category.
type Failure struct {
	Link    string `json:"link"`
	Stage   string `json:"stage"`
	Type    string `json:"type"`
	Message string `json:"message"`
	Skipped bool   `json:"skipped,omitempty"`
}

// RunResult is everything a run produced.
type RunResult struct {
	RunID      string          `json:"run_id"`
	StartedAt  time.Time       `json:"started_at"`
	FinishedAt time.Time       `json:"finished_at"`
	Found      int             `json:"found"`
	Processed  []ProcessedItem `json:"processed"`
	Failed     []Failure       `json:"failed"`
	Stopped    bool            `json:"stopped"`
	Error      string          `json:"error,omitempty"`
}

// NothingFound reports a run that discovered no links at all.
func (r *RunResult) NothingFound() bool {
	return r.Found == 0
}

// FailedLinks returns the links of every failure in run order.
func (r *RunResult) FailedLinks() []string {
	links := make([]string, 0, len(r.Failed))
	for _, f := range r.Failed {
		links = append(links, f.Link)
	}
	return links
}
