package domain

import "time"

// Entry is one dataset source: a shot and the creator who owns it.
type Entry struct {
	ID            string
	Title         string
	URL           string
	CreatorName   string
	CreatorHandle string
	CreatorID     string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// EntryRecord is an entry joined with its consent state and download count.
type EntryRecord struct {
	Entry         Entry
	Consent       *Consent
	DownloadCount int
}
