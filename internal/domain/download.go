package domain

import "time"

// DownloadStatusSaved marks an image stored on disk.
const DownloadStatusSaved = "saved"

// Download records one image fetched for a consenting entry.
type Download struct {
	ID        string
	EntryID   string
	ShotID    string
	ImageURL  string
	FilePath  string
	Status    string
	CreatedAt time.Time
}
