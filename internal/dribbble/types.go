package dribbble

import (
	"strconv"
	"time"
)

// Shot is a design item as returned by the Dribbble v2 API.
type Shot struct {
	ID          int64      `json:"id"`
	Title       string     `json:"title"`
	HTMLURL     string     `json:"html_url"`
	PublishedAt string     `json:"published_at"`
	Tags        []string   `json:"tags"`
	Images      ShotImages `json:"images"`
	User        *User      `json:"user,omitempty"`
}

// ShotImages lists the renditions of a shot.
type ShotImages struct {
	HiDPI  string `json:"hidpi"`
	TwoX   string `json:"two_x"`
	Normal string `json:"normal"`
	OneX   string `json:"one_x"`
	Teaser string `json:"teaser"`
}

// User is the creator owning a shot.
type User struct {
	ID      int64  `json:"id"`
	Name    string `json:"name"`
	Login   string `json:"login"`
	HTMLURL string `json:"html_url"`
}

// CreatorID returns the owning creator's identifier, empty for anonymous or deleted
// accounts.
func (s Shot) CreatorID() string {
	if s.User == nil || s.User.ID == 0 {
		return ""
	}
	return strconv.FormatInt(s.User.ID, 10)
}

// Published parses PublishedAt.
func (s Shot) Published() (time.Time, error) {
	return time.Parse(time.RFC3339, s.PublishedAt)
}

// BestImageURL picks the largest available rendition.
func (s Shot) BestImageURL() string {
	switch {
	case s.Images.HiDPI != "":
		return s.Images.HiDPI
	case s.Images.TwoX != "":
		return s.Images.TwoX
	default:
		return s.Images.Normal
	}
}

// Page is one fetched page of the shot feed.
type Page struct {
	URL        string
	StatusCode int
	Links      map[string]string
	Shots      []Shot
	FetchedAt  time.Time
}
