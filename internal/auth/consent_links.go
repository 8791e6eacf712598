package auth

import (
	"net/url"
	"strings"
)

// ConsentLinks are the user-facing URLs embedded in a consent email.
type ConsentLinks struct {
	PageURL    string `json:"page_url"`
	ApproveURL string `json:"approve_url"`
	DeclineURL string `json:"decline_url"`
}

// BuildConsentLinks derives the details, approve and decline URLs for a signed token.
// The base URL is used as given apart from one trailing slash.
func BuildConsentLinks(baseURL, token string) ConsentLinks {
	root := strings.TrimSuffix(baseURL, "/")
	escaped := url.QueryEscape(token)
	return ConsentLinks{
		PageURL:    root + "/consent/" + url.PathEscape(token),
		ApproveURL: root + "/consent/approve?token=" + escaped,
		DeclineURL: root + "/consent/decline?token=" + escaped,
	}
}
