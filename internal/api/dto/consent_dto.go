package dto

import "time"

// ConsentActionRequest carries the token of an approve or decline action, from the
// query string, a form post or a JSON body.
type ConsentActionRequest struct {
	Token string `json:"token" form:"token" query:"token"`
}

// ConsentDecisionResponse is the JSON answer to a consent action.
type ConsentDecisionResponse struct {
	EntryID   string    `json:"entry_id"`
	Granted   bool      `json:"granted"`
	Scope     string    `json:"scope"`
	Evidence  string    `json:"evidence"`
	DecidedAt time.Time `json:"decided_at"`
}
