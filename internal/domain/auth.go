package domain

import "time"

// SubjectType identifies who an operator token was issued to.
type SubjectType string

const (
	SubjectTypeOperator SubjectType = "OPERATOR"
	SubjectTypeCLI      SubjectType = "CLI"
)

// Operator is the person running outreach from the dashboard.
type Operator struct {
	Email string
}

// Token represents issued operator token metadata.
type Token struct {
	ID        string
	SubjectID string
	Subject   SubjectType
	ExpiresAt time.Time
	IssuedAt  time.Time
}
