package models

import (
	"database/sql"
	"time"
)

type Site struct {
	ID        string
	Name      string
	CreatedAt time.Time
}

type Process struct {
	ID        string
	SiteID    string
	Name      string
	CreatedAt time.Time
}

type Sprint struct {
	ID        string
	ProcessID string
	Name      string
	StartsAt  sql.NullTime
	EndsAt    sql.NullTime
}

// Issue mirrors the issues table. Issuer, Verifier and Deadline are only
// populated on tenants whose schema carries the review columns.
type Issue struct {
	ID          string
	ProcessID   string
	Title       string
	Description string
	Status      string
	SprintID    sql.NullString
	Position    int
	AssigneeID  sql.NullString
	Tags        []string
	Issuer      sql.NullString
	Verifier    sql.NullString
	Deadline    sql.NullTime
	CreatedAt   time.Time
	UpdatedAt   time.Time
}
