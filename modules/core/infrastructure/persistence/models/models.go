package models

import (
	"database/sql"
	"time"
)

type Organization struct {
	ID        string
	Name      string
	OwnerID   string
	CreatedAt time.Time
	UpdatedAt time.Time
}

type TenantDescriptor struct {
	OrgID      string
	Host       string
	Port       string
	DBUser     string
	DBPassword string
	DBName     string
	ConnString string
	CreatedAt  time.Time
}

type Membership struct {
	ActorID   string
	OrgID     string
	Role      string
	Tier      sql.NullString
	CreatedAt time.Time
}

type AccessToken struct {
	TokenHash string
	ActorID   string
	ExpiresAt sql.NullTime
}
