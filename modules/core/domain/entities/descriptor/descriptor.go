package descriptor

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Descriptor records how to reach one organization's isolated tenant
// database. Created once at provisioning time and immutable thereafter;
// credential rotation is handled out-of-band.
type Descriptor struct {
	orgID      uuid.UUID
	host       string
	port       string
	user       string
	password   string
	dbName     string
	connString string
	createdAt  time.Time
}

type Option func(*Descriptor)

func WithCreatedAt(createdAt time.Time) Option {
	return func(d *Descriptor) {
		d.createdAt = createdAt
	}
}

func New(orgID uuid.UUID, host, port, user, password, dbName, connString string, opts ...Option) *Descriptor {
	d := &Descriptor{
		orgID:      orgID,
		host:       host,
		port:       port,
		user:       user,
		password:   password,
		dbName:     dbName,
		connString: connString,
		createdAt:  time.Now(),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

func (d *Descriptor) OrgID() uuid.UUID     { return d.orgID }
func (d *Descriptor) Host() string         { return d.host }
func (d *Descriptor) Port() string         { return d.port }
func (d *Descriptor) User() string         { return d.user }
func (d *Descriptor) Password() string     { return d.password }
func (d *Descriptor) DBName() string       { return d.dbName }
func (d *Descriptor) ConnString() string   { return d.connString }
func (d *Descriptor) CreatedAt() time.Time { return d.createdAt }

type Repository interface {
	GetByOrgID(ctx context.Context, orgID uuid.UUID) (*Descriptor, error)
	Create(ctx context.Context, d *Descriptor) error
}
