package services

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/complium/complium/modules/core/domain/entities/descriptor"
	"github.com/complium/complium/modules/core/domain/entities/membership"
	"github.com/complium/complium/modules/core/domain/entities/organization"
	"github.com/complium/complium/pkg/composables"
	"github.com/complium/complium/pkg/configuration"
	"github.com/complium/complium/pkg/eventbus"
	"github.com/complium/complium/pkg/serrors"
)

// inTxFn is swapped out in tests.
var inTxFn = composables.InTx

// DatabaseProvisioner creates the isolated backing database for a new
// organization. CREATE DATABASE cannot run inside a transaction, so the
// side effect is external to the control-plane atomic unit.
type DatabaseProvisioner interface {
	CreateDatabase(ctx context.Context, dbName string) error
}

// TenantMigrator applies the tenant schema to a freshly provisioned
// database. Idempotent and retryable out-of-band.
type TenantMigrator interface {
	Migrate(ctx context.Context, connString string) error
}

// TenantSeeder inserts initial onboarding data into a new tenant database.
type TenantSeeder interface {
	Seed(ctx context.Context, orgID uuid.UUID, connString string) error
}

// TenantService provisions organizations: the control-plane rows
// (organization, descriptor, owner membership) commit as one atomic unit;
// schema migration and seeding afterwards are best-effort and non-fatal.
type TenantService struct {
	orgs        organization.Repository
	memberships membership.Repository
	descriptors descriptor.Repository
	provisioner DatabaseProvisioner
	migrator    TenantMigrator
	seeder      TenantSeeder
	db          *configuration.DatabaseOptions
	publisher   eventbus.EventBus
	log         *logrus.Logger
}

func NewTenantService(
	orgs organization.Repository,
	memberships membership.Repository,
	descriptors descriptor.Repository,
	provisioner DatabaseProvisioner,
	migrator TenantMigrator,
	seeder TenantSeeder,
	db *configuration.DatabaseOptions,
	publisher eventbus.EventBus,
	log *logrus.Logger,
) *TenantService {
	return &TenantService{
		orgs:        orgs,
		memberships: memberships,
		descriptors: descriptors,
		provisioner: provisioner,
		migrator:    migrator,
		seeder:      seeder,
		db:          db,
		publisher:   publisher,
		log:         log,
	}
}

// TenantDBName derives the isolated database name for an organization.
func TenantDBName(orgID uuid.UUID) string {
	return "tenant_" + strings.ReplaceAll(orgID.String(), "-", "")
}

func (s *TenantService) CreateTenant(ctx context.Context, ownerID uuid.UUID, orgName string) (*organization.Organization, *descriptor.Descriptor, error) {
	if strings.TrimSpace(orgName) == "" {
		return nil, nil, serrors.NewFieldRequired("name")
	}
	if ownerID == uuid.Nil {
		return nil, nil, serrors.NewFieldRequired("ownerId")
	}

	// Check-then-insert: the unique index on organizations.owner_id backs
	// the concurrent case, which surfaces as a conflict from Create.
	if _, err := s.orgs.GetByOwner(ctx, ownerID); err == nil {
		return nil, nil, serrors.NewConflict("actor already owns an organization", nil)
	} else if !serrors.HasCode(err, serrors.CodeNotFound) {
		return nil, nil, err
	}

	org := organization.New(orgName, ownerID)
	dbName := TenantDBName(org.ID())
	connString := s.db.ConnectionStringFor(dbName)

	var (
		created   *organization.Organization
		desc      *descriptor.Descriptor
		dbCreated bool
	)
	err := inTxFn(ctx, func(txCtx context.Context) error {
		var err error
		created, err = s.orgs.Create(txCtx, org)
		if err != nil {
			return err
		}

		if err := s.provisioner.CreateDatabase(txCtx, dbName); err != nil {
			return serrors.NewProvisioning("failed to create tenant database", err)
		}
		dbCreated = true

		desc = descriptor.New(
			created.ID(),
			s.db.Host,
			s.db.Port,
			s.db.User,
			s.db.Password,
			dbName,
			connString,
		)
		if err := s.descriptors.Create(txCtx, desc); err != nil {
			return err
		}

		owner := membership.New(ownerID, created.ID(), membership.RoleOwner)
		return s.memberships.Create(txCtx, owner)
	})
	if err != nil {
		if dbCreated {
			// The external database cannot be rolled back by the
			// control-plane transaction. Left for operator cleanup.
			s.log.WithField("db_name", dbName).WithError(err).
				Warn("tenant provisioning aborted after database creation; database orphaned")
		}
		return nil, nil, err
	}

	// Best-effort from here: the organization is usable either way, and
	// both steps can be retried out-of-band.
	if err := s.migrator.Migrate(ctx, connString); err != nil {
		s.log.WithField("org_id", created.ID()).WithError(serrors.NewMigration(err)).
			Warn("tenant schema migration failed; retry out-of-band")
	} else if err := s.seeder.Seed(ctx, created.ID(), connString); err != nil {
		s.log.WithField("org_id", created.ID()).WithError(serrors.NewSeed(err)).
			Warn("tenant seeding failed; retry out-of-band")
	}

	s.publisher.Publish(organization.NewCreatedEvent(created))

	return created, desc, nil
}

// GetOrganization loads an organization by id.
func (s *TenantService) GetOrganization(ctx context.Context, id uuid.UUID) (*organization.Organization, error) {
	return s.orgs.GetByID(ctx, id)
}
