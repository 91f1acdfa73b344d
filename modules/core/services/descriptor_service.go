package services

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/complium/complium/modules/core/domain/entities/descriptor"
	"github.com/complium/complium/pkg/composables"
)

// DescriptorService resolves tenant connection strings for the pool
// registry. Descriptors are immutable after provisioning, so resolved
// strings are cached for the life of the process.
type DescriptorService struct {
	pool        *pgxpool.Pool
	descriptors descriptor.Repository

	mu    sync.RWMutex
	cache map[uuid.UUID]string
}

func NewDescriptorService(pool *pgxpool.Pool, descriptors descriptor.Repository) *DescriptorService {
	return &DescriptorService{
		pool:        pool,
		descriptors: descriptors,
		cache:       make(map[uuid.UUID]string),
	}
}

func (s *DescriptorService) ConnString(ctx context.Context, orgID uuid.UUID) (string, error) {
	s.mu.RLock()
	connString, ok := s.cache[orgID]
	s.mu.RUnlock()
	if ok {
		return connString, nil
	}

	desc, err := s.descriptors.GetByOrgID(composables.WithPool(ctx, s.pool), orgID)
	if err != nil {
		return "", err
	}

	s.mu.Lock()
	s.cache[orgID] = desc.ConnString()
	s.mu.Unlock()
	return desc.ConnString(), nil
}

// Evict forgets a cached descriptor, e.g. after deprovisioning.
func (s *DescriptorService) Evict(orgID uuid.UUID) {
	s.mu.Lock()
	delete(s.cache, orgID)
	s.mu.Unlock()
}
