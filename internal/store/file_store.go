package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/identity-console/console/internal/models"
	"github.com/identity-console/console/internal/ratelimit"
)

// fileData is the on-disk layout of the legacy flat-file store.
type fileData struct {
	ServiceGroups    []models.RateLimitServiceGroup `json:"service_groups"`
	TenantRateLimits []models.TenantRateLimit       `json:"tenant_rate_limits"`
}

// FileStore is the legacy flat-file JSON repository for service groups and
// tenant allocations. It applies the same limit/period clamping as the
// allocation engine on every write; the two substitution policies must not
// drift apart. Mutations are guarded by a process-local mutex only.
type FileStore struct {
	path string

	mu   sync.Mutex
	data fileData
}

// OpenFileStore loads (or initializes) the flat-file store at path.
func OpenFileStore(path string) (*FileStore, error) {
	s := &FileStore{path: path}
	raw, errRead := os.ReadFile(path)
	if errRead != nil {
		if errors.Is(errRead, os.ErrNotExist) {
			return s, nil
		}
		return nil, fmt.Errorf("file store: read %s: %w", path, errRead)
	}
	if len(raw) > 0 {
		if errUnmarshal := json.Unmarshal(raw, &s.data); errUnmarshal != nil {
			return nil, fmt.Errorf("file store: parse %s: %w", path, errUnmarshal)
		}
	}
	return s, nil
}

// persist writes the store contents to disk via a temp file rename.
// Callers hold s.mu.
func (s *FileStore) persist() error {
	raw, errMarshal := json.MarshalIndent(&s.data, "", "  ")
	if errMarshal != nil {
		return fmt.Errorf("file store: marshal: %w", errMarshal)
	}
	tmp := s.path + ".tmp"
	if errMkdir := os.MkdirAll(filepath.Dir(s.path), 0o755); errMkdir != nil {
		return fmt.Errorf("file store: mkdir: %w", errMkdir)
	}
	if errWrite := os.WriteFile(tmp, raw, 0o600); errWrite != nil {
		return fmt.Errorf("file store: write: %w", errWrite)
	}
	if errRename := os.Rename(tmp, s.path); errRename != nil {
		return fmt.Errorf("file store: rename: %w", errRename)
	}
	return nil
}

// clampRelation normalizes limit fields before they hit disk.
func clampRelation(rel *models.TenantRateLimit) {
	if rel.RateLimit != nil {
		clamped := ratelimit.ClampLimit(*rel.RateLimit)
		rel.RateLimit = &clamped
	}
	if rel.RateLimitPeriodMinutes != nil {
		clamped := ratelimit.ClampPeriodMinutes(*rel.RateLimitPeriodMinutes)
		rel.RateLimitPeriodMinutes = &clamped
	}
}

// FindServiceGroupByID returns the service group or nil when absent.
func (s *FileStore) FindServiceGroupByID(_ context.Context, id string) (*models.RateLimitServiceGroup, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, group := range s.data.ServiceGroups {
		if group.ID == id {
			found := group
			return &found, nil
		}
	}
	return nil, nil
}

// FindServiceGroupsByIDs returns the service groups matching the given ids.
func (s *FileStore) FindServiceGroupsByIDs(_ context.Context, ids []string) ([]models.RateLimitServiceGroup, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	wanted := make(map[string]bool, len(ids))
	for _, id := range ids {
		wanted[id] = true
	}
	var out []models.RateLimitServiceGroup
	for _, group := range s.data.ServiceGroups {
		if wanted[group.ID] {
			out = append(out, group)
		}
	}
	return out, nil
}

// ListServiceGroups returns all service groups.
func (s *FileStore) ListServiceGroups(_ context.Context) ([]models.RateLimitServiceGroup, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]models.RateLimitServiceGroup(nil), s.data.ServiceGroups...), nil
}

// InsertServiceGroup appends a service group record.
func (s *FileStore) InsertServiceGroup(_ context.Context, group *models.RateLimitServiceGroup) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data.ServiceGroups = append(s.data.ServiceGroups, *group)
	return s.persist()
}

// UpdateServiceGroup updates a service group in place.
func (s *FileStore) UpdateServiceGroup(_ context.Context, group *models.RateLimitServiceGroup) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.data.ServiceGroups {
		if s.data.ServiceGroups[i].ID == group.ID {
			s.data.ServiceGroups[i] = *group
			return s.persist()
		}
	}
	return ratelimit.ErrServiceGroupNotFound
}

// DeleteServiceGroup removes a service group record.
func (s *FileStore) DeleteServiceGroup(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.data.ServiceGroups {
		if s.data.ServiceGroups[i].ID == id {
			s.data.ServiceGroups = append(s.data.ServiceGroups[:i], s.data.ServiceGroups[i+1:]...)
			return s.persist()
		}
	}
	return ratelimit.ErrServiceGroupNotFound
}

// RelationsByTenant returns all allocations held by the tenant.
func (s *FileStore) RelationsByTenant(_ context.Context, tenantID string) ([]models.TenantRateLimit, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.TenantRateLimit
	for _, rel := range s.data.TenantRateLimits {
		if rel.TenantID == tenantID {
			out = append(out, rel)
		}
	}
	return out, nil
}

// RelationsByServiceGroup returns all allocations referencing the service group.
func (s *FileStore) RelationsByServiceGroup(_ context.Context, serviceGroupID string) ([]models.TenantRateLimit, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.TenantRateLimit
	for _, rel := range s.data.TenantRateLimits {
		if rel.ServiceGroupID == serviceGroupID {
			out = append(out, rel)
		}
	}
	return out, nil
}

// AllRelations returns every allocation.
func (s *FileStore) AllRelations(_ context.Context) ([]models.TenantRateLimit, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]models.TenantRateLimit(nil), s.data.TenantRateLimits...), nil
}

// InsertRelation appends an allocation, clamping its values first.
func (s *FileStore) InsertRelation(_ context.Context, rel *models.TenantRateLimit) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.data.TenantRateLimits {
		if existing.TenantID == rel.TenantID && existing.ServiceGroupID == rel.ServiceGroupID {
			return ratelimit.ErrDuplicateAllocation
		}
	}
	clamped := *rel
	clampRelation(&clamped)
	s.data.TenantRateLimits = append(s.data.TenantRateLimits, clamped)
	return s.persist()
}

// UpdateRelation replaces an allocation's limit fields, clamping them first.
func (s *FileStore) UpdateRelation(_ context.Context, rel *models.TenantRateLimit) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.data.TenantRateLimits {
		if s.data.TenantRateLimits[i].TenantID == rel.TenantID &&
			s.data.TenantRateLimits[i].ServiceGroupID == rel.ServiceGroupID {
			clamped := *rel
			clampRelation(&clamped)
			s.data.TenantRateLimits[i] = clamped
			return s.persist()
		}
	}
	return ratelimit.ErrAllocationNotFound
}

// DeleteRelation removes an allocation and reports whether it existed.
func (s *FileStore) DeleteRelation(_ context.Context, tenantID, serviceGroupID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.data.TenantRateLimits {
		if s.data.TenantRateLimits[i].TenantID == tenantID &&
			s.data.TenantRateLimits[i].ServiceGroupID == serviceGroupID {
			s.data.TenantRateLimits = append(s.data.TenantRateLimits[:i], s.data.TenantRateLimits[i+1:]...)
			return true, s.persist()
		}
	}
	return false, nil
}

// DeleteRelationsByServiceGroup removes every allocation referencing the
// service group.
func (s *FileStore) DeleteRelationsByServiceGroup(_ context.Context, serviceGroupID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.dropRelationsByServiceGroup(serviceGroupID)
	return s.persist()
}

// DeleteServiceGroupCascade removes a service group and every allocation
// referencing it under one lock, persisting once.
func (s *FileStore) DeleteServiceGroupCascade(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.data.ServiceGroups {
		if s.data.ServiceGroups[i].ID == id {
			s.data.ServiceGroups = append(s.data.ServiceGroups[:i], s.data.ServiceGroups[i+1:]...)
			s.dropRelationsByServiceGroup(id)
			return s.persist()
		}
	}
	return ratelimit.ErrServiceGroupNotFound
}

// dropRelationsByServiceGroup filters relations in place. Callers hold s.mu.
func (s *FileStore) dropRelationsByServiceGroup(serviceGroupID string) {
	kept := s.data.TenantRateLimits[:0]
	for _, rel := range s.data.TenantRateLimits {
		if rel.ServiceGroupID != serviceGroupID {
			kept = append(kept, rel)
		}
	}
	s.data.TenantRateLimits = kept
}
