package repository

import (
	"context"
	"sort"
	"sync"

	"github.com/spec-kit/telepredict/internal/domain"
)

// StaffRepository handles persistence for staff members.
type StaffRepository interface {
	Create(ctx context.Context, staff *domain.StaffMember) error
	GetByID(ctx context.Context, staffID string) (*domain.StaffMember, error)
	ListByCompany(ctx context.Context, companyID string) ([]domain.StaffMember, error)
}

type staffRepository struct {
	mu    sync.RWMutex
	staff map[string]domain.StaffMember
}

// NewStaffRepository instantiates an in-memory repository.
func NewStaffRepository() StaffRepository {
	return &staffRepository{staff: make(map[string]domain.StaffMember)}
}

func (r *staffRepository) Create(_ context.Context, staff *domain.StaffMember) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.staff[staff.StaffID]; ok {
		return ErrAlreadyExists
	}
	r.staff[staff.StaffID] = *staff
	return nil
}

func (r *staffRepository) GetByID(_ context.Context, staffID string) (*domain.StaffMember, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	staff, ok := r.staff[staffID]
	if !ok {
		return nil, ErrNotFound
	}
	return &staff, nil
}

func (r *staffRepository) ListByCompany(_ context.Context, companyID string) ([]domain.StaffMember, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []domain.StaffMember
	for _, s := range r.staff {
		if s.CompanyID == companyID {
			out = append(out, s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StaffID < out[j].StaffID })
	return out, nil
}
