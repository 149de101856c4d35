package repository

import (
	"context"
	"sync"
	"time"
)

// Dataset statuses.
const (
	DatasetPending   = "pending"
	DatasetPredicted = "predicted"
)

// Dataset is an uploaded table owned by a staff member.
type Dataset struct {
	ID         int
	StaffID    string
	Filename   string
	UploadDate time.Time
	Columns    []string
	Rows       [][]string
	Status     string
	Scores     []float64
}

// DatasetRepository persists uploads.
type DatasetRepository interface {
	Create(ctx context.Context, ds *Dataset) error
	Get(ctx context.Context, id int) (*Dataset, error)
	Update(ctx context.Context, ds *Dataset) error
	ListByStaff(ctx context.Context, staffID string) ([]Dataset, error)
}

type datasetRepository struct {
	mu       sync.RWMutex
	nextID   int
	datasets map[int]Dataset
}

// NewDatasetRepository instantiates an in-memory repository.
func NewDatasetRepository() DatasetRepository {
	return &datasetRepository{datasets: make(map[int]Dataset)}
}

func (r *datasetRepository) Create(_ context.Context, ds *Dataset) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	ds.ID = r.nextID
	if ds.UploadDate.IsZero() {
		ds.UploadDate = time.Now().UTC()
	}
	if ds.Status == "" {
		ds.Status = DatasetPending
	}
	r.datasets[ds.ID] = *ds
	return nil
}

func (r *datasetRepository) Get(_ context.Context, id int) (*Dataset, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ds, ok := r.datasets[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &ds, nil
}

func (r *datasetRepository) Update(_ context.Context, ds *Dataset) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.datasets[ds.ID]; !ok {
		return ErrNotFound
	}
	r.datasets[ds.ID] = *ds
	return nil
}

// ListByStaff returns newest first.
func (r *datasetRepository) ListByStaff(_ context.Context, staffID string) ([]Dataset, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []Dataset
	for id := r.nextID; id >= 1; id-- {
		if ds, ok := r.datasets[id]; ok && ds.StaffID == staffID {
			out = append(out, ds)
		}
	}
	return out, nil
}
