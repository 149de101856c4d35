package repository

import (
	"context"
	"sync"

	"github.com/spec-kit/telepredict/internal/domain"
)

// FeedbackRepository persists client feedback.
type FeedbackRepository interface {
	Create(ctx context.Context, fb *domain.Feedback) error
	ListByCompany(ctx context.Context, companyID string) ([]domain.Feedback, error)
}

type feedbackRepository struct {
	mu     sync.RWMutex
	nextID int
	items  []domain.Feedback
}

// NewFeedbackRepository instantiates an in-memory repository.
func NewFeedbackRepository() FeedbackRepository {
	return &feedbackRepository{}
}

func (r *feedbackRepository) Create(_ context.Context, fb *domain.Feedback) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	fb.ID = r.nextID
	r.items = append(r.items, *fb)
	return nil
}

// ListByCompany returns newest first.
func (r *feedbackRepository) ListByCompany(_ context.Context, companyID string) ([]domain.Feedback, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []domain.Feedback
	for i := len(r.items) - 1; i >= 0; i-- {
		if r.items[i].CompanyID == companyID {
			out = append(out, r.items[i])
		}
	}
	return out, nil
}
