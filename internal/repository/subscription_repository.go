package repository

import (
	"context"
	"sync"

	"github.com/spec-kit/telepredict/internal/domain"
)

// SubscriptionRepository persists client subscriptions.
type SubscriptionRepository interface {
	Create(ctx context.Context, companyID string, sub *domain.Subscription) error
	ListByCompany(ctx context.Context, companyID string) ([]domain.Subscription, error)
}

type subscriptionRepository struct {
	mu     sync.RWMutex
	nextID int
	subs   map[string][]domain.Subscription
}

// NewSubscriptionRepository instantiates an in-memory repository.
func NewSubscriptionRepository() SubscriptionRepository {
	return &subscriptionRepository{subs: make(map[string][]domain.Subscription)}
}

func (r *subscriptionRepository) Create(_ context.Context, companyID string, sub *domain.Subscription) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	sub.ID = r.nextID
	r.subs[companyID] = append(r.subs[companyID], *sub)
	return nil
}

func (r *subscriptionRepository) ListByCompany(_ context.Context, companyID string) ([]domain.Subscription, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]domain.Subscription(nil), r.subs[companyID]...), nil
}
