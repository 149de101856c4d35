package repository

import (
	"context"
	"sync"

	"github.com/spec-kit/telepredict/internal/domain"
)

// ClientRepository persists organization accounts.
type ClientRepository interface {
	Create(ctx context.Context, client *domain.Client) error
	GetByID(ctx context.Context, companyID string) (*domain.Client, error)
}

type clientRepository struct {
	mu      sync.RWMutex
	clients map[string]domain.Client
}

// NewClientRepository instantiates an in-memory repository.
func NewClientRepository() ClientRepository {
	return &clientRepository{clients: make(map[string]domain.Client)}
}

func (r *clientRepository) Create(_ context.Context, client *domain.Client) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.clients[client.CompanyID]; ok {
		return ErrAlreadyExists
	}
	r.clients[client.CompanyID] = *client
	return nil
}

func (r *clientRepository) GetByID(_ context.Context, companyID string) (*domain.Client, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	client, ok := r.clients[companyID]
	if !ok {
		return nil, ErrNotFound
	}
	return &client, nil
}
