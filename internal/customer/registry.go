package customer

import (
	"context"
	"fmt"
	"sync"

	"github.com/flowerwork/iceberg/internal/common"
	"github.com/flowerwork/iceberg/internal/repository"
)

// Processor handles the customer-specific follow-up after a reconciliation
// commits: accounting submission, structured export, or whatever the next
// integration needs.
type Processor interface {
	Name() string
	Process(ctx context.Context, rec *repository.CompletedReconciliation) error
}

// Registry maps customer ids to their processors. New customers register a
// processor; dispatch code never changes.
type Registry struct {
	mu         sync.RWMutex
	processors map[string]Processor
}

func NewRegistry() *Registry {
	return &Registry{processors: make(map[string]Processor)}
}

func (r *Registry) Register(customerID string, p Processor) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.processors[customerID] = p
}

// Lookup returns the processor for a customer id, or ErrNotFound.
func (r *Registry) Lookup(customerID string) (Processor, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.processors[customerID]
	if !ok {
		return nil, fmt.Errorf("%w: no processor for customer %s", common.ErrNotFound, customerID)
	}
	return p, nil
}
