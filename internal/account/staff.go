package account

import (
	"context"
	"sync"

	"github.com/spec-kit/telepredict/internal/domain"
	"github.com/spec-kit/telepredict/internal/workflow"
	"github.com/spec-kit/telepredict/pkg/util"
)

// StaffRemote is the part of the service the history page uses.
type StaffRemote interface {
	History(ctx context.Context) ([]domain.HistoryItem, error)
	Export(ctx context.Context, uploadID int) ([]byte, error)
}

// StaffFlow is the upload history of a staff member.
type StaffFlow struct {
	remote StaffRemote

	mu        sync.Mutex
	exporting map[int]bool
}

// NewStaffFlow builds the flow.
func NewStaffFlow(remote StaffRemote) *StaffFlow {
	return &StaffFlow{remote: remote, exporting: make(map[int]bool)}
}

// History lists past uploads, newest first.
func (f *StaffFlow) History(ctx context.Context) ([]domain.HistoryItem, error) {
	return f.remote.History(ctx)
}

// ExportUpload downloads a past upload. A second export of the same upload while
// the first is outstanding is rejected.
func (f *StaffFlow) ExportUpload(ctx context.Context, uploadID int) ([]byte, string, error) {
	f.mu.Lock()
	if f.exporting[uploadID] {
		f.mu.Unlock()
		return nil, "", util.NewInFlight("This upload is already being exported.")
	}
	f.exporting[uploadID] = true
	f.mu.Unlock()

	defer func() {
		f.mu.Lock()
		delete(f.exporting, uploadID)
		f.mu.Unlock()
	}()

	data, err := f.remote.Export(ctx, uploadID)
	if err != nil {
		return nil, "", err
	}
	return data, workflow.ExportFilename(uploadID), nil
}
