package repository

import "context"

// Binding is the resolved project a manager kind is pointed at
type Binding struct {
	ProjectURL string `json:"projectUrl"`
	ProjectID  int    `json:"projectId"`
}

// BindingRepository persists project bindings and fetch statistics per record kind.
// Issue content is never stored.
type BindingRepository interface {
	// SaveBinding stores the resolved project of a kind
	SaveBinding(ctx context.Context, kind string, binding Binding) error

	// GetBinding returns the stored binding, or nil when none was saved
	GetBinding(ctx context.Context, kind string) (*Binding, error)

	// RecordFetch stores the outcome of a completed fetch and returns the fetch counter
	RecordFetch(ctx context.Context, kind string, count int, timestamp string) (int, error)

	// GetStatus retrieves every stored field of a kind
	GetStatus(ctx context.Context, kind string) (map[string]string, error)
}
