package store

import (
	"context"

	"github.com/amishk599/hirewire/internal/model"
)

// NopStore is a no-op store used in dry-run mode. Nothing is written.
type NopStore struct{}

func NewNopStore() *NopStore { return &NopStore{} }

func (s *NopStore) Upsert(context.Context, model.Job) error { return nil }
func (s *NopStore) HealthCheck(context.Context) error       { return nil }
func (s *NopStore) Recent(context.Context, int) ([]model.Job, error) {
	return nil, nil
}
func (s *NopStore) Close() error { return nil }
