package mocks

import (
	"context"

	"github.com/IUBLibTech/ipguide/internal/model"
)

type MockSource struct {
	RecordsFunc func(ctx context.Context) ([]model.RawRecord, error)
}

func (m *MockSource) Records(ctx context.Context) ([]model.RawRecord, error) {
	return m.RecordsFunc(ctx)
}

type MockRepository struct {
	SaveRecordsFunc  func(ctx context.Context, records []model.RawRecord) error
	LoadRecordsFunc  func(ctx context.Context) ([]model.RawRecord, error)
	CountRecordsFunc func(ctx context.Context) (int64, error)
}

func (m *MockRepository) SaveRecords(ctx context.Context, records []model.RawRecord) error {
	return m.SaveRecordsFunc(ctx, records)
}

func (m *MockRepository) LoadRecords(ctx context.Context) ([]model.RawRecord, error) {
	return m.LoadRecordsFunc(ctx)
}

func (m *MockRepository) CountRecords(ctx context.Context) (int64, error) {
	return m.CountRecordsFunc(ctx)
}

type MockCache struct {
	SetLookupFunc func(ctx context.Context, ip string, rec *model.NetworkRecord) error
	GetLookupFunc func(ctx context.Context, ip string) (*model.NetworkRecord, error)
}

func (m *MockCache) SetLookup(ctx context.Context, ip string, rec *model.NetworkRecord) error {
	return m.SetLookupFunc(ctx, ip, rec)
}

func (m *MockCache) GetLookup(ctx context.Context, ip string) (*model.NetworkRecord, error) {
	return m.GetLookupFunc(ctx, ip)
}
