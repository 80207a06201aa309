package mocks

import (
	"context"
	"io"

	"github.com/lorrc/field-metrics/internal/core/domain"
	"github.com/lorrc/field-metrics/internal/core/ports"
	"github.com/stretchr/testify/mock"
)

// MockRecordFetcher is a mock implementation of ports.RecordFetcher
type MockRecordFetcher struct {
	mock.Mock
}

func NewMockRecordFetcher() *MockRecordFetcher {
	return &MockRecordFetcher{}
}

func (m *MockRecordFetcher) FindRecords(ctx context.Context, q ports.RecordQuery) ([]domain.ServiceRecord, error) {
	args := m.Called(ctx, q)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.ServiceRecord), args.Error(1)
}

func (m *MockRecordFetcher) CountRecords(ctx context.Context, q ports.RecordQuery) (int64, error) {
	args := m.Called(ctx, q)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockRecordFetcher) GroupCount(ctx context.Context, q ports.RecordQuery, groupBy domain.Field) ([]ports.GroupCount, error) {
	args := m.Called(ctx, q, groupBy)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]ports.GroupCount), args.Error(1)
}

func (m *MockRecordFetcher) GroupAggregate(ctx context.Context, q ports.RecordQuery, groupBy domain.Field, sums ...domain.Field) ([]ports.GroupAggregate, error) {
	args := m.Called(ctx, q, groupBy, sums)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]ports.GroupAggregate), args.Error(1)
}

func (m *MockRecordFetcher) ListDomainEntities(ctx context.Context, kind domain.EntityKind) ([]domain.DomainEntity, error) {
	args := m.Called(ctx, kind)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.DomainEntity), args.Error(1)
}

// MockReportService is a mock implementation of ports.ReportService
type MockReportService struct {
	mock.Mock
}

func NewMockReportService() *MockReportService {
	return &MockReportService{}
}

func (m *MockReportService) Generate(ctx context.Context, req ports.ReportRequest) (*domain.Report, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Report), args.Error(1)
}

func (m *MockReportService) Views() []domain.ReportView {
	args := m.Called()
	if args.Get(0) == nil {
		return nil
	}
	return args.Get(0).([]domain.ReportView)
}

// MockExportService is a mock implementation of ports.ExportService.
// Set Payload to have Export write it on success.
type MockExportService struct {
	mock.Mock
	Payload []byte
}

func NewMockExportService() *MockExportService {
	return &MockExportService{}
}

func (m *MockExportService) Export(ctx context.Context, req ports.ReportRequest, format domain.ExportFormat, w io.Writer) error {
	args := m.Called(ctx, req, format, w)
	if err := args.Error(0); err != nil {
		return err
	}
	if len(m.Payload) > 0 {
		if _, err := w.Write(m.Payload); err != nil {
			return err
		}
	}
	return nil
}

var (
	_ ports.RecordFetcher = (*MockRecordFetcher)(nil)
	_ ports.ReportService = (*MockReportService)(nil)
	_ ports.ExportService = (*MockExportService)(nil)
)
