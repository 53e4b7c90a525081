package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edstack/academia-api/internal/models"
	appErrors "github.com/edstack/academia-api/pkg/errors"
)

type periodRepoStub struct {
	tenantRows   []models.PeriodTemplate
	defaultRows  []models.PeriodTemplate
	replaced     []models.PeriodTemplate
	replaceCalls int
}

func (p *periodRepoStub) ListByTenant(ctx context.Context, tenantID string) ([]models.PeriodTemplate, error) {
	return p.tenantRows, nil
}

func (p *periodRepoStub) ListDefaults(ctx context.Context) ([]models.PeriodTemplate, error) {
	return p.defaultRows, nil
}

func (p *periodRepoStub) Replace(ctx context.Context, tenantID string, periods []models.PeriodTemplate) error {
	p.replaceCalls++
	p.replaced = periods
	return nil
}

func definePeriodsRequest() DefinePeriodsRequest {
	return DefinePeriodsRequest{Periods: []PeriodDefinition{
		{PeriodNumber: 1, StartTime: "08:00", EndTime: "08:55"},
		{PeriodNumber: 2, StartTime: "08:55", EndTime: "09:50"},
		{PeriodNumber: 3, StartTime: "09:50", EndTime: "10:10", IsBreak: true},
	}}
}

func TestPeriodTemplateServiceDefineReplacesGrid(t *testing.T) {
	repo := &periodRepoStub{}
	svc := NewPeriodTemplateService(repo, nil, nil)

	periods, err := svc.Define(context.Background(), "tenant-1", definePeriodsRequest())
	require.NoError(t, err)
	require.Len(t, periods, 3)
	assert.Equal(t, 1, repo.replaceCalls)
	assert.True(t, periods[2].IsBreak)
}

func TestPeriodTemplateServiceDefineRejectsDuplicateNumbers(t *testing.T) {
	repo := &periodRepoStub{}
	svc := NewPeriodTemplateService(repo, nil, nil)

	req := definePeriodsRequest()
	req.Periods[2].PeriodNumber = 1
	_, err := svc.Define(context.Background(), "tenant-1", req)
	require.Error(t, err)
	assert.True(t, appErrors.HasCode(err, appErrors.ErrDuplicatePeriodNumber))
	assert.Zero(t, repo.replaceCalls)
}

func TestPeriodTemplateServiceDefineRejectsInvertedRange(t *testing.T) {
	repo := &periodRepoStub{}
	svc := NewPeriodTemplateService(repo, nil, nil)

	req := definePeriodsRequest()
	req.Periods[0].StartTime = "09:00"
	req.Periods[0].EndTime = "09:00"
	_, err := svc.Define(context.Background(), "tenant-1", req)
	require.Error(t, err)
	assert.True(t, appErrors.HasCode(err, appErrors.ErrInvalidTimeRange))
}

func TestPeriodTemplateServiceDefineRejectsMalformedClock(t *testing.T) {
	repo := &periodRepoStub{}
	svc := NewPeriodTemplateService(repo, nil, nil)

	req := definePeriodsRequest()
	req.Periods[1].StartTime = "9 o'clock"
	_, err := svc.Define(context.Background(), "tenant-1", req)
	require.Error(t, err)
	assert.True(t, appErrors.HasCode(err, appErrors.ErrValidation))
}

func TestPeriodTemplateServiceDefineRejectsEmptyGrid(t *testing.T) {
	repo := &periodRepoStub{}
	svc := NewPeriodTemplateService(repo, nil, nil)

	_, err := svc.Define(context.Background(), "tenant-1", DefinePeriodsRequest{})
	require.Error(t, err)
	assert.True(t, appErrors.HasCode(err, appErrors.ErrValidation))
}

func TestPeriodTemplateServiceListPrefersTenantRows(t *testing.T) {
	repo := &periodRepoStub{
		tenantRows:  []models.PeriodTemplate{{PeriodNumber: 1, StartTime: "07:30", EndTime: "08:20"}},
		defaultRows: models.DefaultPeriodGrid(),
	}
	svc := NewPeriodTemplateService(repo, nil, nil)

	periods, err := svc.List(context.Background(), "tenant-1")
	require.NoError(t, err)
	require.Len(t, periods, 1)
	assert.Equal(t, "07:30", periods[0].StartTime)
}

func TestPeriodTemplateServiceListFallsBackToSeededDefaults(t *testing.T) {
	repo := &periodRepoStub{defaultRows: []models.PeriodTemplate{{PeriodNumber: 1, StartTime: "09:00", EndTime: "09:50"}}}
	svc := NewPeriodTemplateService(repo, nil, nil)

	periods, err := svc.List(context.Background(), "tenant-1")
	require.NoError(t, err)
	require.Len(t, periods, 1)
}

func TestPeriodTemplateServiceListFallsBackToBuiltinGrid(t *testing.T) {
	svc := NewPeriodTemplateService(&periodRepoStub{}, nil, nil)

	periods, err := svc.List(context.Background(), "tenant-1")
	require.NoError(t, err)
	assert.Len(t, periods, len(models.DefaultPeriodGrid()))
}

func TestPeriodTemplateServiceResolveUnknownPeriod(t *testing.T) {
	svc := NewPeriodTemplateService(&periodRepoStub{}, nil, nil)

	_, err := svc.Resolve(context.Background(), "tenant-1", 99)
	require.Error(t, err)
	assert.True(t, appErrors.HasCode(err, appErrors.ErrUnknownPeriod))
}

func TestPeriodTemplateServiceResolveBreakPeriod(t *testing.T) {
	svc := NewPeriodTemplateService(&periodRepoStub{}, nil, nil)

	period, err := svc.Resolve(context.Background(), "tenant-1", 3)
	require.NoError(t, err)
	assert.True(t, period.IsBreak)
}
