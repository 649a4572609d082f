// Package providertest provides a testify mock of provider.Provider
package providertest

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/bjulian5/gg/internal/provider"
)

// Mock is a provider.Provider whose calls are scripted with On
type Mock struct {
	mock.Mock
}

var _ provider.Provider = (*Mock)(nil)

func (m *Mock) Name() string         { return "GitHub" }
func (m *Mock) Label() string        { return "PR" }
func (m *Mock) NumberPrefix() string { return "#" }

func (m *Mock) CheckInstalled(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

func (m *Mock) CheckAuth(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

func (m *Mock) Whoami(ctx context.Context) (string, error) {
	args := m.Called(ctx)
	return args.String(0), args.Error(1)
}

func (m *Mock) Create(ctx context.Context, req provider.CreateRequest) (*provider.ReviewRequest, error) {
	args := m.Called(ctx, req)
	rr, _ := args.Get(0).(*provider.ReviewRequest)
	return rr, args.Error(1)
}

func (m *Mock) View(ctx context.Context, number int) (*provider.ReviewRequest, error) {
	args := m.Called(ctx, number)
	rr, _ := args.Get(0).(*provider.ReviewRequest)
	return rr, args.Error(1)
}

func (m *Mock) UpdateTarget(ctx context.Context, number int, target string) error {
	return m.Called(ctx, number, target).Error(0)
}

func (m *Mock) UpdateDetails(ctx context.Context, number int, title, body *string) error {
	return m.Called(ctx, number, title, body).Error(0)
}

func (m *Mock) Merge(ctx context.Context, number int, opts provider.MergeOptions) (provider.MergeOutcome, error) {
	args := m.Called(ctx, number, opts)
	return args.Get(0).(provider.MergeOutcome), args.Error(1)
}

func (m *Mock) ListForBranch(ctx context.Context, branch string) ([]int, error) {
	args := m.Called(ctx, branch)
	numbers, _ := args.Get(0).([]int)
	return numbers, args.Error(1)
}

func (m *Mock) ListOpenByAuthor(ctx context.Context, author string) ([]provider.ReviewRequest, error) {
	args := m.Called(ctx, author)
	requests, _ := args.Get(0).([]provider.ReviewRequest)
	return requests, args.Error(1)
}

// Ready returns an open, approved, green review request
func Ready(number int) *provider.ReviewRequest {
	return &provider.ReviewRequest{
		Number:    number,
		State:     provider.StateOpen,
		Approved:  true,
		Mergeable: true,
		Checks:    provider.ChecksSuccess,
	}
}
