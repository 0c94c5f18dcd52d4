package mocks

import (
	"context"

	"github.com/brettbedarf/webvfs/filesystem"
	"github.com/stretchr/testify/mock"
)

// MockOperator implements webvfs.Operator for testing front ends
type MockOperator struct {
	mock.Mock
}

func (m *MockOperator) Mkdir(ctx context.Context, p string) error {
	return m.Called(ctx, p).Error(0)
}

func (m *MockOperator) ReadDir(ctx context.Context, p string) ([]string, error) {
	args := m.Called(ctx, p)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]string), args.Error(1)
}

func (m *MockOperator) ReadFile(ctx context.Context, p string) ([]byte, error) {
	args := m.Called(ctx, p)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]byte), args.Error(1)
}

func (m *MockOperator) WriteFile(ctx context.Context, p string, data []byte) error {
	return m.Called(ctx, p, data).Error(0)
}

func (m *MockOperator) Stat(ctx context.Context, p string) (filesystem.Stat, error) {
	args := m.Called(ctx, p)
	return args.Get(0).(filesystem.Stat), args.Error(1)
}

func (m *MockOperator) Remove(ctx context.Context, p string) error {
	return m.Called(ctx, p).Error(0)
}

func (m *MockOperator) RemoveDir(ctx context.Context, p string) error {
	return m.Called(ctx, p).Error(0)
}

func (m *MockOperator) Move(ctx context.Context, from, to string) error {
	return m.Called(ctx, from, to).Error(0)
}

func (m *MockOperator) Copy(ctx context.Context, from, to string) error {
	return m.Called(ctx, from, to).Error(0)
}

func (m *MockOperator) DumpState(ctx context.Context) ([]byte, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]byte), args.Error(1)
}
