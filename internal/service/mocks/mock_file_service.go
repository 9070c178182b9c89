package mocks

import (
	"context"
	"io"

	"fileshare/internal/service"
	"github.com/stretchr/testify/mock"
)

type MockFileService struct {
	mock.Mock
}

func (m *MockFileService) Upload(ctx context.Context, r io.Reader, originalFilename string, size int64, pass string) (*service.UploadResult, error) {
	args := m.Called(ctx, r, originalFilename, size, pass)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.UploadResult), args.Error(1)
}

func (m *MockFileService) CheckPassword(ctx context.Context, id string) (bool, error) {
	args := m.Called(ctx, id)
	return args.Bool(0), args.Error(1)
}

func (m *MockFileService) Download(ctx context.Context, id string) (*service.FileStream, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.FileStream), args.Error(1)
}

func (m *MockFileService) DownloadWithPassword(ctx context.Context, id, pass string) (*service.FileStream, error) {
	args := m.Called(ctx, id, pass)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.FileStream), args.Error(1)
}
