package handler

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"fileshare/internal/http/middleware"
	"fileshare/internal/logger"
	"fileshare/internal/password"
	"fileshare/internal/service"
	serviceMocks "fileshare/internal/service/mocks"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func multipartBody(t *testing.T, filename string, content []byte, fields map[string]string) (*bytes.Buffer, string) {
	t.Helper()
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	if filename != "" {
		part, err := writer.CreateFormFile("file", filename)
		require.NoError(t, err)
		_, err = part.Write(content)
		require.NoError(t, err)
	}
	for k, v := range fields {
		require.NoError(t, writer.WriteField(k, v))
	}
	require.NoError(t, writer.Close())
	return body, writer.FormDataContentType()
}

func decodeError(t *testing.T, resp *http.Response) errorPayload {
	t.Helper()
	var body errorPayload
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	return body
}

func streamOf(content string) *service.FileStream {
	return &service.FileStream{
		Filename: "report.pdf",
		Size:     int64(len(content)),
		Body:     io.NopCloser(strings.NewReader(content)),
	}
}

func TestHealthCheck(t *testing.T) {
	db, dbMock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	require.NoError(t, err)
	defer db.Close()

	app := fiber.New()
	app.Get("/health", HealthCheck(db))

	t.Run("healthy", func(t *testing.T) {
		dbMock.ExpectPing().WillReturnError(nil)

		req := httptest.NewRequest(http.MethodGet, "/health", nil)
		resp, _ := app.Test(req)

		assert.Equal(t, http.StatusOK, resp.StatusCode)

		var body map[string]string
		json.NewDecoder(resp.Body).Decode(&body)
		assert.Equal(t, "healthy", body["status"])
	})

	t.Run("unhealthy", func(t *testing.T) {
		dbMock.ExpectPing().WillReturnError(errors.New("db error"))

		req := httptest.NewRequest(http.MethodGet, "/health", nil)
		resp, _ := app.Test(req)

		assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
		assert.Equal(t, "SERVICE_UNAVAILABLE", decodeError(t, resp).Error.Code)
	})
}

func TestLivenessProbe(t *testing.T) {
	app := fiber.New()
	app.Get("/healthz", LivenessProbe())

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	resp, _ := app.Test(req)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestUploadFile(t *testing.T) {
	mockSvc := new(serviceMocks.MockFileService)
	app := fiber.New()
	app.Post("/upload", UploadFile(mockSvc, logger.Nop()))

	t.Run("success", func(t *testing.T) {
		body, ct := multipartBody(t, "test.txt", []byte("hello world"), nil)
		mockSvc.On("Upload", mock.Anything, mock.Anything, "test.txt", int64(11), "").
			Return(&service.UploadResult{FileURL: "http://localhost:5000/download/abc"}, nil).Once()

		req := httptest.NewRequest(http.MethodPost, "/upload", body)
		req.Header.Set("Content-Type", ct)
		resp, _ := app.Test(req)

		assert.Equal(t, http.StatusOK, resp.StatusCode)

		var result map[string]string
		json.NewDecoder(resp.Body).Decode(&result)
		assert.Equal(t, map[string]string{"fileUrl": "http://localhost:5000/download/abc"}, result)
		mockSvc.AssertExpectations(t)
	})

	t.Run("password is forwarded", func(t *testing.T) {
		body, ct := multipartBody(t, "secret.txt", []byte("x"), map[string]string{"password": "hunter2"})
		mockSvc.On("Upload", mock.Anything, mock.Anything, "secret.txt", int64(1), "hunter2").
			Return(&service.UploadResult{FileURL: "u"}, nil).Once()

		req := httptest.NewRequest(http.MethodPost, "/upload", body)
		req.Header.Set("Content-Type", ct)
		resp, _ := app.Test(req)

		assert.Equal(t, http.StatusOK, resp.StatusCode)
		mockSvc.AssertExpectations(t)
	})

	t.Run("no file", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/upload", nil)
		resp, _ := app.Test(req)

		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		assert.Equal(t, "NO_FILE", decodeError(t, resp).Error.Code)
	})

	t.Run("wrong field name", func(t *testing.T) {
		body := &bytes.Buffer{}
		writer := multipart.NewWriter(body)
		part, _ := writer.CreateFormFile("document", "test.txt")
		part.Write([]byte("hello"))
		writer.Close()

		req := httptest.NewRequest(http.MethodPost, "/upload", body)
		req.Header.Set("Content-Type", writer.FormDataContentType())
		resp, _ := app.Test(req)

		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		assert.Equal(t, "NO_FILE", decodeError(t, resp).Error.Code)
	})

	t.Run("empty file", func(t *testing.T) {
		body, ct := multipartBody(t, "empty.txt", nil, nil)

		req := httptest.NewRequest(http.MethodPost, "/upload", body)
		req.Header.Set("Content-Type", ct)
		resp, _ := app.Test(req)

		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		assert.Equal(t, "NO_FILE", decodeError(t, resp).Error.Code)
	})

	failures := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{"password too long", password.ErrPasswordTooLong, http.StatusBadRequest, "PASSWORD_TOO_LONG"},
		{"storage write", fmt.Errorf("%w: disk full", service.ErrStorageWrite), http.StatusInternalServerError, "STORAGE_ERROR"},
		{"metadata insert", fmt.Errorf("%w: unique violation", service.ErrMetadata), http.StatusInternalServerError, "DATABASE_ERROR"},
		{"unexpected", errors.New("boom"), http.StatusInternalServerError, "INTERNAL_ERROR"},
	}
	for _, tc := range failures {
		t.Run(tc.name, func(t *testing.T) {
			body, ct := multipartBody(t, "test.txt", []byte("hello"), nil)
			mockSvc.On("Upload", mock.Anything, mock.Anything, "test.txt", mock.Anything, mock.Anything).
				Return(nil, tc.err).Once()

			req := httptest.NewRequest(http.MethodPost, "/upload", body)
			req.Header.Set("Content-Type", ct)
			resp, _ := app.Test(req)

			assert.Equal(t, tc.status, resp.StatusCode)
			assert.Equal(t, tc.code, decodeError(t, resp).Error.Code)
			mockSvc.AssertExpectations(t)
		})
	}
}

func TestCheckPassword(t *testing.T) {
	mockSvc := new(serviceMocks.MockFileService)
	app := fiber.New()
	app.Get("/check-password/:fileId", CheckPassword(mockSvc, logger.Nop()))

	for _, required := range []bool{true, false} {
		t.Run(fmt.Sprintf("requires password %v", required), func(t *testing.T) {
			id := uuid.NewString()
			mockSvc.On("CheckPassword", mock.Anything, id).Return(required, nil).Once()

			req := httptest.NewRequest(http.MethodGet, "/check-password/"+id, nil)
			resp, _ := app.Test(req)

			assert.Equal(t, http.StatusOK, resp.StatusCode)
			var result map[string]bool
			json.NewDecoder(resp.Body).Decode(&result)
			assert.Equal(t, map[string]bool{"requiresPassword": required}, result)
			mockSvc.AssertExpectations(t)
		})
	}

	t.Run("not found", func(t *testing.T) {
		mockSvc.On("CheckPassword", mock.Anything, "missing").Return(false, service.ErrNotFound).Once()

		req := httptest.NewRequest(http.MethodGet, "/check-password/missing", nil)
		resp, _ := app.Test(req)

		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
		assert.Equal(t, "NOT_FOUND", decodeError(t, resp).Error.Code)
	})

	t.Run("metadata error", func(t *testing.T) {
		id := uuid.NewString()
		mockSvc.On("CheckPassword", mock.Anything, id).Return(false, fmt.Errorf("%w: timeout", service.ErrMetadata)).Once()

		req := httptest.NewRequest(http.MethodGet, "/check-password/"+id, nil)
		resp, _ := app.Test(req)

		assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
		assert.Equal(t, "DATABASE_ERROR", decodeError(t, resp).Error.Code)
	})
}

func TestDownloadFile(t *testing.T) {
	mockSvc := new(serviceMocks.MockFileService)
	app := fiber.New()
	app.Get("/download/:fileId", DownloadFile(mockSvc, logger.Nop()))

	t.Run("success", func(t *testing.T) {
		id := uuid.NewString()
		mockSvc.On("Download", mock.Anything, id).Return(streamOf("%PDF-1.4"), nil).Once()

		req := httptest.NewRequest(http.MethodGet, "/download/"+id, nil)
		resp, _ := app.Test(req)

		assert.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, `attachment; filename="report.pdf"`, resp.Header.Get("Content-Disposition"))
		assert.Equal(t, "application/octet-stream", resp.Header.Get("Content-Type"))
		b, _ := io.ReadAll(resp.Body)
		assert.Equal(t, "%PDF-1.4", string(b))
		mockSvc.AssertExpectations(t)
	})

	failures := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{"password required", service.ErrPasswordRequired, http.StatusForbidden, "PASSWORD_REQUIRED"},
		{"not found", service.ErrNotFound, http.StatusNotFound, "NOT_FOUND"},
		{"payload missing", service.ErrFileMissing, http.StatusNotFound, "FILE_MISSING"},
		{"storage read", errors.New("open payload: permission denied"), http.StatusInternalServerError, "INTERNAL_ERROR"},
	}
	for _, tc := range failures {
		t.Run(tc.name, func(t *testing.T) {
			id := uuid.NewString()
			mockSvc.On("Download", mock.Anything, id).Return(nil, tc.err).Once()

			req := httptest.NewRequest(http.MethodGet, "/download/"+id, nil)
			resp, _ := app.Test(req)

			assert.Equal(t, tc.status, resp.StatusCode)
			assert.Equal(t, tc.code, decodeError(t, resp).Error.Code)
			mockSvc.AssertExpectations(t)
		})
	}
}

func TestDownloadFileWithPassword(t *testing.T) {
	mockSvc := new(serviceMocks.MockFileService)
	app := fiber.New()
	app.Post("/download/:fileId", DownloadFileWithPassword(mockSvc, logger.Nop()))

	t.Run("json body", func(t *testing.T) {
		id := uuid.NewString()
		mockSvc.On("DownloadWithPassword", mock.Anything, id, "hunter2").Return(streamOf("secret"), nil).Once()

		req := httptest.NewRequest(http.MethodPost, "/download/"+id, strings.NewReader(`{"password":"hunter2"}`))
		req.Header.Set("Content-Type", "application/json")
		resp, _ := app.Test(req)

		assert.Equal(t, http.StatusOK, resp.StatusCode)
		b, _ := io.ReadAll(resp.Body)
		assert.Equal(t, "secret", string(b))
		mockSvc.AssertExpectations(t)
	})

	t.Run("form body", func(t *testing.T) {
		id := uuid.NewString()
		mockSvc.On("DownloadWithPassword", mock.Anything, id, "hunter2").Return(streamOf("secret"), nil).Once()

		req := httptest.NewRequest(http.MethodPost, "/download/"+id, strings.NewReader("password=hunter2"))
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		resp, _ := app.Test(req)

		assert.Equal(t, http.StatusOK, resp.StatusCode)
		mockSvc.AssertExpectations(t)
	})

	t.Run("empty body sends empty password", func(t *testing.T) {
		id := uuid.NewString()
		mockSvc.On("DownloadWithPassword", mock.Anything, id, "").Return(nil, service.ErrPasswordRequired).Once()

		req := httptest.NewRequest(http.MethodPost, "/download/"+id, nil)
		resp, _ := app.Test(req)

		assert.Equal(t, http.StatusForbidden, resp.StatusCode)
		assert.Equal(t, "PASSWORD_REQUIRED", decodeError(t, resp).Error.Code)
		mockSvc.AssertExpectations(t)
	})

	t.Run("malformed json", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/download/"+uuid.NewString(), strings.NewReader(`{"password":`))
		req.Header.Set("Content-Type", "application/json")
		resp, _ := app.Test(req)

		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		assert.Equal(t, "BAD_REQUEST", decodeError(t, resp).Error.Code)
	})

	failures := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{"wrong password", service.ErrInvalidPassword, http.StatusForbidden, "INVALID_PASSWORD"},
		{"public file", service.ErrPasswordNotRequired, http.StatusForbidden, "PASSWORD_NOT_REQUIRED"},
		{"not found", service.ErrNotFound, http.StatusNotFound, "NOT_FOUND"},
		{"payload missing", service.ErrFileMissing, http.StatusNotFound, "FILE_MISSING"},
	}
	for _, tc := range failures {
		t.Run(tc.name, func(t *testing.T) {
			id := uuid.NewString()
			mockSvc.On("DownloadWithPassword", mock.Anything, id, "pw").Return(nil, tc.err).Once()

			req := httptest.NewRequest(http.MethodPost, "/download/"+id, strings.NewReader(`{"password":"pw"}`))
			req.Header.Set("Content-Type", "application/json")
			resp, _ := app.Test(req)

			assert.Equal(t, tc.status, resp.StatusCode)
			assert.Equal(t, tc.code, decodeError(t, resp).Error.Code)
			mockSvc.AssertExpectations(t)
		})
	}
}

func TestContentDisposition(t *testing.T) {
	assert.Equal(t, `attachment; filename="report.pdf"`, contentDisposition("report.pdf"))
	assert.Equal(t, `attachment; filename="my%20report.pdf"`, contentDisposition("my report.pdf"))
	assert.Equal(t, `attachment; filename="%22quoted%22.txt"`, contentDisposition(`"quoted".txt`))
}

func TestWriteServiceError_HidesInternalDetails(t *testing.T) {
	var buf bytes.Buffer
	log := logger.New(&buf, time.UTC)

	mockSvc := new(serviceMocks.MockFileService)
	app := fiber.New()
	app.Use(middleware.RequestID())
	app.Get("/download/:fileId", DownloadFile(mockSvc, log))

	id := uuid.NewString()
	mockSvc.On("Download", mock.Anything, id).
		Return(nil, fmt.Errorf("%w: pq: relation \"files\" does not exist", service.ErrMetadata)).Once()

	req := httptest.NewRequest(http.MethodGet, "/download/"+id, nil)
	req.Header.Set(middleware.RequestIDHeader, "req-123")
	resp, _ := app.Test(req)

	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	raw, _ := io.ReadAll(resp.Body)
	assert.NotContains(t, string(raw), "relation")

	var body errorPayload
	require.NoError(t, json.Unmarshal(raw, &body))
	assert.Equal(t, "req-123", body.RequestID)
	assert.Equal(t, "DATABASE_ERROR", body.Error.Code)

	var entry map[string]any
	require.NoError(t, json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &entry))
	assert.Equal(t, "request_failed", entry["event"])
	assert.Equal(t, "req-123", entry["request_id"])
	assert.Contains(t, entry["error_message"], "relation")
}

func TestWriteServiceError_ClientErrorsNotLogged(t *testing.T) {
	var buf bytes.Buffer
	mockSvc := new(serviceMocks.MockFileService)
	app := fiber.New()
	app.Get("/download/:fileId", DownloadFile(mockSvc, logger.New(&buf, time.UTC)))

	mockSvc.On("Download", mock.Anything, "x").Return(nil, service.ErrNotFound).Once()

	resp, _ := app.Test(httptest.NewRequest(http.MethodGet, "/download/x", nil))

	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Empty(t, buf.String())
}

func TestErrorHandler(t *testing.T) {
	app := fiber.New(fiber.Config{ErrorHandler: ErrorHandler()})
	RegisterRoutes(app, nil, new(serviceMocks.MockFileService), logger.Nop())
	app.Get("/too-large", func(c *fiber.Ctx) error { return fiber.ErrRequestEntityTooLarge })
	app.Get("/bad", func(c *fiber.Ctx) error { return fiber.ErrBadRequest })
	app.Get("/unexpected", func(c *fiber.Ctx) error { return errors.New("unexpected") })

	tests := []struct {
		method string
		path   string
		status int
		code   string
	}{
		{http.MethodGet, "/nope", http.StatusNotFound, "NOT_FOUND"},
		{http.MethodDelete, "/download/" + uuid.NewString(), http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED"},
		{http.MethodGet, "/upload", http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED"},
		{http.MethodGet, "/too-large", http.StatusRequestEntityTooLarge, "FILE_TOO_LARGE"},
		{http.MethodGet, "/bad", http.StatusBadRequest, "BAD_REQUEST"},
		{http.MethodGet, "/unexpected", http.StatusInternalServerError, "INTERNAL_ERROR"},
	}
	for _, tc := range tests {
		t.Run(tc.method+" "+tc.path, func(t *testing.T) {
			resp, _ := app.Test(httptest.NewRequest(tc.method, tc.path, nil))

			assert.Equal(t, tc.status, resp.StatusCode)
			assert.Equal(t, tc.code, decodeError(t, resp).Error.Code)
		})
	}
}
