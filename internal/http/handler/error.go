package handler

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"fileshare/internal/http/middleware"
	"fileshare/internal/logger"
	"fileshare/internal/password"
	"fileshare/internal/service"
)

// errorPayload defines the standardized error response body.
type errorPayload struct {
	RequestID string        `json:"request_id"`
	Error     errorEnvelope `json:"error"`
}

type errorEnvelope struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// requestIDFromCtx extracts request_id previously stored by middleware.RequestID.
func requestIDFromCtx(c *fiber.Ctx) string {
	if v := c.Locals(middleware.RequestIDLocalKey); v != nil {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}

// writeError writes a standardized JSON error response without leaking internal errors.
//
// Parameters:
// - status: HTTP status code to return
// - code: machine-readable short error code (e.g., "NOT_FOUND", "PASSWORD_REQUIRED")
// - message: human-readable safe message (no internal details)
func writeError(c *fiber.Ctx, status int, code, message string) error {
	res := errorPayload{
		RequestID: requestIDFromCtx(c),
		Error: errorEnvelope{
			Code:    code,
			Message: message,
		},
	}
	return c.Status(status).JSON(res)
}

type serviceError struct {
	err     error
	status  int
	code    string
	message string
}

// serviceErrors maps service failures to client responses. Order matters only
// in that the first match wins; the sentinels do not wrap each other.
var serviceErrors = []serviceError{
	{service.ErrNoFile, fiber.StatusBadRequest, "NO_FILE", "no file uploaded"},
	{password.ErrPasswordTooLong, fiber.StatusBadRequest, "PASSWORD_TOO_LONG", "password must be at most 72 bytes"},
	{service.ErrNotFound, fiber.StatusNotFound, "NOT_FOUND", "file not found"},
	{service.ErrFileMissing, fiber.StatusNotFound, "FILE_MISSING", "file not found on server"},
	{service.ErrPasswordRequired, fiber.StatusForbidden, "PASSWORD_REQUIRED", "password required"},
	{service.ErrInvalidPassword, fiber.StatusForbidden, "INVALID_PASSWORD", "invalid password"},
	{service.ErrPasswordNotRequired, fiber.StatusForbidden, "PASSWORD_NOT_REQUIRED", "this file does not require a password"},
	{service.ErrStorageWrite, fiber.StatusInternalServerError, "STORAGE_ERROR", "could not store file"},
	{service.ErrMetadata, fiber.StatusInternalServerError, "DATABASE_ERROR", "database error"},
}

// writeServiceError translates err into the client response. Anything not in
// serviceErrors is reported as a generic internal error. Server-side failures
// are logged with the full error, which never reaches the client.
func writeServiceError(c *fiber.Ctx, log *logger.Logger, err error) error {
	status, code, message := fiber.StatusInternalServerError, "INTERNAL_ERROR", "internal server error"
	for _, se := range serviceErrors {
		if errors.Is(err, se.err) {
			status, code, message = se.status, se.code, se.message
			break
		}
	}
	if status >= fiber.StatusInternalServerError {
		log.Error("http", "request_failed", err, map[string]any{
			"request_id": requestIDFromCtx(c),
			"method":     c.Method(),
			"path":       c.Path(),
			"code":       code,
		})
	}
	return writeError(c, status, code, message)
}

// ErrorHandler returns a Fiber global error handler that standardizes error responses.
func ErrorHandler() fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		status := fiber.StatusInternalServerError
		if e, ok := err.(*fiber.Error); ok {
			status = e.Code
		}

		switch status {
		case fiber.StatusBadRequest:
			return writeError(c, status, "BAD_REQUEST", "bad request")
		case fiber.StatusNotFound:
			return writeError(c, status, "NOT_FOUND", "resource not found")
		case fiber.StatusMethodNotAllowed:
			return writeError(c, status, "METHOD_NOT_ALLOWED", "method not allowed")
		case fiber.StatusRequestEntityTooLarge:
			return writeError(c, status, "FILE_TOO_LARGE", "request body too large")
		default:
			return writeError(c, fiber.StatusInternalServerError, "INTERNAL_ERROR", "internal server error")
		}
	}
}
