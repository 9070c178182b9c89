package handler

import (
	"context"
	"database/sql"
	"net/url"
	"time"

	"github.com/gofiber/fiber/v2"

	"fileshare/internal/logger"
	"fileshare/internal/service"
)

type checkPasswordResponse struct {
	RequiresPassword bool `json:"requiresPassword"`
}

type downloadRequest struct {
	Password string `json:"password" form:"password"`
}

// RegisterRoutes attaches HTTP routes to the provided Fiber app.
func RegisterRoutes(app *fiber.App, db *sql.DB, svc service.FileService, log *logger.Logger) {
	app.Get("/health", HealthCheck(db))
	app.Get("/healthz", LivenessProbe())

	app.Post("/upload", UploadFile(svc, log))
	app.Get("/check-password/:fileId", CheckPassword(svc, log))
	app.Get("/download/:fileId", DownloadFile(svc, log))
	app.Post("/download/:fileId", DownloadFileWithPassword(svc, log))
}

// HealthCheck reports whether the metadata store is reachable.
//
// @Summary Readiness probe
// @Tags health
// @Produce json
// @Success 200 {object} map[string]string
// @Failure 503 {object} errorPayload
// @Router /health [get]
func HealthCheck(db *sql.DB) fiber.Handler {
	return func(c *fiber.Ctx) error {
		ctx, cancel := context.WithTimeout(c.UserContext(), 2*time.Second)
		defer cancel()
		if err := db.PingContext(ctx); err != nil {
			return writeError(c, fiber.StatusServiceUnavailable, "SERVICE_UNAVAILABLE", "dependency unavailable")
		}
		return c.Status(fiber.StatusOK).JSON(fiber.Map{"status": "healthy"})
	}
}

// LivenessProbe always answers 200 while the process serves requests.
//
// @Summary Liveness probe
// @Tags health
// @Success 200
// @Router /healthz [get]
func LivenessProbe() fiber.Handler {
	return func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusOK)
	}
}

// UploadFile stores a multipart file (field "file") with an optional password
// (field "password") and answers with the share URL.
//
// @Summary Upload a file
// @Tags files
// @Accept multipart/form-data
// @Produce json
// @Param file formData file true "File to share"
// @Param password formData string false "Password required to download"
// @Success 200 {object} service.UploadResult
// @Failure 400 {object} errorPayload
// @Failure 500 {object} errorPayload
// @Router /upload [post]
func UploadFile(svc service.FileService, log *logger.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		fh, err := c.FormFile("file")
		if err != nil || fh.Size == 0 {
			return writeServiceError(c, log, service.ErrNoFile)
		}

		f, err := fh.Open()
		if err != nil {
			return writeError(c, fiber.StatusBadRequest, "FILE_OPEN_ERROR", "cannot open uploaded file")
		}
		defer f.Close()

		res, err := svc.Upload(c.UserContext(), f, fh.Filename, fh.Size, c.FormValue("password"))
		if err != nil {
			return writeServiceError(c, log, err)
		}
		return c.Status(fiber.StatusOK).JSON(res)
	}
}

// CheckPassword tells a client whether to prompt for a password before downloading.
//
// @Summary Check whether a file is password protected
// @Tags files
// @Produce json
// @Param fileId path string true "File ID"
// @Success 200 {object} checkPasswordResponse
// @Failure 404 {object} errorPayload
// @Failure 500 {object} errorPayload
// @Router /check-password/{fileId} [get]
func CheckPassword(svc service.FileService, log *logger.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		required, err := svc.CheckPassword(c.UserContext(), c.Params("fileId"))
		if err != nil {
			return writeServiceError(c, log, err)
		}
		return c.JSON(checkPasswordResponse{RequiresPassword: required})
	}
}

// DownloadFile streams a public file.
//
// @Summary Download a public file
// @Tags files
// @Produce octet-stream
// @Param fileId path string true "File ID"
// @Success 200 {file} binary
// @Failure 403 {object} errorPayload
// @Failure 404 {object} errorPayload
// @Failure 500 {object} errorPayload
// @Router /download/{fileId} [get]
func DownloadFile(svc service.FileService, log *logger.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		fs, err := svc.Download(c.UserContext(), c.Params("fileId"))
		if err != nil {
			return writeServiceError(c, log, err)
		}
		return sendFile(c, fs)
	}
}

// DownloadFileWithPassword streams a protected file once the password matches.
// The password may be sent as JSON or as a form field.
//
// @Summary Download a password protected file
// @Tags files
// @Accept json
// @Produce octet-stream
// @Param fileId path string true "File ID"
// @Param body body downloadRequest true "Password"
// @Success 200 {file} binary
// @Failure 400 {object} errorPayload
// @Failure 403 {object} errorPayload
// @Failure 404 {object} errorPayload
// @Failure 500 {object} errorPayload
// @Router /download/{fileId} [post]
func DownloadFileWithPassword(svc service.FileService, log *logger.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var req downloadRequest
		if len(c.Body()) > 0 {
			if err := c.BodyParser(&req); err != nil {
				return writeError(c, fiber.StatusBadRequest, "BAD_REQUEST", "invalid request body")
			}
		}

		fs, err := svc.DownloadWithPassword(c.UserContext(), c.Params("fileId"), req.Password)
		if err != nil {
			return writeServiceError(c, log, err)
		}
		return sendFile(c, fs)
	}
}

// sendFile streams fs under its original filename. The body is closed once
// the response has been written.
func sendFile(c *fiber.Ctx, fs *service.FileStream) error {
	c.Set(fiber.HeaderContentDisposition, contentDisposition(fs.Filename))
	c.Set(fiber.HeaderContentType, fiber.MIMEOctetStream)
	return c.Status(fiber.StatusOK).SendStream(fs.Body, int(fs.Size))
}

func contentDisposition(filename string) string {
	return `attachment; filename="` + url.PathEscape(filename) + `"`
}
