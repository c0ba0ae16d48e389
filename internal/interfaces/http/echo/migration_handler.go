package echo

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	app "github.com/mohammadpnp/hana-migration/internal/application/migration"
	domain "github.com/mohammadpnp/hana-migration/internal/domain/migration"
)

type MigrationHandler struct {
	useCase app.StartMigration
}

type startMigrationRequest struct {
	FileUUID string `json:"file_uuid"`
	S3Link   string `json:"s3_link"`
}

type startMigrationResponse struct {
	Status   string `json:"status"`
	Message  string `json:"message"`
	FileUUID string `json:"file_uuid"`
}

func NewMigrationHandler(useCase app.StartMigration) *MigrationHandler {
	return &MigrationHandler{useCase: useCase}
}

func (h *MigrationHandler) StartMigration(c echo.Context) error {
	var req startMigrationRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, errorResponse("bad_request", "invalid request body"))
	}

	out, err := h.useCase.Execute(c.Request().Context(), app.StartMigrationInput{
		FileUUID: req.FileUUID,
		S3Link:   req.S3Link,
	})
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrInvalidJobID):
			return c.JSON(http.StatusBadRequest, errorResponse("invalid_file_uuid", "file_uuid must be a non-empty name without path separators"))
		case errors.Is(err, domain.ErrInvalidSourceLink):
			return c.JSON(http.StatusBadRequest, errorResponse("invalid_s3_link", "s3_link must look like s3://<bucket>/<key>"))
		case errors.Is(err, app.ErrJobInProgress):
			return c.JSON(http.StatusConflict, errorResponse("conflict", "a migration for this file_uuid is already running"))
		case errors.Is(err, app.ErrQueueFull), errors.Is(err, app.ErrWorkerStopped):
			return c.JSON(http.StatusServiceUnavailable, errorResponse("unavailable", "migration queue is full, retry later"))
		}

		logger.Errorf("start migration %q: %v", req.FileUUID, err)
		return c.JSON(http.StatusInternalServerError, errorResponse("internal_error", "failed to start migration"))
	}

	return c.JSON(http.StatusAccepted, startMigrationResponse{
		Status:   out.Status,
		Message:  "File conversion process started.",
		FileUUID: out.FileUUID,
	})
}
