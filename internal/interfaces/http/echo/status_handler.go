package echo

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	app "github.com/mohammadpnp/hana-migration/internal/application/migration"
	domain "github.com/mohammadpnp/hana-migration/internal/domain/migration"
)

type StatusHandler struct {
	useCase app.GetMigrationStatus
}

func NewStatusHandler(useCase app.GetMigrationStatus) *StatusHandler {
	return &StatusHandler{useCase: useCase}
}

func (h *StatusHandler) GetStatus(c echo.Context) error {
	out, err := h.useCase.Execute(c.Request().Context(), app.GetMigrationStatusInput{
		FileUUID: c.Param("file_uuid"),
	})
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrInvalidJobID):
			return c.JSON(http.StatusBadRequest, errorResponse("invalid_file_uuid", "file_uuid is required"))
		case errors.Is(err, app.ErrStatusNotFound):
			return c.JSON(http.StatusNotFound, errorResponse("not_found", "file_uuid not found"))
		case errors.Is(err, app.ErrStatusEmpty):
			return c.JSON(http.StatusBadRequest, errorResponse("no_status", "no status found for file_uuid"))
		}

		logger.Errorf("get status %q: %v", c.Param("file_uuid"), err)
		return c.JSON(http.StatusInternalServerError, errorResponse("internal_error", "failed to read migration status"))
	}

	return c.JSON(http.StatusOK, out)
}
