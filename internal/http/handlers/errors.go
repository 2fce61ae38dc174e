package handlers

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/keystone-market/backend/internal/http/dto"
	"github.com/keystone-market/backend/internal/models"
)

// respondError maps the sentinel error taxonomy onto HTTP statuses. Unknown
// errors are surfaced as 400 with the wrapped message, matching the rest of
// the handlers.
func respondError(c *fiber.Ctx, err error) error {
	status := fiber.StatusBadRequest
	switch {
	case errors.Is(err, models.ErrNotFound):
		status = fiber.StatusNotFound
	case errors.Is(err, models.ErrUnauthorized):
		status = fiber.StatusForbidden
	case errors.Is(err, models.ErrInvalidState),
		errors.Is(err, models.ErrConflict),
		errors.Is(err, models.ErrOutOfStock):
		status = fiber.StatusConflict
	case errors.Is(err, models.ErrLimitExceeded):
		status = fiber.StatusUnprocessableEntity
	}
	return c.Status(status).JSON(dto.ErrorResponse{Error: err.Error()})
}
