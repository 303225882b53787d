package server

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/kilianp07/dockyard/core/model"
)

// statusOf maps a domain error to an HTTP status code.
func statusOf(err error) int {
	switch {
	case errors.Is(err, model.ErrNotFound):
		return fiber.StatusNotFound
	case errors.Is(err, model.ErrInvalidTransition),
		errors.Is(err, model.ErrResourceUnavailable),
		errors.Is(err, model.ErrInvalidRequest):
		return fiber.StatusBadRequest
	}
	var fe *fiber.Error
	if errors.As(err, &fe) {
		return fe.Code
	}
	return fiber.StatusInternalServerError
}

func writeError(c *fiber.Ctx, err error) error {
	return c.Status(statusOf(err)).JSON(fiber.Map{"error": err.Error()})
}

// errorHandler is installed as the fiber ErrorHandler so that errors escaping
// a handler keep the same body shape.
func errorHandler(c *fiber.Ctx, err error) error {
	return writeError(c, err)
}
