package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/samirrijal/brooks/internal/core/domain"
)

// APIError is a structured error response.
type APIError struct {
	Status    int    `json:"status"`
	Code      string `json:"code"`    // bad_request, validation_failed, unauthorized, upstream_failed, ...
	Message   string `json:"message"` // Human-readable message
	RequestID string `json:"request_id,omitempty"`
}

// newError builds a JSON error response with a request ID.
func newError(c *fiber.Ctx, status int, code string, message string) error {
	reqID, _ := c.Locals("requestid").(string)
	return c.Status(status).JSON(APIError{
		Status:    status,
		Code:      code,
		Message:   message,
		RequestID: reqID,
	})
}

func errBadRequest(c *fiber.Ctx, msg string) error {
	return newError(c, fiber.StatusBadRequest, "bad_request", msg)
}

func errUnprocessable(c *fiber.Ctx, msg string) error {
	return newError(c, fiber.StatusUnprocessableEntity, "validation_failed", msg)
}

func errUnauthorized(c *fiber.Ctx, msg string) error {
	return newError(c, fiber.StatusUnauthorized, "unauthorized", msg)
}

func errConflict(c *fiber.Ctx, msg string) error {
	return newError(c, fiber.StatusConflict, "conflict", msg)
}

func errInternal(c *fiber.Ctx, msg string) error {
	return newError(c, fiber.StatusInternalServerError, "internal_error", msg)
}

// errFromDomain maps a session failure onto its HTTP status.
func errFromDomain(c *fiber.Ctx, err error) error {
	msg := domain.UserMessage(err)
	switch domain.KindOf(err) {
	case domain.KindValidation:
		return errUnprocessable(c, msg)
	case domain.KindAuth:
		return errUnauthorized(c, msg)
	case domain.KindLocation:
		return newError(c, fiber.StatusServiceUnavailable, "location_unavailable", msg)
	case domain.KindQuery, domain.KindCreation, domain.KindGeocode:
		return newError(c, fiber.StatusBadGateway, "upstream_failed", msg)
	default:
		return errInternal(c, msg)
	}
}
