package handlers

import (
	"realtime-backend/internal/apperr"

	"github.com/gofiber/fiber/v2"
)

// statusOf maps an application error code onto an HTTP status.
func statusOf(code apperr.Code) int {
	switch code {
	case apperr.CodeInvalidArgument:
		return fiber.StatusBadRequest
	case apperr.CodeNotFound:
		return fiber.StatusNotFound
	case apperr.CodePermissionDenied:
		return fiber.StatusForbidden
	case apperr.CodeAlreadyExists, apperr.CodeFailedPrecondition:
		return fiber.StatusConflict
	case apperr.CodeUnauthenticated:
		return fiber.StatusUnauthorized
	case apperr.CodeUnavailable:
		return fiber.StatusServiceUnavailable
	default:
		return fiber.StatusInternalServerError
	}
}

func writeError(c *fiber.Ctx, err error) error {
	code := apperr.CodeOf(err)
	if code == apperr.CodeUnknown {
		code = apperr.CodeInternal
	}
	return c.Status(statusOf(code)).JSON(fiber.Map{
		"error": apperr.MessageOf(err),
		"code":  code,
	})
}

func badRequest(c *fiber.Ctx, msg string) error {
	return writeError(c, apperr.InvalidArg(msg))
}
