package api

import (
	"errors"
	"strings"

	"encompass-agent/encompass"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

type Error struct {
	Code    int    `json:"code"`
	Message string `json:"error"`
}

func (e Error) Error() string {
	return e.Message
}

func NewError(code int, msg string) Error {
	return Error{Code: code, Message: msg}
}

func ErrBadRequest() Error {
	return NewError(fiber.StatusBadRequest, "invalid JSON request")
}

type ValidationError struct {
	Status int               `json:"status"`
	Errors map[string]string `json:"errors"`
}

func (e ValidationError) Error() string {
	return "validation failed"
}

func NewValidationError(errs map[string]string) ValidationError {
	return ValidationError{Status: fiber.StatusUnprocessableEntity, Errors: errs}
}

func validationErrorFrom(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return NewError(fiber.StatusBadRequest, err.Error())
	}
	fields := make(map[string]string, len(verrs))
	for _, fe := range verrs {
		fields[strings.ToLower(fe.Field())] = "failed on '" + fe.Tag() + "'"
	}
	return NewValidationError(fields)
}

// NewErrorHandler maps handler errors to JSON bodies.
func NewErrorHandler(logger *zap.Logger) fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		var (
			apiErr   Error
			valErr   ValidationError
			fiberErr *fiber.Error
			upstream *encompass.APIError
		)
		switch {
		case errors.As(err, &apiErr):
		case errors.As(err, &valErr):
			return c.Status(valErr.Status).JSON(valErr)
		case errors.As(err, &fiberErr):
			apiErr = NewError(fiberErr.Code, fiberErr.Message)
		case errors.Is(err, encompass.ErrInvalidQuery):
			apiErr = NewError(fiber.StatusUnprocessableEntity, err.Error())
		case errors.As(err, &upstream):
			apiErr = NewError(fiber.StatusBadGateway, upstream.Error())
		default:
			apiErr = NewError(fiber.StatusInternalServerError, err.Error())
		}

		if apiErr.Code >= fiber.StatusInternalServerError {
			logger.Error("request failed",
				zap.String("method", c.Method()),
				zap.String("path", c.Path()),
				zap.Int("status", apiErr.Code),
				zap.Error(err))
		}
		return c.Status(apiErr.Code).JSON(apiErr)
	}
}
