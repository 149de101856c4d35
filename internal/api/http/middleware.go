package http

import (
	"context"
	"errors"
	"runtime/debug"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/spec-kit/telepredict/internal/observability"
	apperrors "github.com/spec-kit/telepredict/pkg/util"
)

// RegisterMiddlewares attaches global middlewares such as error handling and logging.
func RegisterMiddlewares(app *fiber.App, logger *zap.Logger, metrics *observability.Metrics, timeout time.Duration) {
	logger = observability.OrNop(logger)
	if timeout > 0 {
		app.Use(requestTimeoutMiddleware(timeout))
	}
	app.Use(observability.RequestLogger(logger, metrics))
	app.Use(errorHandlingMiddleware(logger, metrics))
}

func requestTimeoutMiddleware(timeout time.Duration) fiber.Handler {
	return func(c *fiber.Ctx) error {
		ctx, cancel := context.WithTimeout(c.UserContext(), timeout)
		defer cancel()
		c.SetUserContext(ctx)
		return c.Next()
	}
}

// errorHandlingMiddleware renders errors the way the client parses them: a field map
// for validation errors, {"detail": ...} for everything else.
func errorHandlingMiddleware(logger *zap.Logger, metrics *observability.Metrics) fiber.Handler {
	return func(c *fiber.Ctx) (err error) {
		defer func() {
			if r := recover(); r != nil {
				logger.Error("panic recovered", zap.Any("panic", r), zap.ByteString("stack", debug.Stack()))
				err = apperrors.NewInternalError(nil)
			}
			if err == nil {
				return
			}
			status, code, body := errorBody(err)
			metrics.RecordError(c.Path(), c.Method(), code)
			if status >= 500 {
				logger.Error("request failed", zap.String("path", c.Path()), zap.Error(err))
			}
			_ = c.Status(status).JSON(body)
			err = nil
		}()
		return c.Next()
	}
}

func errorBody(err error) (int, string, any) {
	var fe *fiber.Error
	if errors.As(err, &fe) {
		return fe.Code, "HTTP_" + strconv.Itoa(fe.Code), fiber.Map{"detail": fe.Message}
	}
	de := apperrors.ToDomainError(err)
	if fields := de.FieldErrors(); len(fields) > 0 {
		return de.HTTPStatus, de.Code, fields
	}
	msg := de.Message
	if de.Code == apperrors.CodeInternal {
		msg = "A server error occurred."
	}
	return de.HTTPStatus, de.Code, fiber.Map{"detail": msg}
}
