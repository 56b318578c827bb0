package middleware

import (
	"context"
	"log/slog"
	"runtime/debug"

	"github.com/aws/aws-lambda-go/events"

	"github.com/garden-fi/assistant-fulfillment/internal/api/response"
	"github.com/garden-fi/assistant-fulfillment/internal/domain/errors"
)

// RecoveryMiddleware is a middleware for recovering from panics
type RecoveryMiddleware struct{}

// NewRecoveryMiddleware creates a new recovery middleware
func NewRecoveryMiddleware() RecoveryMiddleware {
	return RecoveryMiddleware{}
}

// Handle handles the recovery middleware. A panic or an escaped error
// still produces a well-formed spoken response; the conversation ends
// gracefully instead of the platform seeing a 5xx.
func (m RecoveryMiddleware) Handle(next APIGatewayHandler) APIGatewayHandler {
	return func(ctx context.Context, logger *slog.Logger, request events.APIGatewayProxyRequest) (resp events.APIGatewayProxyResponse, err error) {
		defer func() {
			if r := recover(); r != nil {
				logger.Error("PANIC", "panic", r, "stack", string(debug.Stack()))
				resp = response.SpokenError("")
				err = nil
			}
		}()

		resp, err = next(ctx, logger, request)
		if err != nil {
			var appErr errors.AppError
			if e, ok := err.(errors.AppError); ok {
				appErr = e
			} else {
				appErr = errors.NewInternalError("An unexpected error occurred", err)
			}
			logger.Error("unhandled handler error", "code", appErr.Code, "error", appErr.Error(), "details", appErr.Details)
			return response.SpokenError(""), nil
		}
		return resp, nil
	}
}
