package controller

import (
	"context"
	"errors"
	"time"

	"advising-chat/internal/identity"
	"advising-chat/internal/pkg/serverutils"
	"advising-chat/internal/remote"
	"advising-chat/internal/service"
	"advising-chat/internal/session"

	"github.com/gofiber/fiber/v2"
)

// statusFor maps session and remote failures to HTTP status codes and an error type.
func statusFor(err error) (int, string) {
	var httpErr *remote.HTTPError
	switch {
	case errors.Is(err, session.ErrEmptyQuery), errors.Is(err, session.ErrQueryTooLong):
		return fiber.StatusBadRequest, "invalid_query"
	case errors.Is(err, session.ErrBusy):
		return fiber.StatusConflict, "busy"
	case errors.Is(err, session.ErrIdentityChanged):
		return fiber.StatusConflict, "identity_changed"
	case errors.Is(err, session.ErrNotReady):
		return fiber.StatusConflict, "not_ready"
	case errors.Is(err, session.ErrClosed):
		return fiber.StatusGone, "session_closed"
	case errors.Is(err, session.ErrNoIdentity),
		errors.Is(err, remote.ErrCredential),
		errors.Is(err, identity.ErrNoSession):
		return fiber.StatusUnauthorized, "unauthenticated"
	case errors.Is(err, remote.ErrRateLimited):
		return fiber.StatusTooManyRequests, "rate_limited"
	case errors.Is(err, remote.ErrRemoteUnavailable):
		return fiber.StatusServiceUnavailable, "remote_unavailable"
	case errors.Is(err, context.DeadlineExceeded):
		return fiber.StatusGatewayTimeout, "remote_timeout"
	case errors.As(err, &httpErr), errors.Is(err, remote.ErrMalformedResponse):
		return fiber.StatusBadGateway, "remote_error"
	default:
		return fiber.StatusInternalServerError, "internal_error"
	}
}

func toAppError(err error) error {
	status, errType := statusFor(err)
	appErr := &serverutils.AppError{
		Status:  status,
		Type:    errType,
		Message: err.Error(),
		Err:     err,
	}
	var opErr *service.OperationError
	if errors.As(err, &opErr) {
		appErr.Message = opErr.Message
		appErr.Data = opErr.Session
	}
	return appErr
}

func callerFrom(ctx *fiber.Ctx) service.Caller {
	caller := service.Caller{}
	caller.UserId, _ = ctx.Locals(serverutils.LocalUserId).(string)
	caller.Token, _ = ctx.Locals(serverutils.LocalToken).(string)
	caller.ExpiresAt, _ = ctx.Locals(serverutils.LocalTokenExpiresAt).(time.Time)
	return caller
}
