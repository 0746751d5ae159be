package domain

import "errors"

var (
	ErrUnauthorized = errors.New("not authenticated")
	ErrForbidden    = errors.New("operation not allowed")

	ErrChannelNotFound      = errors.New("channel not found")
	ErrMessageNotFound      = errors.New("message not found")
	ErrNotificationNotFound = errors.New("notification not found")
	ErrNotMember            = errors.New("user is not a channel member")
	ErrAlreadyMember        = errors.New("user already a channel member")

	ErrValidation   = errors.New("validation failed")
	ErrSlowConsumer = errors.New("outbound buffer exceeded")
)
