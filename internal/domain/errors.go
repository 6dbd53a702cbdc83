package domain

import "errors"

var (
	ErrUserNotFound         = errors.New("user not found")
	ErrConversationNotFound = errors.New("conversation not found")
	ErrMessageNotFound      = errors.New("message not found")
	ErrNotAuthorized        = errors.New("not authorized")
	ErrAlreadyParticipant   = errors.New("user already in the conversation")
	ErrValidation           = errors.New("invalid request")
)
