package repository

import "errors"

// Ошибки уровня репозитория.
var (
	ErrRequestNotFound      = errors.New("service request not found")
	ErrProposalNotFound     = errors.New("proposal not found")
	ErrProviderNotFound     = errors.New("provider not found")
	ErrUserNotFound         = errors.New("user not found")
	ErrConversationNotFound = errors.New("conversation not found")
	ErrNotificationNotFound = errors.New("notification not found")

	// ErrRequestNotAvailable возвращается условной записью, когда
	// статус заявки уже не соответствует ожидаемому (проигранная
	// гонка принятия, повторный переход и т.п.).
	ErrRequestNotAvailable = errors.New("service request is not in the expected status")
)
