package transport

import (
	"context"
	"fmt"

	"github.com/pkg/errors"
)

// Статусы получателя с точки зрения транспорта.
type Status string

const (
	StatusOK       Status = "OK"
	StatusBlocked  Status = "BLOCKED"
	StatusNotFound Status = "NOT_FOUND"
)

var (
	// ErrRecipientBlocked — получатель заблокировал бота. Ретраить бессмысленно.
	ErrRecipientBlocked = errors.New("recipient blocked")
	// ErrRecipientNotFound — чат не существует (удалён аккаунт и т.п.).
	ErrRecipientNotFound = errors.New("recipient not found")
)

// APIError — не-2xx ответ мессенджер-API с кодом и описанием.
type APIError struct {
	Code        int
	Description string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("messenger api %d: %s", e.Code, e.Description)
}

// IsPermanent сообщает, что доставка этому получателю не восстановится сама:
// такие подписки деактивируются вместо ретраев.
func IsPermanent(err error) bool {
	if errors.Is(err, ErrRecipientBlocked) || errors.Is(err, ErrRecipientNotFound) {
		return true
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Code == 403
	}
	return false
}

// Messenger — исходящий канал уведомлений. Единственная реализация в
// проде — Telegram Bot API, в тестах — фейки.
type Messenger interface {
	SendMessage(ctx context.Context, chatID int64, text string) error
	RecipientStatus(ctx context.Context, chatID int64) (Status, error)
}
