package service

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/twilio/twilio-go"
	twilioApi "github.com/twilio/twilio-go/rest/api/v2010"

	"github.com/abdoElHodaky/smartfixapi/internal/goroutine"
	"github.com/abdoElHodaky/smartfixapi/internal/logger"
	"github.com/abdoElHodaky/smartfixapi/internal/models"
)

// Имена событий, уходящих подписчикам.
const (
	EventProposalReceived   = "proposal_received"
	EventProposalAccepted   = "proposal_accepted"
	EventServiceStarted     = "service_started"
	EventServiceCompleted   = "service_completed"
	EventCompletionApproved = "completion_approved"
	EventRequestCancelled   = "request_cancelled"
	EventNewMatch           = "new_match"
)

// NotificationRepository описывает взаимодействие с хранилищем уведомлений.
type NotificationRepository interface {
	Create(ctx context.Context, notification *models.Notification) error
	ListByUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]models.Notification, error)
	MarkAsRead(ctx context.Context, id, userID uuid.UUID) error
	MarkAllAsRead(ctx context.Context, userID uuid.UUID) error
	CountUnread(ctx context.Context, userID uuid.UUID) (int, error)
}

// Broadcaster доставляет событие в открытые WebSocket соединения.
type Broadcaster interface {
	BroadcastToUser(userID uuid.UUID, event string, data any) error
}

// PhoneDirectory разрешает пользователя в профиль исполнителя с номером
// телефона для SMS-канала.
type PhoneDirectory interface {
	GetByUserID(ctx context.Context, userID uuid.UUID) (*models.ServiceProvider, error)
}

// SMSSender отправляет SMS получателю.
type SMSSender interface {
	Send(to, body string) error
}

// SMSConfig включает отправку SMS, если заданы учётные данные Twilio.
type SMSConfig struct {
	AccountSID string
	AuthToken  string
	FromNumber string
}

// NotificationService сохраняет уведомления и рассылает их по каналам:
// всегда в БД, затем в WebSocket, при наличии номера у исполнителя — SMS.
type NotificationService struct {
	repo   NotificationRepository
	hub    Broadcaster
	phones PhoneDirectory
	sms    SMSSender
}

// NewNotificationService создаёт новый сервис уведомлений.
func NewNotificationService(repo NotificationRepository, hub Broadcaster, phones PhoneDirectory, smsCfg SMSConfig) *NotificationService {
	s := &NotificationService{repo: repo, hub: hub, phones: phones}
	if smsCfg.AccountSID != "" && smsCfg.AuthToken != "" && smsCfg.FromNumber != "" {
		s.sms = &twilioSender{
			client: twilio.NewRestClientWithParams(twilio.ClientParams{
				Username: smsCfg.AccountSID,
				Password: smsCfg.AuthToken,
			}),
			from: smsCfg.FromNumber,
		}
	}
	return s
}

// Notify сохраняет уведомление и доставляет его пользователю.
func (s *NotificationService) Notify(ctx context.Context, userID uuid.UUID, event string, data any) (*models.Notification, error) {
	payloadBytes, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("notification service: marshal payload %w", err)
	}

	notification := &models.Notification{
		UserID:  userID,
		Kind:    event,
		Payload: payloadBytes,
	}

	if err := s.repo.Create(ctx, notification); err != nil {
		return nil, err
	}

	if s.hub != nil {
		if err := s.hub.BroadcastToUser(userID, event, data); err != nil {
			logger.Log.WithError(err).Warn("notification service: не удалось отправить в WebSocket")
		}
	}

	s.maybeSendSMS(ctx, userID, event)

	return notification, nil
}

// maybeSendSMS дублирует событие по SMS, если Twilio настроен, событие
// адресовано исполнителю и в его профиле указан телефон. Сбой канала не
// влияет на уже сохранённое уведомление.
func (s *NotificationService) maybeSendSMS(ctx context.Context, userID uuid.UUID, event string) {
	if s.sms == nil || s.phones == nil {
		return
	}

	body := smsBody(event)
	if body == "" {
		return
	}

	provider, err := s.phones.GetByUserID(ctx, userID)
	if err != nil || provider.Phone == nil || *provider.Phone == "" {
		return
	}

	if err := s.sms.Send(*provider.Phone, body); err != nil {
		if logger.Log != nil {
			logger.Log.WithError(err).WithField("user_id", userID).Warn("notification service: не удалось отправить sms")
		}
	}
}

// smsBody возвращает текст SMS для событий, адресованных исполнителю.
// Пустая строка означает, что событие по SMS не дублируется.
func smsBody(event string) string {
	switch event {
	case EventNewMatch:
		return "SmartFix: появилась подходящая заявка, откройте приложение"
	case EventProposalAccepted:
		return "SmartFix: ваш отклик принят клиентом"
	case EventCompletionApproved:
		return "SmartFix: клиент подтвердил завершение работ"
	case EventRequestCancelled:
		return "SmartFix: заявка отменена"
	default:
		return ""
	}
}

// NotifyMany рассылает одно событие группе пользователей, не блокируя
// вызывающего. Ошибки отдельных получателей только логируются.
func (s *NotificationService) NotifyMany(ctx context.Context, userIDs []uuid.UUID, event string, data any) {
	for _, userID := range userIDs {
		id := userID
		goroutine.SafeGoWithContext(ctx, func(ctx context.Context) {
			if _, err := s.Notify(ctx, id, event, data); err != nil {
				logger.Log.WithError(err).WithField("user_id", id).Warn("notification service: доставка не удалась")
			}
		})
	}
}

// twilioSender отправляет SMS через Twilio REST API.
type twilioSender struct {
	client *twilio.RestClient
	from   string
}

func (t *twilioSender) Send(to, body string) error {
	params := &twilioApi.CreateMessageParams{}
	params.SetTo(to)
	params.SetFrom(t.from)
	params.SetBody(body)

	resp, err := t.client.Api.CreateMessage(params)
	if err != nil {
		return fmt.Errorf("notification service: sms %w", err)
	}
	if resp.Sid != nil {
		logger.Log.WithField("sid", *resp.Sid).Debug("notification service: sms отправлено")
	}
	return nil
}

// ListNotifications возвращает уведомления пользователя.
func (s *NotificationService) ListNotifications(ctx context.Context, userID uuid.UUID, limit, offset int) ([]models.Notification, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	return s.repo.ListByUser(ctx, userID, limit, offset)
}

// MarkAsRead отмечает уведомление прочитанным.
func (s *NotificationService) MarkAsRead(ctx context.Context, id, userID uuid.UUID) error {
	return s.repo.MarkAsRead(ctx, id, userID)
}

// MarkAllAsRead отмечает все уведомления пользователя прочитанными.
func (s *NotificationService) MarkAllAsRead(ctx context.Context, userID uuid.UUID) error {
	return s.repo.MarkAllAsRead(ctx, userID)
}

// CountUnread возвращает количество непрочитанных уведомлений.
func (s *NotificationService) CountUnread(ctx context.Context, userID uuid.UUID) (int, error) {
	return s.repo.CountUnread(ctx, userID)
}
