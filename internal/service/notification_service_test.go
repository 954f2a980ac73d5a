package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/abdoElHodaky/smartfixapi/internal/models"
	"github.com/abdoElHodaky/smartfixapi/internal/repository"
)

// mockNotificationRepo — хранилище уведомлений в памяти.
type mockNotificationRepo struct {
	mu      sync.Mutex
	created []models.Notification
	failing bool
}

func (m *mockNotificationRepo) Create(ctx context.Context, notification *models.Notification) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failing {
		return assert.AnError
	}
	notification.ID = uuid.New()
	notification.CreatedAt = time.Now()
	m.created = append(m.created, *notification)
	return nil
}

func (m *mockNotificationRepo) ListByUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]models.Notification, error) {
	return nil, nil
}

func (m *mockNotificationRepo) MarkAsRead(ctx context.Context, id, userID uuid.UUID) error { return nil }

func (m *mockNotificationRepo) MarkAllAsRead(ctx context.Context, userID uuid.UUID) error { return nil }

func (m *mockNotificationRepo) CountUnread(ctx context.Context, userID uuid.UUID) (int, error) {
	return 0, nil
}

// mockBroadcaster считает доставки в WebSocket.
type mockBroadcaster struct {
	mu     sync.Mutex
	pushed []string
}

func (m *mockBroadcaster) BroadcastToUser(userID uuid.UUID, event string, data any) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pushed = append(m.pushed, event)
	return nil
}

// stubSMSSender записывает отправленные SMS.
type stubSMSSender struct {
	mu   sync.Mutex
	sent []string
}

func (s *stubSMSSender) Send(to, body string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sent = append(s.sent, to)
	return nil
}

// stubPhoneDirectory отдаёт профиль исполнителя по userID.
type stubPhoneDirectory struct {
	byUserID map[uuid.UUID]*models.ServiceProvider
}

func (s *stubPhoneDirectory) GetByUserID(ctx context.Context, userID uuid.UUID) (*models.ServiceProvider, error) {
	if p, ok := s.byUserID[userID]; ok {
		return p, nil
	}
	return nil, repository.ErrProviderNotFound
}

func TestNotifySMSDispatch(t *testing.T) {
	ctx := context.Background()
	phone := "+79990001122"

	providerUser := uuid.New()
	noPhoneUser := uuid.New()
	customerUser := uuid.New()

	phones := &stubPhoneDirectory{byUserID: map[uuid.UUID]*models.ServiceProvider{
		providerUser: {ID: uuid.New(), UserID: providerUser, Phone: &phone},
		noPhoneUser:  {ID: uuid.New(), UserID: noPhoneUser},
	}}

	newService := func(sms SMSSender) (*NotificationService, *mockNotificationRepo, *mockBroadcaster) {
		repo := &mockNotificationRepo{}
		hub := &mockBroadcaster{}
		return &NotificationService{repo: repo, hub: hub, phones: phones, sms: sms}, repo, hub
	}

	t.Run("исполнитель с телефоном получает sms", func(t *testing.T) {
		sender := &stubSMSSender{}
		svc, repo, hub := newService(sender)

		_, err := svc.Notify(ctx, providerUser, EventNewMatch, map[string]any{"x": 1})
		require.NoError(t, err)

		assert.Len(t, repo.created, 1)
		assert.Len(t, hub.pushed, 1)
		require.Len(t, sender.sent, 1)
		assert.Equal(t, phone, sender.sent[0])
	})

	t.Run("без телефона в профиле sms не уходит", func(t *testing.T) {
		sender := &stubSMSSender{}
		svc, repo, _ := newService(sender)

		_, err := svc.Notify(ctx, noPhoneUser, EventNewMatch, nil)
		require.NoError(t, err)

		assert.Len(t, repo.created, 1)
		assert.Empty(t, sender.sent)
	})

	t.Run("получатель без профиля исполнителя пропускается", func(t *testing.T) {
		sender := &stubSMSSender{}
		svc, repo, _ := newService(sender)

		_, err := svc.Notify(ctx, customerUser, EventProposalAccepted, nil)
		require.NoError(t, err)

		assert.Len(t, repo.created, 1)
		assert.Empty(t, sender.sent)
	})

	t.Run("событие без sms-текста не дублируется", func(t *testing.T) {
		sender := &stubSMSSender{}
		svc, _, _ := newService(sender)

		_, err := svc.Notify(ctx, providerUser, EventProposalReceived, nil)
		require.NoError(t, err)

		assert.Empty(t, sender.sent)
	})

	t.Run("без настроенного twilio канал отключён", func(t *testing.T) {
		svc, repo, _ := newService(nil)

		_, err := svc.Notify(ctx, providerUser, EventNewMatch, nil)
		require.NoError(t, err)

		assert.Len(t, repo.created, 1)
	})

	t.Run("сбой записи в БД останавливает доставку", func(t *testing.T) {
		sender := &stubSMSSender{}
		svc, repo, hub := newService(sender)
		repo.failing = true

		_, err := svc.Notify(ctx, providerUser, EventNewMatch, nil)
		require.Error(t, err)

		assert.Empty(t, hub.pushed)
		assert.Empty(t, sender.sent)
	})
}

func TestSMSBodyCoversProviderEvents(t *testing.T) {
	for _, event := range []string{EventNewMatch, EventProposalAccepted, EventCompletionApproved, EventRequestCancelled} {
		assert.NotEmpty(t, smsBody(event), "событие %s должно иметь sms-текст", event)
	}
	for _, event := range []string{EventProposalReceived, EventServiceStarted, EventServiceCompleted} {
		assert.Empty(t, smsBody(event), "событие %s не дублируется по sms", event)
	}
}
