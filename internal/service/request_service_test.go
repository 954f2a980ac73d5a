package service

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/abdoElHodaky/smartfixapi/internal/models"
	"github.com/abdoElHodaky/smartfixapi/internal/pkg/apperror"
	"github.com/abdoElHodaky/smartfixapi/internal/repository"
	"github.com/abdoElHodaky/smartfixapi/internal/validation"
)

// mockRequestRepo — хранилище заявок в памяти с той же семантикой
// условных переходов, что и у Postgres-реализации: переход выполняется
// только из ожидаемого статуса, иначе ErrRequestNotAvailable.
type mockRequestRepo struct {
	mu        sync.Mutex
	requests  map[uuid.UUID]*models.ServiceRequest
	proposals map[uuid.UUID]*models.Proposal
}

func newMockRequestRepo() *mockRequestRepo {
	return &mockRequestRepo{
		requests:  make(map[uuid.UUID]*models.ServiceRequest),
		proposals: make(map[uuid.UUID]*models.Proposal),
	}
}

func (m *mockRequestRepo) Create(ctx context.Context, request *models.ServiceRequest) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	request.ID = uuid.New()
	request.CreatedAt = time.Now()
	request.UpdatedAt = request.CreatedAt
	cp := *request
	m.requests[request.ID] = &cp
	return nil
}

func (m *mockRequestRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.ServiceRequest, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	request, ok := m.requests[id]
	if !ok {
		return nil, repository.ErrRequestNotFound
	}
	cp := *request
	return &cp, nil
}

func (m *mockRequestRepo) GetByIDWithProposals(ctx context.Context, id uuid.UUID) (*models.ServiceRequest, error) {
	request, err := m.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range m.proposals {
		if p.RequestID == id {
			request.Proposals = append(request.Proposals, *p)
		}
	}
	return request, nil
}

func (m *mockRequestRepo) UpdateFields(ctx context.Context, request *models.ServiceRequest) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	stored, ok := m.requests[request.ID]
	if !ok {
		return repository.ErrRequestNotFound
	}
	if stored.Status != models.RequestStatusPending {
		return repository.ErrRequestNotAvailable
	}
	cp := *request
	m.requests[request.ID] = &cp
	return nil
}

func (m *mockRequestRepo) ListByRequester(ctx context.Context, requesterID uuid.UUID) ([]models.ServiceRequest, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.ServiceRequest
	for _, r := range m.requests {
		if r.RequesterID == requesterID {
			out = append(out, *r)
		}
	}
	return out, nil
}

func (m *mockRequestRepo) ListByProvider(ctx context.Context, providerID uuid.UUID) ([]models.ServiceRequest, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.ServiceRequest
	for _, r := range m.requests {
		if r.ProviderID != nil && *r.ProviderID == providerID {
			out = append(out, *r)
		}
	}
	return out, nil
}

func (m *mockRequestRepo) CreateProposal(ctx context.Context, proposal *models.Proposal) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	proposal.ID = uuid.New()
	proposal.CreatedAt = time.Now()
	cp := *proposal
	m.proposals[proposal.ID] = &cp
	return nil
}

func (m *mockRequestRepo) GetProposalByID(ctx context.Context, id uuid.UUID) (*models.Proposal, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	proposal, ok := m.proposals[id]
	if !ok {
		return nil, repository.ErrProposalNotFound
	}
	cp := *proposal
	return &cp, nil
}

func (m *mockRequestRepo) ListProposals(ctx context.Context, requestID uuid.UUID) ([]models.Proposal, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.Proposal
	for _, p := range m.proposals {
		if p.RequestID == requestID {
			out = append(out, *p)
		}
	}
	return out, nil
}

func (m *mockRequestRepo) HasProposalFrom(ctx context.Context, requestID, providerID uuid.UUID) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range m.proposals {
		if p.RequestID == requestID && p.ProviderID == providerID {
			return true, nil
		}
	}
	return false, nil
}

func (m *mockRequestRepo) WithdrawProposal(ctx context.Context, proposalID uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	proposal, ok := m.proposals[proposalID]
	if !ok {
		return repository.ErrProposalNotFound
	}
	if proposal.Status != models.ProposalStatusPending {
		return repository.ErrRequestNotAvailable
	}
	proposal.Status = models.ProposalStatusWithdrawn
	return nil
}

func (m *mockRequestRepo) AcceptProposal(ctx context.Context, requestID, proposalID, providerID uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	request, ok := m.requests[requestID]
	if !ok {
		return repository.ErrRequestNotFound
	}
	if request.Status != models.RequestStatusPending {
		return repository.ErrRequestNotAvailable
	}
	proposal, ok := m.proposals[proposalID]
	if !ok || proposal.Status != models.ProposalStatusPending {
		return repository.ErrRequestNotAvailable
	}
	request.Status = models.RequestStatusAccepted
	request.ProviderID = &providerID
	proposal.Status = models.ProposalStatusAccepted
	return nil
}

func (m *mockRequestRepo) Transition(ctx context.Context, requestID uuid.UUID, from, to string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	request, ok := m.requests[requestID]
	if !ok {
		return repository.ErrRequestNotFound
	}
	if request.Status != from {
		return repository.ErrRequestNotAvailable
	}
	request.Status = to
	return nil
}

func (m *mockRequestRepo) Complete(ctx context.Context, requestID uuid.UUID, notes string, images []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	request, ok := m.requests[requestID]
	if !ok {
		return repository.ErrRequestNotFound
	}
	if request.Status != models.RequestStatusInProgress {
		return repository.ErrRequestNotAvailable
	}
	request.Status = models.RequestStatusCompleted
	if notes != "" {
		request.CompletionNotes = &notes
	}
	request.CompletionImages = images
	return nil
}

func (m *mockRequestRepo) Approve(ctx context.Context, requestID uuid.UUID, paidAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	request, ok := m.requests[requestID]
	if !ok {
		return repository.ErrRequestNotFound
	}
	if request.Status != models.RequestStatusCompleted || request.PaymentStatus != models.PaymentStatusUnpaid {
		return repository.ErrRequestNotAvailable
	}
	request.CustomerApproval = true
	request.PaymentStatus = models.PaymentStatusPaid
	request.PaidAt = &paidAt
	return nil
}

func (m *mockRequestRepo) Cancel(ctx context.Context, requestID, cancelledBy uuid.UUID, reason string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	request, ok := m.requests[requestID]
	if !ok {
		return repository.ErrRequestNotFound
	}
	if request.Status == models.RequestStatusCompleted || request.Status == models.RequestStatusCancelled {
		return repository.ErrRequestNotAvailable
	}
	request.Status = models.RequestStatusCancelled
	request.CancelledBy = &cancelledBy
	if reason != "" {
		request.CancelReason = &reason
	}
	return nil
}

// mockProviderDirectory — каталог исполнителей в памяти.
type mockProviderDirectory struct {
	mu          sync.Mutex
	byID        map[uuid.UUID]*models.ServiceProvider
	byUserID    map[uuid.UUID]*models.ServiceProvider
	incremented map[uuid.UUID]int
	refreshed   map[uuid.UUID]int
}

func newMockProviderDirectory() *mockProviderDirectory {
	return &mockProviderDirectory{
		byID:        make(map[uuid.UUID]*models.ServiceProvider),
		byUserID:    make(map[uuid.UUID]*models.ServiceProvider),
		incremented: make(map[uuid.UUID]int),
		refreshed:   make(map[uuid.UUID]int),
	}
}

func (m *mockProviderDirectory) add(provider *models.ServiceProvider) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.byID[provider.ID] = provider
	m.byUserID[provider.UserID] = provider
}

func (m *mockProviderDirectory) GetByID(ctx context.Context, id uuid.UUID) (*models.ServiceProvider, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if p, ok := m.byID[id]; ok {
		return p, nil
	}
	return nil, repository.ErrProviderNotFound
}

func (m *mockProviderDirectory) GetByUserID(ctx context.Context, userID uuid.UUID) (*models.ServiceProvider, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if p, ok := m.byUserID[userID]; ok {
		return p, nil
	}
	return nil, repository.ErrProviderNotFound
}

func (m *mockProviderDirectory) IncrementCompletedJobs(ctx context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.incremented[id]++
	return nil
}

func (m *mockProviderDirectory) RefreshRating(ctx context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.refreshed[id]++
	return nil
}

// mockChatGateway считает создания канала по каждой заявке.
type mockChatGateway struct {
	mu       sync.Mutex
	channels map[uuid.UUID]int
}

func newMockChatGateway() *mockChatGateway {
	return &mockChatGateway{channels: make(map[uuid.UUID]int)}
}

func (m *mockChatGateway) CreateChannel(ctx context.Context, requestID, requesterID, providerUserID uuid.UUID) (*models.Conversation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.channels[requestID]++
	return &models.Conversation{
		ID:          uuid.New(),
		RequestID:   requestID,
		RequesterID: requesterID,
		ProviderID:  providerUserID,
	}, nil
}

type lifecycleFixture struct {
	service   *RequestService
	repo      *mockRequestRepo
	providers *mockProviderDirectory
	chat      *mockChatGateway

	requesterID  uuid.UUID
	providerUser uuid.UUID
	providerID   uuid.UUID
}

func newLifecycleFixture(t *testing.T) *lifecycleFixture {
	t.Helper()

	repo := newMockRequestRepo()
	providers := newMockProviderDirectory()
	chat := newMockChatGateway()

	f := &lifecycleFixture{
		service:      NewRequestService(repo, providers, chat),
		repo:         repo,
		providers:    providers,
		chat:         chat,
		requesterID:  uuid.New(),
		providerUser: uuid.New(),
		providerID:   uuid.New(),
	}
	f.service.SetClock(func() time.Time {
		return time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	})

	providers.add(&models.ServiceProvider{
		ID:          f.providerID,
		UserID:      f.providerUser,
		IsVerified:  true,
		IsAvailable: true,
	})

	return f
}

func (f *lifecycleFixture) validInput() CreateRequestInput {
	return CreateRequestInput{
		Category:               "plumbing",
		ServiceType:            "leak_repair",
		Title:                  "Починить кран на кухне",
		Description:            "Подтекает смеситель, нужна замена прокладки",
		ScheduledDate:          time.Date(2025, 6, 10, 10, 0, 0, 0, time.UTC),
		EstimatedDurationHours: 2,
		Longitude:              37.62,
		Latitude:               55.75,
		BudgetMin:              100,
		BudgetMax:              500,
	}
}

func (f *lifecycleFixture) createRequest(t *testing.T) *models.ServiceRequest {
	t.Helper()
	request, err := f.service.CreateRequest(context.Background(), f.requesterID, f.validInput())
	require.NoError(t, err)
	return request
}

func (f *lifecycleFixture) submitProposal(t *testing.T, requestID uuid.UUID) *models.Proposal {
	t.Helper()
	proposal, err := f.service.SubmitProposal(context.Background(), requestID, f.providerUser, 300, nil)
	require.NoError(t, err)
	return proposal
}

func TestCreateRequestDefaults(t *testing.T) {
	f := newLifecycleFixture(t)

	request := f.createRequest(t)

	assert.Equal(t, models.RequestStatusPending, request.Status)
	assert.Equal(t, models.PriorityMedium, request.Priority)
	assert.Equal(t, models.PaymentStatusUnpaid, request.PaymentStatus)
	assert.Nil(t, request.ProviderID)
	assert.NotEqual(t, uuid.Nil, request.ID)
}

func TestCreateRequestValidation(t *testing.T) {
	f := newLifecycleFixture(t)
	ctx := context.Background()

	cases := []struct {
		name   string
		mutate func(in *CreateRequestInput)
	}{
		{"пустой заголовок", func(in *CreateRequestInput) { in.Title = "" }},
		{"бюджет min больше max", func(in *CreateRequestInput) { in.BudgetMin = 600; in.BudgetMax = 500 }},
		{"дата в прошлом", func(in *CreateRequestInput) {
			in.ScheduledDate = time.Date(2025, 5, 1, 0, 0, 0, 0, time.UTC)
		}},
		{"широта вне диапазона", func(in *CreateRequestInput) { in.Latitude = 91 }},
		{"требования слишком длинные", func(in *CreateRequestInput) {
			long := strings.Repeat("а", validation.MaxRequirementsLength+1)
			in.Requirements = &long
		}},
		{"длительность вне диапазона", func(in *CreateRequestInput) { in.EstimatedDurationHours = 30 }},
		{"неизвестный приоритет", func(in *CreateRequestInput) { in.Priority = "critical" }},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			in := f.validInput()
			tc.mutate(&in)

			_, err := f.service.CreateRequest(ctx, f.requesterID, in)
			require.Error(t, err)
			assert.True(t, apperror.IsValidation(err), "ожидалась ошибка валидации, получено: %v", err)
			// Валидация отклоняет запись до любого обращения к хранилищу.
			assert.Empty(t, f.repo.requests)
		})
	}
}

func TestUpdateRequestGuards(t *testing.T) {
	f := newLifecycleFixture(t)
	ctx := context.Background()
	request := f.createRequest(t)

	newTitle := "Новый заголовок заявки"

	t.Run("чужая заявка запрещена", func(t *testing.T) {
		_, err := f.service.UpdateRequest(ctx, request.ID, uuid.New(), UpdateRequestInput{Title: &newTitle})
		assert.True(t, apperror.IsForbidden(err))
	})

	t.Run("владелец меняет pending заявку", func(t *testing.T) {
		updated, err := f.service.UpdateRequest(ctx, request.ID, f.requesterID, UpdateRequestInput{Title: &newTitle})
		require.NoError(t, err)
		assert.Equal(t, newTitle, updated.Title)
	})

	t.Run("не pending заявка не изменяется", func(t *testing.T) {
		proposal := f.submitProposal(t, request.ID)
		_, err := f.service.AcceptProposal(ctx, request.ID, proposal.ID, f.requesterID)
		require.NoError(t, err)

		_, err = f.service.UpdateRequest(ctx, request.ID, f.requesterID, UpdateRequestInput{Title: &newTitle})
		assert.True(t, apperror.IsValidation(err))
	})
}

func TestSubmitProposalGuards(t *testing.T) {
	f := newLifecycleFixture(t)
	ctx := context.Background()
	request := f.createRequest(t)

	t.Run("не исполнитель получает forbidden", func(t *testing.T) {
		_, err := f.service.SubmitProposal(ctx, request.ID, uuid.New(), 300, nil)
		assert.True(t, apperror.IsForbidden(err))
	})

	t.Run("повторный отклик блокируется в любом статусе", func(t *testing.T) {
		proposal := f.submitProposal(t, request.ID)
		require.NoError(t, f.service.WithdrawProposal(ctx, proposal.ID, f.providerUser))

		// Отклик отозван, но повторный всё равно запрещён.
		_, err := f.service.SubmitProposal(ctx, request.ID, f.providerUser, 250, nil)
		assert.True(t, apperror.IsValidation(err))
	})

	t.Run("отклик на собственную заявку запрещён", func(t *testing.T) {
		// Клиент с профилем исполнителя всё равно не может откликнуться
		// на собственную заявку.
		f.providers.add(&models.ServiceProvider{ID: uuid.New(), UserID: f.requesterID})

		_, err := f.service.SubmitProposal(ctx, request.ID, f.requesterID, 300, nil)
		assert.True(t, apperror.IsValidation(err))
	})

	t.Run("неположительная цена отклоняется", func(t *testing.T) {
		_, err := f.service.SubmitProposal(ctx, request.ID, f.providerUser, 0, nil)
		assert.True(t, apperror.IsValidation(err))
	})
}

func TestAcceptProposalAssignsProviderOnce(t *testing.T) {
	f := newLifecycleFixture(t)
	ctx := context.Background()
	request := f.createRequest(t)
	proposal := f.submitProposal(t, request.ID)

	t.Run("только владелец принимает отклик", func(t *testing.T) {
		_, err := f.service.AcceptProposal(ctx, request.ID, proposal.ID, f.providerUser)
		assert.True(t, apperror.IsForbidden(err))
	})

	accepted, err := f.service.AcceptProposal(ctx, request.ID, proposal.ID, f.requesterID)
	require.NoError(t, err)

	assert.Equal(t, models.RequestStatusAccepted, accepted.Status)
	require.NotNil(t, accepted.ProviderID)
	assert.Equal(t, f.providerID, *accepted.ProviderID)
	assert.Equal(t, 1, f.chat.channels[request.ID], "канал общения создаётся ровно один раз")

	t.Run("повторное принятие отклоняется", func(t *testing.T) {
		_, err := f.service.AcceptProposal(ctx, request.ID, proposal.ID, f.requesterID)
		assert.True(t, apperror.IsValidation(err))
		assert.Equal(t, 1, f.chat.channels[request.ID])
	})
}

// TestAcceptProposalRace проверяет сценарий двух одновременных принятий:
// условная запись гарантирует, что исполнителем станет ровно один.
func TestAcceptProposalRace(t *testing.T) {
	f := newLifecycleFixture(t)
	ctx := context.Background()
	request := f.createRequest(t)

	// Второй исполнитель со своим откликом.
	secondUser := uuid.New()
	secondProvider := uuid.New()
	f.providers.add(&models.ServiceProvider{ID: secondProvider, UserID: secondUser})

	first := f.submitProposal(t, request.ID)
	second, err := f.service.SubmitProposal(ctx, request.ID, secondUser, 280, nil)
	require.NoError(t, err)

	proposalIDs := []uuid.UUID{first.ID, second.ID}

	var wg sync.WaitGroup
	errs := make([]error, len(proposalIDs))
	for i, proposalID := range proposalIDs {
		wg.Add(1)
		go func(i int, proposalID uuid.UUID) {
			defer wg.Done()
			_, errs[i] = f.service.AcceptProposal(ctx, request.ID, proposalID, f.requesterID)
		}(i, proposalID)
	}
	wg.Wait()

	var succeeded, lost int
	for _, err := range errs {
		if err == nil {
			succeeded++
			continue
		}
		lost++
		assert.True(t, apperror.IsValidation(err), "проигравший получает ошибку валидации, получено: %v", err)
	}

	assert.Equal(t, 1, succeeded, "гонку принятия выигрывает ровно один отклик")
	assert.Equal(t, 1, lost)

	final, err := f.repo.GetByID(ctx, request.ID)
	require.NoError(t, err)
	assert.Equal(t, models.RequestStatusAccepted, final.Status)
	require.NotNil(t, final.ProviderID)
	assert.Equal(t, 1, f.chat.channels[request.ID])
}

func TestLifecycleHappyPath(t *testing.T) {
	f := newLifecycleFixture(t)
	ctx := context.Background()
	request := f.createRequest(t)
	proposal := f.submitProposal(t, request.ID)

	_, err := f.service.AcceptProposal(ctx, request.ID, proposal.ID, f.requesterID)
	require.NoError(t, err)

	started, err := f.service.StartService(ctx, request.ID, f.providerUser)
	require.NoError(t, err)
	assert.Equal(t, models.RequestStatusInProgress, started.Status)

	completed, err := f.service.CompleteService(ctx, request.ID, f.providerUser, "работы выполнены", []string{"after.jpg"})
	require.NoError(t, err)
	assert.Equal(t, models.RequestStatusCompleted, completed.Status)
	assert.Equal(t, 1, f.providers.incremented[f.providerID], "счётчик выполненных заявок растёт один раз")

	approved, err := f.service.ApproveCompletion(ctx, request.ID, f.requesterID)
	require.NoError(t, err)
	assert.True(t, approved.CustomerApproval)
	assert.Equal(t, models.PaymentStatusPaid, approved.PaymentStatus)
	require.NotNil(t, approved.PaidAt)
	assert.Equal(t, 1, f.providers.refreshed[f.providerID])

	t.Run("повторное подтверждение отклоняется", func(t *testing.T) {
		_, err := f.service.ApproveCompletion(ctx, request.ID, f.requesterID)
		assert.True(t, apperror.IsValidation(err))
		assert.Equal(t, 1, f.providers.refreshed[f.providerID])
	})
}

func TestStartServiceOnlyAssignedProvider(t *testing.T) {
	f := newLifecycleFixture(t)
	ctx := context.Background()
	request := f.createRequest(t)

	t.Run("до назначения исполнителя запрещено", func(t *testing.T) {
		_, err := f.service.StartService(ctx, request.ID, f.providerUser)
		assert.True(t, apperror.IsForbidden(err))
	})

	proposal := f.submitProposal(t, request.ID)
	_, err := f.service.AcceptProposal(ctx, request.ID, proposal.ID, f.requesterID)
	require.NoError(t, err)

	t.Run("чужой исполнитель запрещён", func(t *testing.T) {
		otherUser := uuid.New()
		f.providers.add(&models.ServiceProvider{ID: uuid.New(), UserID: otherUser})

		_, err := f.service.StartService(ctx, request.ID, otherUser)
		assert.True(t, apperror.IsForbidden(err))
	})

	t.Run("владелец заявки не может начать работу", func(t *testing.T) {
		_, err := f.service.StartService(ctx, request.ID, f.requesterID)
		assert.True(t, apperror.IsForbidden(err))
	})
}

func TestCancelRequest(t *testing.T) {
	ctx := context.Background()

	t.Run("клиент отменяет pending заявку", func(t *testing.T) {
		f := newLifecycleFixture(t)
		request := f.createRequest(t)

		cancelled, err := f.service.CancelRequest(ctx, request.ID, f.requesterID, "передумал")
		require.NoError(t, err)
		assert.Equal(t, models.RequestStatusCancelled, cancelled.Status)
		require.NotNil(t, cancelled.CancelledBy)
		assert.Equal(t, f.requesterID, *cancelled.CancelledBy)
	})

	t.Run("назначенный исполнитель отменяет принятую заявку", func(t *testing.T) {
		f := newLifecycleFixture(t)
		request := f.createRequest(t)
		proposal := f.submitProposal(t, request.ID)
		_, err := f.service.AcceptProposal(ctx, request.ID, proposal.ID, f.requesterID)
		require.NoError(t, err)

		cancelled, err := f.service.CancelRequest(ctx, request.ID, f.providerUser, "не успеваю")
		require.NoError(t, err)
		assert.Equal(t, models.RequestStatusCancelled, cancelled.Status)
	})

	t.Run("посторонний пользователь запрещён", func(t *testing.T) {
		f := newLifecycleFixture(t)
		request := f.createRequest(t)

		_, err := f.service.CancelRequest(ctx, request.ID, uuid.New(), "")
		assert.True(t, apperror.IsForbidden(err))
	})

	t.Run("завершённая заявка не отменяется", func(t *testing.T) {
		f := newLifecycleFixture(t)
		request := f.createRequest(t)
		proposal := f.submitProposal(t, request.ID)
		_, err := f.service.AcceptProposal(ctx, request.ID, proposal.ID, f.requesterID)
		require.NoError(t, err)
		_, err = f.service.StartService(ctx, request.ID, f.providerUser)
		require.NoError(t, err)
		_, err = f.service.CompleteService(ctx, request.ID, f.providerUser, "", nil)
		require.NoError(t, err)

		_, err = f.service.CancelRequest(ctx, request.ID, f.requesterID, "")
		assert.True(t, apperror.IsValidation(err))
	})

	t.Run("повторная отмена отклоняется", func(t *testing.T) {
		f := newLifecycleFixture(t)
		request := f.createRequest(t)
		_, err := f.service.CancelRequest(ctx, request.ID, f.requesterID, "")
		require.NoError(t, err)

		_, err = f.service.CancelRequest(ctx, request.ID, f.requesterID, "")
		assert.True(t, apperror.IsValidation(err))
	})
}

func TestListProposalsOnlyOwner(t *testing.T) {
	f := newLifecycleFixture(t)
	ctx := context.Background()
	request := f.createRequest(t)
	f.submitProposal(t, request.ID)

	_, err := f.service.ListProposals(ctx, request.ID, f.providerUser)
	assert.True(t, apperror.IsForbidden(err))

	proposals, err := f.service.ListProposals(ctx, request.ID, f.requesterID)
	require.NoError(t, err)
	assert.Len(t, proposals, 1)
}
