package service

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/abdoElHodaky/smartfixapi/internal/logger"
	"github.com/abdoElHodaky/smartfixapi/internal/models"
	"github.com/abdoElHodaky/smartfixapi/internal/pkg/apperror"
	"github.com/abdoElHodaky/smartfixapi/internal/repository"
	"github.com/abdoElHodaky/smartfixapi/internal/validation"
)

// RequestRepository описывает взаимодействие сервиса с хранилищем заявок.
// Методы-переходы выполняют условную запись по текущему статусу и
// возвращают repository.ErrRequestNotAvailable, если статус уже изменился.
type RequestRepository interface {
	Create(ctx context.Context, request *models.ServiceRequest) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.ServiceRequest, error)
	GetByIDWithProposals(ctx context.Context, id uuid.UUID) (*models.ServiceRequest, error)
	UpdateFields(ctx context.Context, request *models.ServiceRequest) error
	ListByRequester(ctx context.Context, requesterID uuid.UUID) ([]models.ServiceRequest, error)
	ListByProvider(ctx context.Context, providerID uuid.UUID) ([]models.ServiceRequest, error)

	CreateProposal(ctx context.Context, proposal *models.Proposal) error
	GetProposalByID(ctx context.Context, id uuid.UUID) (*models.Proposal, error)
	ListProposals(ctx context.Context, requestID uuid.UUID) ([]models.Proposal, error)
	HasProposalFrom(ctx context.Context, requestID, providerID uuid.UUID) (bool, error)
	WithdrawProposal(ctx context.Context, proposalID uuid.UUID) error

	AcceptProposal(ctx context.Context, requestID, proposalID, providerID uuid.UUID) error
	Transition(ctx context.Context, requestID uuid.UUID, from, to string) error
	Complete(ctx context.Context, requestID uuid.UUID, notes string, images []string) error
	Approve(ctx context.Context, requestID uuid.UUID, paidAt time.Time) error
	Cancel(ctx context.Context, requestID, cancelledBy uuid.UUID, reason string) error
}

// ProviderDirectory описывает каталог исполнителей. Каталог для ядра
// практически read-only: на запись делегируются только счётчик
// выполненных заявок и пересчёт рейтинга.
type ProviderDirectory interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.ServiceProvider, error)
	GetByUserID(ctx context.Context, userID uuid.UUID) (*models.ServiceProvider, error)
	IncrementCompletedJobs(ctx context.Context, id uuid.UUID) error
	RefreshRating(ctx context.Context, id uuid.UUID) error
}

// ChatGateway создаёт канал общения по заявке. Вызов идемпотентен:
// повторное создание для той же заявки возвращает существующий канал.
type ChatGateway interface {
	CreateChannel(ctx context.Context, requestID, requesterID, providerUserID uuid.UUID) (*models.Conversation, error)
}

// RequestService владеет жизненным циклом заявки: приём откликов,
// атомарное принятие, переходы статусов, отмена и подтверждение
// завершения.
type RequestService struct {
	repo      RequestRepository
	providers ProviderDirectory
	chat      ChatGateway
	now       func() time.Time
}

// NewRequestService создаёт сервис заявок.
func NewRequestService(repo RequestRepository, providers ProviderDirectory, chat ChatGateway) *RequestService {
	return &RequestService{
		repo:      repo,
		providers: providers,
		chat:      chat,
		now:       time.Now,
	}
}

// SetClock подменяет источник времени (для тестов).
func (s *RequestService) SetClock(now func() time.Time) {
	s.now = now
}

// CreateRequestInput описывает входные данные новой заявки.
type CreateRequestInput struct {
	Category               string
	ServiceType            string
	Title                  string
	Description            string
	Requirements           *string
	Images                 []string
	ScheduledDate          time.Time
	EstimatedDurationHours float64
	Longitude              float64
	Latitude               float64
	BudgetMin              float64
	BudgetMax              float64
	Priority               string
}

// UpdateRequestInput описывает изменяемые поля заявки. Обновляются
// только перечисленные здесь поля; ненулевые указатели — замена значения.
type UpdateRequestInput struct {
	Title                  *string
	Description            *string
	Requirements           *string
	Images                 []string
	ScheduledDate          *time.Time
	EstimatedDurationHours *float64
	BudgetMin              *float64
	BudgetMax              *float64
	Priority               *string
}

// CreateRequest создаёт заявку в статусе pending.
func (s *RequestService) CreateRequest(ctx context.Context, requesterID uuid.UUID, in CreateRequestInput) (*models.ServiceRequest, error) {
	if err := s.validateRequestData(in); err != nil {
		return nil, err
	}

	priority := in.Priority
	if priority == "" {
		priority = models.PriorityMedium
	}

	request := &models.ServiceRequest{
		RequesterID:            requesterID,
		Category:               in.Category,
		ServiceType:            in.ServiceType,
		Title:                  in.Title,
		Description:            in.Description,
		Requirements:           in.Requirements,
		Images:                 in.Images,
		ScheduledDate:          in.ScheduledDate,
		EstimatedDurationHours: in.EstimatedDurationHours,
		Longitude:              in.Longitude,
		Latitude:               in.Latitude,
		BudgetMin:              in.BudgetMin,
		BudgetMax:              in.BudgetMax,
		Priority:               priority,
		Status:                 models.RequestStatusPending,
		PaymentStatus:          models.PaymentStatusUnpaid,
	}

	if err := s.repo.Create(ctx, request); err != nil {
		return nil, apperror.Wrap(err, apperror.ErrCodeInternal, "не удалось сохранить заявку")
	}
	return request, nil
}

// validateRequestData выполняет структурную валидацию до любой записи.
func (s *RequestService) validateRequestData(in CreateRequestInput) error {
	if in.ServiceType == "" {
		return apperror.Validationf("тип услуги обязателен")
	}
	if err := validation.ValidateLength("заголовок", in.Title, validation.MinTitleLength, validation.MaxTitleLength); err != nil {
		return apperror.New(apperror.ErrCodeValidation, err.Error())
	}
	if err := validation.ValidateLength("описание", in.Description, validation.MinDescriptionLength, validation.MaxDescriptionLength); err != nil {
		return apperror.New(apperror.ErrCodeValidation, err.Error())
	}
	if in.Requirements != nil {
		if err := validation.ValidateLength("требования", *in.Requirements, 0, validation.MaxRequirementsLength); err != nil {
			return apperror.New(apperror.ErrCodeValidation, err.Error())
		}
	}
	if err := validation.ValidateDuration(in.EstimatedDurationHours); err != nil {
		return apperror.New(apperror.ErrCodeValidation, err.Error())
	}
	if err := validation.ValidateBudget(in.BudgetMin, in.BudgetMax); err != nil {
		return apperror.New(apperror.ErrCodeValidation, err.Error())
	}
	if err := validation.ValidateScheduledDate(in.ScheduledDate, s.now()); err != nil {
		return apperror.New(apperror.ErrCodeValidation, err.Error())
	}
	if err := validation.ValidateCoordinates(in.Longitude, in.Latitude); err != nil {
		return apperror.New(apperror.ErrCodeValidation, err.Error())
	}
	if in.Priority != "" {
		if _, ok := models.ValidPriorities[in.Priority]; !ok {
			return apperror.Validationf("некорректный приоритет %q", in.Priority)
		}
	}
	if len(in.Images) > validation.MaxImagesCount {
		return apperror.Validationf("не более %d изображений", validation.MaxImagesCount)
	}
	return nil
}

// GetRequest возвращает заявку вместе с откликами.
func (s *RequestService) GetRequest(ctx context.Context, id uuid.UUID) (*models.ServiceRequest, error) {
	request, err := s.repo.GetByIDWithProposals(ctx, id)
	if err != nil {
		return nil, s.mapRepoError(err)
	}
	return request, nil
}

// ListMyRequests возвращает заявки клиента.
func (s *RequestService) ListMyRequests(ctx context.Context, requesterID uuid.UUID) ([]models.ServiceRequest, error) {
	return s.repo.ListByRequester(ctx, requesterID)
}

// ListAssignedRequests возвращает заявки, закреплённые за исполнителем
// данного пользователя.
func (s *RequestService) ListAssignedRequests(ctx context.Context, actorUserID uuid.UUID) ([]models.ServiceRequest, error) {
	provider, err := s.providers.GetByUserID(ctx, actorUserID)
	if err != nil {
		return nil, s.mapRepoError(err)
	}
	return s.repo.ListByProvider(ctx, provider.ID)
}

// UpdateRequest заменяет разрешённые поля заявки. Допустимо только
// пока заявка в статусе pending и только её владельцем.
func (s *RequestService) UpdateRequest(ctx context.Context, requestID, actorID uuid.UUID, in UpdateRequestInput) (*models.ServiceRequest, error) {
	request, err := s.repo.GetByID(ctx, requestID)
	if err != nil {
		return nil, s.mapRepoError(err)
	}
	if request.RequesterID != actorID {
		return nil, apperror.ErrForbidden
	}
	if !transitionUpdateRequest.allowedFrom(request.Status) {
		return nil, apperror.Validationf("нельзя изменить заявку в статусе %s", request.Status)
	}

	if in.Title != nil {
		request.Title = *in.Title
	}
	if in.Description != nil {
		request.Description = *in.Description
	}
	if in.Requirements != nil {
		request.Requirements = in.Requirements
	}
	if in.Images != nil {
		request.Images = in.Images
	}
	if in.ScheduledDate != nil {
		request.ScheduledDate = *in.ScheduledDate
	}
	if in.EstimatedDurationHours != nil {
		request.EstimatedDurationHours = *in.EstimatedDurationHours
	}
	if in.BudgetMin != nil {
		request.BudgetMin = *in.BudgetMin
	}
	if in.BudgetMax != nil {
		request.BudgetMax = *in.BudgetMax
	}
	if in.Priority != nil {
		request.Priority = *in.Priority
	}

	// Повторная структурная валидация итогового состояния;
	// до неё никакая запись не выполняется.
	if err := s.validateRequestData(CreateRequestInput{
		Category:               request.Category,
		ServiceType:            request.ServiceType,
		Title:                  request.Title,
		Description:            request.Description,
		Requirements:           request.Requirements,
		Images:                 request.Images,
		ScheduledDate:          request.ScheduledDate,
		EstimatedDurationHours: request.EstimatedDurationHours,
		Longitude:              request.Longitude,
		Latitude:               request.Latitude,
		BudgetMin:              request.BudgetMin,
		BudgetMax:              request.BudgetMax,
		Priority:               request.Priority,
	}); err != nil {
		return nil, err
	}

	if err := s.repo.UpdateFields(ctx, request); err != nil {
		if errors.Is(err, repository.ErrRequestNotAvailable) {
			return nil, apperror.Validationf("заявка уже не в статусе pending")
		}
		return nil, s.mapRepoError(err)
	}
	return request, nil
}

// SubmitProposal добавляет отклик исполнителя на ожидающую заявку.
func (s *RequestService) SubmitProposal(ctx context.Context, requestID, actorUserID uuid.UUID, price float64, message *string) (*models.Proposal, error) {
	if err := validation.ValidatePrice(price); err != nil {
		return nil, apperror.New(apperror.ErrCodeValidation, err.Error())
	}
	if message != nil {
		if err := validation.ValidateLength("сообщение", *message, 0, validation.MaxMessageLength); err != nil {
			return nil, apperror.New(apperror.ErrCodeValidation, err.Error())
		}
	}

	provider, err := s.providers.GetByUserID(ctx, actorUserID)
	if err != nil {
		if apperror.IsNotFound(s.mapRepoError(err)) {
			return nil, apperror.New(apperror.ErrCodeForbidden, "откликаться могут только исполнители")
		}
		return nil, s.mapRepoError(err)
	}

	request, err := s.repo.GetByID(ctx, requestID)
	if err != nil {
		return nil, s.mapRepoError(err)
	}
	if !transitionSubmitProposal.allowedFrom(request.Status) {
		return nil, apperror.Validationf("нельзя откликнуться на заявку в статусе %s", request.Status)
	}
	if request.RequesterID == actorUserID {
		return nil, apperror.Validationf("нельзя откликнуться на собственную заявку")
	}

	// Любой существующий отклик исполнителя, включая отозванные и
	// отклонённые, блокирует повторный.
	exists, err := s.repo.HasProposalFrom(ctx, requestID, provider.ID)
	if err != nil {
		return nil, s.mapRepoError(err)
	}
	if exists {
		return nil, apperror.Validationf("вы уже откликались на эту заявку")
	}

	proposal := &models.Proposal{
		RequestID:  requestID,
		ProviderID: provider.ID,
		Price:      price,
		Message:    message,
		Status:     models.ProposalStatusPending,
	}
	if err := s.repo.CreateProposal(ctx, proposal); err != nil {
		return nil, apperror.Wrap(err, apperror.ErrCodeInternal, "не удалось сохранить отклик")
	}
	return proposal, nil
}

// WithdrawProposal отзывает собственный отклик, пока он не принят.
func (s *RequestService) WithdrawProposal(ctx context.Context, proposalID, actorUserID uuid.UUID) error {
	proposal, err := s.repo.GetProposalByID(ctx, proposalID)
	if err != nil {
		return s.mapRepoError(err)
	}

	provider, err := s.providers.GetByUserID(ctx, actorUserID)
	if err != nil || provider.ID != proposal.ProviderID {
		return apperror.ErrForbidden
	}
	if proposal.Status != models.ProposalStatusPending {
		return apperror.Validationf("нельзя отозвать отклик в статусе %s", proposal.Status)
	}

	if err := s.repo.WithdrawProposal(ctx, proposalID); err != nil {
		return s.mapRepoError(err)
	}
	return nil
}

// ListProposals возвращает отклики по заявке. Полный список виден
// только владельцу заявки.
func (s *RequestService) ListProposals(ctx context.Context, requestID, actorID uuid.UUID) ([]models.Proposal, error) {
	request, err := s.repo.GetByID(ctx, requestID)
	if err != nil {
		return nil, s.mapRepoError(err)
	}
	if request.RequesterID != actorID {
		return nil, apperror.ErrForbidden
	}
	return s.repo.ListProposals(ctx, requestID)
}

// AcceptProposal атомарно принимает отклик: условная запись по статусу
// pending исключает одновременное принятие двух откликов. Принятие —
// единственное событие, назначающее исполнителя заявке.
func (s *RequestService) AcceptProposal(ctx context.Context, requestID, proposalID, actorID uuid.UUID) (*models.ServiceRequest, error) {
	request, err := s.repo.GetByID(ctx, requestID)
	if err != nil {
		return nil, s.mapRepoError(err)
	}
	if request.RequesterID != actorID {
		return nil, apperror.ErrForbidden
	}
	if !transitionAcceptProposal.allowedFrom(request.Status) {
		return nil, apperror.Validationf("нельзя принять отклик для заявки в статусе %s", request.Status)
	}

	proposal, err := s.repo.GetProposalByID(ctx, proposalID)
	if err != nil {
		return nil, s.mapRepoError(err)
	}
	if proposal.RequestID != requestID {
		return nil, apperror.ErrProposalNotFound
	}
	if proposal.Status != models.ProposalStatusPending {
		return nil, apperror.Validationf("отклик уже в статусе %s", proposal.Status)
	}

	if err := s.repo.AcceptProposal(ctx, requestID, proposalID, proposal.ProviderID); err != nil {
		if errors.Is(err, repository.ErrRequestNotAvailable) {
			// Гонку принятия проиграли: заявку уже принял другой
			// отклик либо её отменили.
			return nil, apperror.Validationf("заявка уже недоступна")
		}
		return nil, s.mapRepoError(err)
	}

	// Канал общения создаётся ровно один раз; повторный вызов для той
	// же заявки идемпотентен. Сбой не откатывает уже принятый отклик.
	if provider, perr := s.providers.GetByID(ctx, proposal.ProviderID); perr == nil {
		if _, cerr := s.chat.CreateChannel(ctx, requestID, request.RequesterID, provider.UserID); cerr != nil {
			s.logWarn("request service: не удалось создать канал общения", requestID, cerr)
		}
	} else {
		s.logWarn("request service: исполнитель принятого отклика не найден", requestID, perr)
	}

	return s.repo.GetByIDWithProposals(ctx, requestID)
}

// StartService переводит заявку в работу. Доступно только назначенному
// исполнителю.
func (s *RequestService) StartService(ctx context.Context, requestID, actorUserID uuid.UUID) (*models.ServiceRequest, error) {
	request, err := s.authorizeAssignedProvider(ctx, requestID, actorUserID)
	if err != nil {
		return nil, err
	}
	if !transitionStartService.allowedFrom(request.Status) {
		return nil, apperror.Validationf("нельзя начать работу по заявке в статусе %s", request.Status)
	}

	if err := s.repo.Transition(ctx, requestID, models.RequestStatusAccepted, models.RequestStatusInProgress); err != nil {
		if errors.Is(err, repository.ErrRequestNotAvailable) {
			return nil, apperror.Validationf("заявка уже не в статусе accepted")
		}
		return nil, s.mapRepoError(err)
	}
	return s.repo.GetByID(ctx, requestID)
}

// CompleteService фиксирует завершение работ и делегирует каталогу
// исполнителей инкремент счётчика выполненных заявок.
func (s *RequestService) CompleteService(ctx context.Context, requestID, actorUserID uuid.UUID, notes string, images []string) (*models.ServiceRequest, error) {
	request, err := s.authorizeAssignedProvider(ctx, requestID, actorUserID)
	if err != nil {
		return nil, err
	}
	if !transitionCompleteService.allowedFrom(request.Status) {
		return nil, apperror.Validationf("нельзя завершить заявку в статусе %s", request.Status)
	}
	if len(images) > validation.MaxImagesCount {
		return nil, apperror.Validationf("не более %d изображений", validation.MaxImagesCount)
	}

	if err := s.repo.Complete(ctx, requestID, notes, images); err != nil {
		if errors.Is(err, repository.ErrRequestNotAvailable) {
			return nil, apperror.Validationf("заявка уже не в статусе in_progress")
		}
		return nil, s.mapRepoError(err)
	}

	if err := s.providers.IncrementCompletedJobs(ctx, *request.ProviderID); err != nil {
		s.logWarn("request service: не удалось обновить счётчик выполненных заявок", requestID, err)
	}

	return s.repo.GetByID(ctx, requestID)
}

// ApproveCompletion подтверждает завершение работ клиентом и помечает
// заявку оплаченной. Повторное подтверждение отклоняется.
func (s *RequestService) ApproveCompletion(ctx context.Context, requestID, actorID uuid.UUID) (*models.ServiceRequest, error) {
	request, err := s.repo.GetByID(ctx, requestID)
	if err != nil {
		return nil, s.mapRepoError(err)
	}
	if request.RequesterID != actorID {
		return nil, apperror.ErrForbidden
	}
	if !transitionApproveCompletion.allowedFrom(request.Status) {
		return nil, apperror.Validationf("нельзя подтвердить завершение заявки в статусе %s", request.Status)
	}

	if err := s.repo.Approve(ctx, requestID, s.now()); err != nil {
		if errors.Is(err, repository.ErrRequestNotAvailable) {
			return nil, apperror.Validationf("завершение уже подтверждено")
		}
		return nil, s.mapRepoError(err)
	}

	if request.ProviderID != nil {
		if err := s.providers.RefreshRating(ctx, *request.ProviderID); err != nil {
			s.logWarn("request service: не удалось пересчитать рейтинг исполнителя", requestID, err)
		}
	}

	return s.repo.GetByID(ctx, requestID)
}

// CancelRequest отменяет заявку. Разрешено клиенту и назначенному
// исполнителю из любого нетерминального статуса.
func (s *RequestService) CancelRequest(ctx context.Context, requestID, actorUserID uuid.UUID, reason string) (*models.ServiceRequest, error) {
	request, err := s.repo.GetByID(ctx, requestID)
	if err != nil {
		return nil, s.mapRepoError(err)
	}

	authorized := request.RequesterID == actorUserID
	if !authorized && request.ProviderID != nil {
		if provider, perr := s.providers.GetByUserID(ctx, actorUserID); perr == nil && provider.ID == *request.ProviderID {
			authorized = true
		}
	}
	if !authorized {
		return nil, apperror.ErrForbidden
	}

	if !transitionCancelRequest.allowedFrom(request.Status) {
		return nil, apperror.Validationf("нельзя отменить заявку в статусе %s", request.Status)
	}

	if err := s.repo.Cancel(ctx, requestID, actorUserID, reason); err != nil {
		if errors.Is(err, repository.ErrRequestNotAvailable) {
			return nil, apperror.Validationf("заявка уже в терминальном статусе")
		}
		return nil, s.mapRepoError(err)
	}
	return s.repo.GetByID(ctx, requestID)
}

// authorizeAssignedProvider проверяет, что действующий пользователь —
// исполнитель, назначенный на заявку.
func (s *RequestService) authorizeAssignedProvider(ctx context.Context, requestID, actorUserID uuid.UUID) (*models.ServiceRequest, error) {
	request, err := s.repo.GetByID(ctx, requestID)
	if err != nil {
		return nil, s.mapRepoError(err)
	}
	if request.ProviderID == nil {
		return nil, apperror.ErrForbidden
	}

	provider, err := s.providers.GetByUserID(ctx, actorUserID)
	if err != nil {
		return nil, apperror.ErrForbidden
	}
	if provider.ID != *request.ProviderID {
		return nil, apperror.ErrForbidden
	}
	return request, nil
}

// mapRepoError переводит сентинельные ошибки хранилища в ошибки
// уровня приложения, не протаскивая наружу детали хранилища.
func (s *RequestService) mapRepoError(err error) error {
	switch {
	case errors.Is(err, repository.ErrRequestNotFound):
		return apperror.ErrRequestNotFound
	case errors.Is(err, repository.ErrProposalNotFound):
		return apperror.ErrProposalNotFound
	case errors.Is(err, repository.ErrProviderNotFound):
		return apperror.ErrProviderNotFound
	}
	var appErr *apperror.AppError
	if errors.As(err, &appErr) {
		return err
	}
	return apperror.Wrap(err, apperror.ErrCodeInternal, "внутренняя ошибка хранилища")
}

func (s *RequestService) logWarn(message string, requestID uuid.UUID, err error) {
	if logger.Log == nil {
		return
	}
	logger.Log.WithFields(logrus.Fields{
		"request_id": requestID,
		"error":      err.Error(),
	}).Warn(message)
}
