package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/abdoElHodaky/smartfixapi/internal/geo"
	"github.com/abdoElHodaky/smartfixapi/internal/models"
	"github.com/abdoElHodaky/smartfixapi/internal/repository/common"
)

// haversineExpr — расстояние в километрах от точки ($1 долгота, $2 широта)
// до координат строки. least() защищает acos от выхода за [-1, 1]
// на совпадающих точках.
const haversineExpr = `(6371 * acos(least(1.0,
	cos(radians($2)) * cos(radians(latitude)) * cos(radians(longitude) - radians($1)) +
	sin(radians($2)) * sin(radians(latitude)))))`

const requestColumns = `
	id, requester_id, category, service_type, title, description, requirements, images,
	scheduled_date, estimated_duration_hours, longitude, latitude,
	budget_min, budget_max, priority, provider_id, status,
	completion_notes, completion_images, customer_approval,
	payment_status, paid_at, cancelled_by, cancel_reason, cancelled_at,
	created_at, updated_at`

// RequestRepository отвечает за работу с заявками и откликами.
// Заявка — единица атомарности: переходы статусов выполняются условной
// записью по текущему статусу, отклики меняются только вместе с родителем.
type RequestRepository struct {
	db *sqlx.DB
}

// NewRequestRepository создаёт новый экземпляр.
func NewRequestRepository(db *sqlx.DB) *RequestRepository {
	return &RequestRepository{db: db}
}

// Create сохраняет новую заявку.
func (r *RequestRepository) Create(ctx context.Context, request *models.ServiceRequest) error {
	if request.ID == uuid.Nil {
		request.ID = uuid.New()
	}
	query := `
		INSERT INTO service_requests (
			id, requester_id, category, service_type, title, description, requirements, images,
			scheduled_date, estimated_duration_hours, longitude, latitude,
			budget_min, budget_max, priority, status, payment_status
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
		RETURNING created_at, updated_at
	`
	err := r.db.QueryRowxContext(ctx, query,
		request.ID, request.RequesterID, request.Category, request.ServiceType,
		request.Title, request.Description, request.Requirements, pq.Array(request.Images),
		request.ScheduledDate, request.EstimatedDurationHours, request.Longitude, request.Latitude,
		request.BudgetMin, request.BudgetMax, request.Priority, request.Status, request.PaymentStatus,
	).Scan(&request.CreatedAt, &request.UpdatedAt)
	if err != nil {
		return fmt.Errorf("request repository: create %w", err)
	}
	return nil
}

// GetByID возвращает заявку по идентификатору.
func (r *RequestRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.ServiceRequest, error) {
	return common.GetByID[models.ServiceRequest](ctx, r.db, "service_requests", id, ErrRequestNotFound)
}

// GetByIDWithProposals возвращает заявку вместе со списком откликов.
func (r *RequestRepository) GetByIDWithProposals(ctx context.Context, id uuid.UUID) (*models.ServiceRequest, error) {
	request, err := r.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	proposals, err := r.ListProposals(ctx, id)
	if err != nil {
		return nil, err
	}
	request.Proposals = proposals
	return request, nil
}

// UpdateFields заменяет редактируемые поля заявки. Условие по статусу
// гарантирует, что заявка всё ещё в pending.
func (r *RequestRepository) UpdateFields(ctx context.Context, request *models.ServiceRequest) error {
	query := `
		UPDATE service_requests
		SET title = $2, description = $3, requirements = $4, images = $5,
		    scheduled_date = $6, estimated_duration_hours = $7,
		    budget_min = $8, budget_max = $9, priority = $10, updated_at = NOW()
		WHERE id = $1 AND status = $11
	`
	res, err := r.db.ExecContext(ctx, query,
		request.ID, request.Title, request.Description, request.Requirements, pq.Array(request.Images),
		request.ScheduledDate, request.EstimatedDurationHours,
		request.BudgetMin, request.BudgetMax, request.Priority,
		models.RequestStatusPending,
	)
	if err != nil {
		return fmt.Errorf("request repository: update fields %w", err)
	}
	return checkAffected(res, ErrRequestNotAvailable)
}

// ListByRequester возвращает заявки клиента, новые первыми.
func (r *RequestRepository) ListByRequester(ctx context.Context, requesterID uuid.UUID) ([]models.ServiceRequest, error) {
	var requests []models.ServiceRequest
	query := `SELECT ` + requestColumns + ` FROM service_requests WHERE requester_id = $1 ORDER BY created_at DESC`
	if err := r.db.SelectContext(ctx, &requests, query, requesterID); err != nil {
		return nil, fmt.Errorf("request repository: list by requester %w", err)
	}
	return requests, nil
}

// ListByProvider возвращает заявки, назначенные исполнителю.
func (r *RequestRepository) ListByProvider(ctx context.Context, providerID uuid.UUID) ([]models.ServiceRequest, error) {
	var requests []models.ServiceRequest
	query := `SELECT ` + requestColumns + ` FROM service_requests WHERE provider_id = $1 ORDER BY created_at DESC`
	if err := r.db.SelectContext(ctx, &requests, query, providerID); err != nil {
		return nil, fmt.Errorf("request repository: list by provider %w", err)
	}
	return requests, nil
}

// ListPendingInArea возвращает ожидающие заявки нужных типов услуг в
// круге, исключая заявки, на которые исполнитель уже откликался
// (в любом статусе отклика). Порядок — по времени создания.
func (r *RequestRepository) ListPendingInArea(ctx context.Context, center geo.Point, radiusKm float64, services []string, excludeProviderID uuid.UUID) ([]models.ServiceRequest, error) {
	var requests []models.ServiceRequest
	query := `
		SELECT ` + requestColumns + `
		FROM service_requests
		WHERE status = $5
		  AND service_type = ANY($4)
		  AND ` + haversineExpr + ` <= $3
		  AND NOT EXISTS (
			SELECT 1 FROM proposals p
			WHERE p.request_id = service_requests.id AND p.provider_id = $6
		  )
		ORDER BY created_at ASC
	`
	err := r.db.SelectContext(ctx, &requests, query,
		center.Longitude, center.Latitude, radiusKm, pq.Array(services),
		models.RequestStatusPending, excludeProviderID,
	)
	if err != nil {
		return nil, fmt.Errorf("request repository: list pending in area %w", err)
	}
	return requests, nil
}

// ListStalePending возвращает ожидающие заявки без откликов, созданные
// до указанного момента. Используется планировщиком автоподбора.
func (r *RequestRepository) ListStalePending(ctx context.Context, createdBefore time.Time, limit int) ([]models.ServiceRequest, error) {
	var requests []models.ServiceRequest
	query := `
		SELECT ` + requestColumns + `
		FROM service_requests
		WHERE status = $1
		  AND created_at < $2
		  AND NOT EXISTS (SELECT 1 FROM proposals p WHERE p.request_id = service_requests.id)
		ORDER BY created_at ASC
		LIMIT $3
	`
	if err := r.db.SelectContext(ctx, &requests, query, models.RequestStatusPending, createdBefore, limit); err != nil {
		return nil, fmt.Errorf("request repository: list stale pending %w", err)
	}
	return requests, nil
}

// CreateProposal сохраняет отклик.
func (r *RequestRepository) CreateProposal(ctx context.Context, proposal *models.Proposal) error {
	if proposal.ID == uuid.Nil {
		proposal.ID = uuid.New()
	}
	query := `
		INSERT INTO proposals (id, request_id, provider_id, price, message, status)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at, updated_at
	`
	err := r.db.QueryRowxContext(ctx, query,
		proposal.ID, proposal.RequestID, proposal.ProviderID,
		proposal.Price, proposal.Message, proposal.Status,
	).Scan(&proposal.CreatedAt, &proposal.UpdatedAt)
	if err != nil {
		return fmt.Errorf("request repository: create proposal %w", err)
	}
	return nil
}

// GetProposalByID возвращает отклик по идентификатору.
func (r *RequestRepository) GetProposalByID(ctx context.Context, id uuid.UUID) (*models.Proposal, error) {
	return common.GetByID[models.Proposal](ctx, r.db, "proposals", id, ErrProposalNotFound)
}

// ListProposals возвращает отклики по заявке в порядке создания.
func (r *RequestRepository) ListProposals(ctx context.Context, requestID uuid.UUID) ([]models.Proposal, error) {
	var proposals []models.Proposal
	query := `
		SELECT id, request_id, provider_id, price, message, status, created_at, updated_at
		FROM proposals
		WHERE request_id = $1
		ORDER BY created_at ASC
	`
	if err := r.db.SelectContext(ctx, &proposals, query, requestID); err != nil {
		return nil, fmt.Errorf("request repository: list proposals %w", err)
	}
	return proposals, nil
}

// HasProposalFrom сообщает, откликался ли исполнитель на заявку,
// независимо от статуса отклика.
func (r *RequestRepository) HasProposalFrom(ctx context.Context, requestID, providerID uuid.UUID) (bool, error) {
	var count int
	query := `SELECT COUNT(*) FROM proposals WHERE request_id = $1 AND provider_id = $2`
	if err := r.db.GetContext(ctx, &count, query, requestID, providerID); err != nil {
		return false, fmt.Errorf("request repository: has proposal from %w", err)
	}
	return count > 0, nil
}

// WithdrawProposal помечает отклик отозванным, пока он ещё pending.
func (r *RequestRepository) WithdrawProposal(ctx context.Context, proposalID uuid.UUID) error {
	query := `UPDATE proposals SET status = $2, updated_at = NOW() WHERE id = $1 AND status = $3`
	res, err := r.db.ExecContext(ctx, query, proposalID, models.ProposalStatusWithdrawn, models.ProposalStatusPending)
	if err != nil {
		return fmt.Errorf("request repository: withdraw proposal %w", err)
	}
	return checkAffected(res, ErrProposalNotFound)
}

// AcceptProposal атомарно принимает отклик: условная запись по статусу
// pending исключает одновременное принятие двух откликов или принятие
// после отмены. Назначение исполнителя и смена статусов заявки и
// отклика фиксируются одной транзакцией.
func (r *RequestRepository) AcceptProposal(ctx context.Context, requestID, proposalID, providerID uuid.UUID) error {
	return common.WithTransaction(ctx, r.db, func(tx *sqlx.Tx) error {
		res, err := tx.ExecContext(ctx, `
			UPDATE service_requests
			SET status = $3, provider_id = $4, updated_at = NOW()
			WHERE id = $1 AND status = $2
		`, requestID, models.RequestStatusPending, models.RequestStatusAccepted, providerID)
		if err != nil {
			return fmt.Errorf("request repository: accept request %w", err)
		}
		if err := checkAffected(res, ErrRequestNotAvailable); err != nil {
			return err
		}

		res, err = tx.ExecContext(ctx, `
			UPDATE proposals
			SET status = $3, updated_at = NOW()
			WHERE id = $1 AND request_id = $2 AND status = $4
		`, proposalID, requestID, models.ProposalStatusAccepted, models.ProposalStatusPending)
		if err != nil {
			return fmt.Errorf("request repository: accept proposal %w", err)
		}
		return checkAffected(res, ErrProposalNotFound)
	})
}

// Transition выполняет условный переход статуса заявки.
func (r *RequestRepository) Transition(ctx context.Context, requestID uuid.UUID, from, to string) error {
	query := `UPDATE service_requests SET status = $3, updated_at = NOW() WHERE id = $1 AND status = $2`
	res, err := r.db.ExecContext(ctx, query, requestID, from, to)
	if err != nil {
		return fmt.Errorf("request repository: transition %w", err)
	}
	return checkAffected(res, ErrRequestNotAvailable)
}

// Complete фиксирует завершение работ вместе с отчётом исполнителя.
func (r *RequestRepository) Complete(ctx context.Context, requestID uuid.UUID, notes string, images []string) error {
	query := `
		UPDATE service_requests
		SET status = $3, completion_notes = $4, completion_images = $5,
		    customer_approval = FALSE, updated_at = NOW()
		WHERE id = $1 AND status = $2
	`
	res, err := r.db.ExecContext(ctx, query,
		requestID, models.RequestStatusInProgress, models.RequestStatusCompleted,
		notes, pq.Array(images),
	)
	if err != nil {
		return fmt.Errorf("request repository: complete %w", err)
	}
	return checkAffected(res, ErrRequestNotAvailable)
}

// Approve подтверждает завершение и помечает заявку оплаченной.
// Условие по payment_status делает повторное подтверждение неуспешным.
func (r *RequestRepository) Approve(ctx context.Context, requestID uuid.UUID, paidAt time.Time) error {
	query := `
		UPDATE service_requests
		SET customer_approval = TRUE, payment_status = $4, paid_at = $5, updated_at = NOW()
		WHERE id = $1 AND status = $2 AND payment_status = $3
	`
	res, err := r.db.ExecContext(ctx, query,
		requestID, models.RequestStatusCompleted,
		models.PaymentStatusUnpaid, models.PaymentStatusPaid, paidAt,
	)
	if err != nil {
		return fmt.Errorf("request repository: approve %w", err)
	}
	return checkAffected(res, ErrRequestNotAvailable)
}

// Cancel отменяет заявку из любого нетерминального статуса.
func (r *RequestRepository) Cancel(ctx context.Context, requestID, cancelledBy uuid.UUID, reason string) error {
	query := `
		UPDATE service_requests
		SET status = $2, cancelled_by = $3, cancel_reason = $4,
		    cancelled_at = NOW(), updated_at = NOW()
		WHERE id = $1 AND status NOT IN ($5, $2)
	`
	res, err := r.db.ExecContext(ctx, query,
		requestID, models.RequestStatusCancelled, cancelledBy, reason,
		models.RequestStatusCompleted,
	)
	if err != nil {
		return fmt.Errorf("request repository: cancel %w", err)
	}
	return checkAffected(res, ErrRequestNotAvailable)
}

// checkAffected превращает условную запись без затронутых строк в
// сентинельную ошибку.
func checkAffected(res sql.Result, sentinel error) error {
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("request repository: rows affected %w", err)
	}
	if affected == 0 {
		return sentinel
	}
	return nil
}
