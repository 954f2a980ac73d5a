package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/abdoElHodaky/smartfixapi/internal/geo"
	"github.com/abdoElHodaky/smartfixapi/internal/models"
	"github.com/abdoElHodaky/smartfixapi/internal/repository/common"
)

const providerColumns = `
	id, user_id, business_name, phone, center_longitude, center_latitude,
	service_radius_km, services, hourly_rate, fixed_prices, availability,
	is_verified, is_available, rating, completed_jobs, created_at, updated_at`

// providerHaversineExpr — расстояние в километрах от точки
// ($1 долгота, $2 широта) до центра зоны обслуживания строки.
const providerHaversineExpr = `(6371 * acos(least(1.0,
	cos(radians($2)) * cos(radians(center_latitude)) * cos(radians(center_longitude) - radians($1)) +
	sin(radians($2)) * sin(radians(center_latitude)))))`

// ProviderRepository отвечает за каталог исполнителей. Для ядра подбора
// каталог почти read-only: на запись идут только счётчик выполненных
// заявок и пересчёт рейтинга.
type ProviderRepository struct {
	db *sqlx.DB
}

// NewProviderRepository создаёт новый экземпляр.
func NewProviderRepository(db *sqlx.DB) *ProviderRepository {
	return &ProviderRepository{db: db}
}

// GetByID возвращает исполнителя по идентификатору.
func (r *ProviderRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.ServiceProvider, error) {
	return common.GetByID[models.ServiceProvider](ctx, r.db, "service_providers", id, ErrProviderNotFound)
}

// GetByUserID возвращает профиль исполнителя по пользователю.
func (r *ProviderRepository) GetByUserID(ctx context.Context, userID uuid.UUID) (*models.ServiceProvider, error) {
	return common.GetByField[models.ServiceProvider](ctx, r.db, "service_providers", "user_id", userID, ErrProviderNotFound)
}

// Create сохраняет профиль исполнителя.
func (r *ProviderRepository) Create(ctx context.Context, provider *models.ServiceProvider) error {
	if provider.ID == uuid.Nil {
		provider.ID = uuid.New()
	}
	query := `
		INSERT INTO service_providers (
			id, user_id, business_name, phone, center_longitude, center_latitude,
			service_radius_km, services, hourly_rate, fixed_prices, availability,
			is_verified, is_available
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		RETURNING rating, completed_jobs, created_at, updated_at
	`
	err := r.db.QueryRowxContext(ctx, query,
		provider.ID, provider.UserID, provider.BusinessName, provider.Phone,
		provider.CenterLongitude, provider.CenterLatitude, provider.ServiceRadiusKm,
		pq.Array(provider.Services), provider.HourlyRate, provider.FixedPrices, provider.Availability,
		provider.IsVerified, provider.IsAvailable,
	).Scan(&provider.Rating, &provider.CompletedJobs, &provider.CreatedAt, &provider.UpdatedAt)
	if err != nil {
		return fmt.Errorf("provider repository: create %w", err)
	}
	return nil
}

// Update заменяет редактируемые поля профиля.
func (r *ProviderRepository) Update(ctx context.Context, provider *models.ServiceProvider) error {
	query := `
		UPDATE service_providers
		SET business_name = $2, phone = $3, center_longitude = $4, center_latitude = $5,
		    service_radius_km = $6, services = $7, hourly_rate = $8,
		    fixed_prices = $9, availability = $10, is_available = $11, updated_at = NOW()
		WHERE id = $1
	`
	res, err := r.db.ExecContext(ctx, query,
		provider.ID, provider.BusinessName, provider.Phone,
		provider.CenterLongitude, provider.CenterLatitude, provider.ServiceRadiusKm,
		pq.Array(provider.Services), provider.HourlyRate,
		provider.FixedPrices, provider.Availability, provider.IsAvailable,
	)
	if err != nil {
		return fmt.Errorf("provider repository: update %w", err)
	}
	return checkAffected(res, ErrProviderNotFound)
}

// FindCandidates возвращает проверенных и доступных исполнителей с
// пересечением услуг, чьи центры зон попадают в круг предвыборки.
// Сортировка — рейтинг, затем число выполненных заявок по убыванию;
// эта сортировка сохраняется движком подбора среди прошедших фильтры.
func (r *ProviderRepository) FindCandidates(ctx context.Context, center geo.Point, radiusKm float64, services []string) ([]models.ServiceProvider, error) {
	var providers []models.ServiceProvider
	query := `
		SELECT ` + providerColumns + `
		FROM service_providers
		WHERE is_verified = TRUE
		  AND is_available = TRUE
		  AND services && $4
		  AND ` + providerHaversineExpr + ` <= $3
		ORDER BY rating DESC, completed_jobs DESC
	`
	err := r.db.SelectContext(ctx, &providers, query,
		center.Longitude, center.Latitude, radiusKm, pq.Array(services))
	if err != nil {
		return nil, fmt.Errorf("provider repository: find candidates %w", err)
	}
	return providers, nil
}

// IncrementCompletedJobs увеличивает счётчик выполненных заявок.
func (r *ProviderRepository) IncrementCompletedJobs(ctx context.Context, id uuid.UUID) error {
	query := `UPDATE service_providers SET completed_jobs = completed_jobs + 1, updated_at = NOW() WHERE id = $1`
	res, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("provider repository: increment completed jobs %w", err)
	}
	return checkAffected(res, ErrProviderNotFound)
}

// RefreshRating пересчитывает рейтинг исполнителя по отзывам.
func (r *ProviderRepository) RefreshRating(ctx context.Context, id uuid.UUID) error {
	query := `
		UPDATE service_providers
		SET rating = COALESCE((SELECT AVG(rating)::numeric(3,2) FROM reviews WHERE provider_id = $1), 0),
		    updated_at = NOW()
		WHERE id = $1
	`
	res, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("provider repository: refresh rating %w", err)
	}
	return checkAffected(res, ErrProviderNotFound)
}

// CreateReview сохраняет отзыв об исполнителе.
func (r *ProviderRepository) CreateReview(ctx context.Context, review *models.Review) error {
	if review.ID == uuid.Nil {
		review.ID = uuid.New()
	}
	query := `
		INSERT INTO reviews (id, request_id, reviewer_id, provider_id, rating, comment)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at
	`
	err := r.db.QueryRowxContext(ctx, query,
		review.ID, review.RequestID, review.ReviewerID, review.ProviderID,
		review.Rating, review.Comment,
	).Scan(&review.CreatedAt)
	if err != nil {
		return fmt.Errorf("provider repository: create review %w", err)
	}
	return nil
}

// ListReviews возвращает отзывы об исполнителе, новые первыми.
func (r *ProviderRepository) ListReviews(ctx context.Context, providerID uuid.UUID, limit, offset int) ([]models.Review, error) {
	var reviews []models.Review
	query := `
		SELECT id, request_id, reviewer_id, provider_id, rating, comment, created_at
		FROM reviews
		WHERE provider_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`
	if err := r.db.SelectContext(ctx, &reviews, query, providerID, limit, offset); err != nil {
		return nil, fmt.Errorf("provider repository: list reviews %w", err)
	}
	return reviews, nil
}
