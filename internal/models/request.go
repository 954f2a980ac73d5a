package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/abdoElHodaky/smartfixapi/internal/geo"
)

// ServiceRequest описывает заявку клиента на выполнение услуги.
// Заявка — единица атомарности: отклики существуют только внутри неё
// и меняются только операциями жизненного цикла.
type ServiceRequest struct {
	ID                     uuid.UUID      `db:"id" json:"id"`
	RequesterID            uuid.UUID      `db:"requester_id" json:"requester_id"`
	Category               string         `db:"category" json:"category"`
	ServiceType            string         `db:"service_type" json:"service_type"`
	Title                  string         `db:"title" json:"title"`
	Description            string         `db:"description" json:"description"`
	Requirements           *string        `db:"requirements" json:"requirements,omitempty"`
	Images                 pq.StringArray `db:"images" json:"images,omitempty"`
	ScheduledDate          time.Time      `db:"scheduled_date" json:"scheduled_date"`
	EstimatedDurationHours float64        `db:"estimated_duration_hours" json:"estimated_duration_hours"`
	Longitude              float64        `db:"longitude" json:"longitude"`
	Latitude               float64        `db:"latitude" json:"latitude"`
	BudgetMin              float64        `db:"budget_min" json:"budget_min"`
	BudgetMax              float64        `db:"budget_max" json:"budget_max"`
	Priority               string         `db:"priority" json:"priority"`
	ProviderID             *uuid.UUID     `db:"provider_id" json:"provider_id,omitempty"`
	Status                 string         `db:"status" json:"status"`

	// Запись о завершении, заполняется при переходе в completed.
	CompletionNotes  *string        `db:"completion_notes" json:"completion_notes,omitempty"`
	CompletionImages pq.StringArray `db:"completion_images" json:"completion_images,omitempty"`
	CustomerApproval bool           `db:"customer_approval" json:"customer_approval"`

	PaymentStatus string     `db:"payment_status" json:"payment_status"`
	PaidAt        *time.Time `db:"paid_at" json:"paid_at,omitempty"`

	// Запись об отмене, заполняется только при отмене.
	CancelledBy  *uuid.UUID `db:"cancelled_by" json:"cancelled_by,omitempty"`
	CancelReason *string    `db:"cancel_reason" json:"cancel_reason,omitempty"`
	CancelledAt  *time.Time `db:"cancelled_at" json:"cancelled_at,omitempty"`

	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`

	Proposals []Proposal `json:"proposals,omitempty"`
}

// Location возвращает координаты заявки.
func (r *ServiceRequest) Location() geo.Point {
	return geo.Point{Longitude: r.Longitude, Latitude: r.Latitude}
}

// Proposal представляет отклик исполнителя на заявку с предложенной ценой.
type Proposal struct {
	ID         uuid.UUID `db:"id" json:"id"`
	RequestID  uuid.UUID `db:"request_id" json:"request_id"`
	ProviderID uuid.UUID `db:"provider_id" json:"provider_id"`
	Price      float64   `db:"price" json:"price"`
	Message    *string   `db:"message" json:"message,omitempty"`
	Status     string    `db:"status" json:"status"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
	UpdatedAt  time.Time `db:"updated_at" json:"updated_at"`
}
