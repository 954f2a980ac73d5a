package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/abdoElHodaky/smartfixapi/internal/geo"
)

// DayAvailability описывает доступность исполнителя в конкретный день недели.
type DayAvailability struct {
	Available bool   `json:"available"`
	Start     string `json:"start,omitempty"`
	End       string `json:"end,omitempty"`
}

// WeekAvailability — расписание по дням недели, ключ — имя дня
// в нижнем регистре ("monday" ... "sunday"). Хранится как jsonb.
type WeekAvailability map[string]DayAvailability

// Value сериализует расписание для записи в jsonb колонку.
func (w WeekAvailability) Value() (driver.Value, error) {
	if w == nil {
		return nil, nil
	}
	return json.Marshal(w)
}

// Scan читает расписание из jsonb колонки.
func (w *WeekAvailability) Scan(src interface{}) error {
	if src == nil {
		*w = nil
		return nil
	}
	raw, ok := src.([]byte)
	if !ok {
		return fmt.Errorf("week availability: unexpected column type %T", src)
	}
	return json.Unmarshal(raw, w)
}

// PriceMap — фиксированные цены по типам услуг. Хранится как jsonb.
type PriceMap map[string]float64

// Value сериализует карту цен для записи в jsonb колонку.
func (p PriceMap) Value() (driver.Value, error) {
	if p == nil {
		return nil, nil
	}
	return json.Marshal(p)
}

// Scan читает карту цен из jsonb колонки.
func (p *PriceMap) Scan(src interface{}) error {
	if src == nil {
		*p = nil
		return nil
	}
	raw, ok := src.([]byte)
	if !ok {
		return fmt.Errorf("price map: unexpected column type %T", src)
	}
	return json.Unmarshal(raw, p)
}

// ServiceProvider описывает исполнителя: зону обслуживания,
// перечень услуг, цены и недельное расписание.
type ServiceProvider struct {
	ID              uuid.UUID        `db:"id" json:"id"`
	UserID          uuid.UUID        `db:"user_id" json:"user_id"`
	BusinessName    string           `db:"business_name" json:"business_name"`
	Phone           *string          `db:"phone" json:"phone,omitempty"`
	CenterLongitude float64          `db:"center_longitude" json:"center_longitude"`
	CenterLatitude  float64          `db:"center_latitude" json:"center_latitude"`
	ServiceRadiusKm float64          `db:"service_radius_km" json:"service_radius_km"`
	Services        pq.StringArray   `db:"services" json:"services"`
	HourlyRate      *float64         `db:"hourly_rate" json:"hourly_rate,omitempty"`
	FixedPrices     PriceMap         `db:"fixed_prices" json:"fixed_prices,omitempty"`
	Availability    WeekAvailability `db:"availability" json:"availability,omitempty"`
	IsVerified      bool             `db:"is_verified" json:"is_verified"`
	IsAvailable     bool             `db:"is_available" json:"is_available"`
	Rating          float64          `db:"rating" json:"rating"`
	CompletedJobs   int              `db:"completed_jobs" json:"completed_jobs"`
	CreatedAt       time.Time        `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time        `db:"updated_at" json:"updated_at"`
}

// Center возвращает центр зоны обслуживания.
func (p *ServiceProvider) Center() geo.Point {
	return geo.Point{Longitude: p.CenterLongitude, Latitude: p.CenterLatitude}
}

// Serves сообщает, оказывает ли исполнитель услугу данного типа.
func (p *ServiceProvider) Serves(serviceType string) bool {
	for _, s := range p.Services {
		if s == serviceType {
			return true
		}
	}
	return false
}

// AvailableOn сообщает, доступен ли исполнитель в указанный день недели.
func (p *ServiceProvider) AvailableOn(weekday string) bool {
	day, ok := p.Availability[weekday]
	return ok && day.Available
}
