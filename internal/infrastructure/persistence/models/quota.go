package models

import (
	"time"

	"github.com/docgen/backend/internal/domain/quota"
)

// Reservation states
const (
	ReservationPending    = "pending"
	ReservationCommitted  = "committed"
	ReservationRolledBack = "rolled_back"
)

// QuotaRecordModel is the GORM model for the quota_records table
type QuotaRecordModel struct {
	UserID    string    `gorm:"type:varchar(128);primaryKey"`
	PeriodKey string    `gorm:"type:varchar(16);primaryKey"`
	Used      int64     `gorm:"not null;default:0"`
	Limit     int64     `gorm:"column:quota_limit;not null"`
	UpdatedAt time.Time `gorm:"not null"`
}

// TableName returns the table name for QuotaRecordModel
func (QuotaRecordModel) TableName() string {
	return "quota_records"
}

// ToDomain converts QuotaRecordModel to a domain Record
func (m *QuotaRecordModel) ToDomain() *quota.Record {
	return &quota.Record{
		UserID:    m.UserID,
		PeriodKey: quota.PeriodKey(m.PeriodKey),
		Used:      m.Used,
		Limit:     m.Limit,
		UpdatedAt: m.UpdatedAt.UTC(),
	}
}

// QuotaReservationModel is the GORM model for the quota_reservations table.
// A row moves from pending to committed or rolled_back exactly once.
type QuotaReservationModel struct {
	Token     string     `gorm:"type:varchar(36);primaryKey"`
	UserID    string     `gorm:"type:varchar(128);not null;index:idx_quota_reservations_record,priority:1"`
	PeriodKey string     `gorm:"type:varchar(16);not null;index:idx_quota_reservations_record,priority:2"`
	Status    string     `gorm:"type:varchar(16);not null"`
	CreatedAt time.Time  `gorm:"not null"`
	SettledAt *time.Time
}

// TableName returns the table name for QuotaReservationModel
func (QuotaReservationModel) TableName() string {
	return "quota_reservations"
}
