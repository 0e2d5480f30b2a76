package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// BudgetPeriod represents the recurrence period of a budget.
type BudgetPeriod string

const (
	BudgetPeriodNone      BudgetPeriod = "none"
	BudgetPeriodDaily     BudgetPeriod = "daily"
	BudgetPeriodWeekly    BudgetPeriod = "weekly"
	BudgetPeriodMonthly   BudgetPeriod = "monthly"
	BudgetPeriodQuarterly BudgetPeriod = "quarterly"
	BudgetPeriodYearly    BudgetPeriod = "yearly"
)

// DefaultAlertThreshold is the percent-used level at which a budget is
// flagged as near its limit when no threshold was set explicitly.
const DefaultAlertThreshold = 80

// Budget represents a recurring spending limit, optionally scoped to a
// category. A nil CategoryID means the budget tracks transactions that
// carry no category at all.
type Budget struct {
	Base
	UserID         string          `gorm:"type:uuid;not null;index" json:"user_id"`
	CategoryID     *string         `gorm:"type:uuid" json:"category_id,omitempty"`
	Name           string          `gorm:"not null" json:"name"`
	Amount         decimal.Decimal `gorm:"type:decimal(20,2);not null" json:"amount"`
	Period         BudgetPeriod    `gorm:"not null" json:"period"`
	StartDate      time.Time       `gorm:"not null" json:"start_date"`
	EndDate        *time.Time      `json:"end_date,omitempty"`
	AlertThreshold int             `gorm:"default:80" json:"alert_threshold"`
	IsActive       bool            `gorm:"default:true" json:"is_active"`

	// Relationships
	Category *Category `gorm:"foreignKey:CategoryID" json:"category,omitempty"`
}
