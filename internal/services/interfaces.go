package services

import (
	"time"

	"github.com/shopspring/decimal"

	"finboard/internal/models"
	"finboard/internal/pagination"
)

// UserServicer defines the contract for user-related business logic.
type UserServicer interface {
	CreateUser(email, password, firstName, lastName, currency string) (*models.User, error)
	GetUserByEmail(email string) (*models.User, error)
	GetUserByID(id string) (*models.User, error)
	VerifyPassword(user *models.User, password string) bool
	AttemptLogin(email, password string) (*models.User, error)
	StoreRefreshTokenHash(userID, tokenHash string) error
	GetRefreshTokenHash(userID string) (string, error)
}

// CategoryServicer defines the contract for category-related business logic.
type CategoryServicer interface {
	CreateCategory(userID, name string, categoryType models.CategoryType, description, icon, color string, parentID *string) (*models.Category, error)
	GetUserCategories(userID string, page pagination.PageRequest) (*pagination.PageResponse[models.Category], error)
	GetUserCategoriesByType(userID string, categoryType models.CategoryType, page pagination.PageRequest) (*pagination.PageResponse[models.Category], error)
	GetCategoryByID(userID, categoryID string) (*models.Category, error)
	GetSubcategories(userID, categoryID string) ([]models.Category, error)
	UpdateCategory(userID, categoryID, name, description, icon, color string, parentID *string) (*models.Category, error)
	DeleteCategory(userID, categoryID string) error
}

// TransactionFilter holds optional filter parameters for listing transactions.
type TransactionFilter struct {
	FromDate   *time.Time
	ToDate     *time.Time
	Type       *models.TransactionType
	CategoryID *string
	MinAmount  *decimal.Decimal
	MaxAmount  *decimal.Decimal
}

// TransactionServicer defines the contract for transaction-related business logic.
type TransactionServicer interface {
	CreateTransaction(userID string, categoryID *string, transactionType models.TransactionType, amount decimal.Decimal, description string, date time.Time) (*models.Transaction, error)
	GetUserTransactions(userID string, page pagination.PageRequest, filter TransactionFilter) (*pagination.PageResponse[models.Transaction], error)
	GetTransactionByID(userID, transactionID string) (*models.Transaction, error)
	DeleteTransaction(userID, transactionID string) error
}

// BudgetWithProgress is a derived, non-persisted view combining a budget with
// its aggregated spend for the currently accountable period. It is recomputed
// on every read and never stored.
type BudgetWithProgress struct {
	models.Budget
	Spent           decimal.Decimal `json:"spent"`
	Remaining       decimal.Decimal `json:"remaining"`
	PercentUsed     float64         `json:"percent_used"`
	IsOverBudget    bool            `json:"is_over_budget"`
	IsNearThreshold bool            `json:"is_near_threshold"`
}

// DailySpend is one day bucket of a budget detail's spend histogram.
type DailySpend struct {
	Date  string          `json:"date"`
	Total decimal.Decimal `json:"total"`
}

// BudgetDetail extends BudgetWithProgress with the resolved period window,
// the matched transactions, and a day-bucketed spend histogram for charting.
type BudgetDetail struct {
	BudgetWithProgress
	PeriodStart   time.Time            `json:"period_start"`
	PeriodEnd     time.Time            `json:"period_end"`
	Transactions  []models.Transaction `json:"transactions"`
	DailySpending []DailySpend         `json:"daily_spending"`
}

// BudgetServicer defines the contract for budget-related business logic.
type BudgetServicer interface {
	CreateBudget(userID string, categoryID *string, name string, amount decimal.Decimal, period models.BudgetPeriod, startDate time.Time, endDate *time.Time, alertThreshold int) (*models.Budget, error)
	GetUserBudgets(userID string, page pagination.PageRequest, isActive *bool, period *models.BudgetPeriod) (*pagination.PageResponse[models.Budget], error)
	GetBudgetByID(userID, budgetID string) (*models.Budget, error)
	UpdateBudget(userID, budgetID, name string, amount *decimal.Decimal, period *models.BudgetPeriod, endDate *time.Time, alertThreshold *int, isActive *bool) (*models.Budget, error)
	DeleteBudget(userID, budgetID string) error
	GetBudgetsWithProgress(userID string) ([]BudgetWithProgress, error)
	GetBudgetDetail(userID, budgetID string) (*BudgetDetail, error)
}

// AuditServicer defines the contract for audit logging.
type AuditServicer interface {
	Log(userID, action, resourceType, resourceID, ipAddress string, changes map[string]interface{})
}
