package services

import (
	"errors"
	"sort"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	apperrors "finboard/internal/errors"
	"finboard/internal/models"
	"finboard/internal/pagination"
)

// budgetService handles budget-related business logic.
type budgetService struct {
	db *gorm.DB

	// now supplies the reference instant for period resolution so tests
	// can evaluate budgets at fixed points in time.
	now func() time.Time
}

// NewBudgetService creates a new BudgetServicer.
func NewBudgetService(db *gorm.DB) BudgetServicer {
	return &budgetService{db: db, now: time.Now}
}

// CreateBudget creates a new budget, optionally scoped to a category. A nil
// categoryID creates a budget that tracks uncategorized transactions.
func (s *budgetService) CreateBudget(
	userID string,
	categoryID *string,
	name string,
	amount decimal.Decimal,
	period models.BudgetPeriod,
	startDate time.Time,
	endDate *time.Time,
	alertThreshold int,
) (*models.Budget, error) {
	if !amount.IsPositive() {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "budget amount must be greater than zero")
	}
	if endDate != nil && endDate.Before(startDate) {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "end date must not precede start date")
	}

	// Verify category exists and belongs to user
	if categoryID != nil {
		var category models.Category
		if err := s.db.Where("id = ? AND user_id = ?", *categoryID, userID).First(&category).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, apperrors.ErrCategoryNotFound
			}
			return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
		}
	}

	if alertThreshold <= 0 {
		alertThreshold = models.DefaultAlertThreshold
	}

	budget := &models.Budget{
		UserID:         userID,
		CategoryID:     categoryID,
		Name:           name,
		Amount:         amount,
		Period:         period,
		StartDate:      startDate,
		EndDate:        endDate,
		AlertThreshold: alertThreshold,
		IsActive:       true,
	}

	if err := s.db.Create(budget).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	return budget, nil
}

// GetUserBudgets returns a paginated list of budgets for the user with optional filters.
func (s *budgetService) GetUserBudgets(
	userID string,
	page pagination.PageRequest,
	isActive *bool,
	period *models.BudgetPeriod,
) (*pagination.PageResponse[models.Budget], error) {
	page.Defaults()

	base := s.db.Model(&models.Budget{}).Where("user_id = ?", userID)
	if isActive != nil {
		base = base.Where("is_active = ?", *isActive)
	}
	if period != nil {
		base = base.Where("period = ?", *period)
	}

	var totalItems int64
	if err := base.Count(&totalItems).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	var budgets []models.Budget
	if err := base.Preload("Category").Order("created_at DESC").Scopes(pagination.Paginate(page)).Find(&budgets).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	result := pagination.NewPageResponse(budgets, page.Page, page.PageSize, totalItems)
	return &result, nil
}

// GetBudgetByID returns a budget by ID if it belongs to the user. A budget
// owned by someone else is indistinguishable from a missing one.
func (s *budgetService) GetBudgetByID(userID, budgetID string) (*models.Budget, error) {
	var budget models.Budget
	if err := s.db.Preload("Category").Where("id = ? AND user_id = ?", budgetID, userID).First(&budget).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrBudgetNotFound
		}
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return &budget, nil
}

// UpdateBudget updates an existing budget's fields.
func (s *budgetService) UpdateBudget(
	userID, budgetID, name string,
	amount *decimal.Decimal,
	period *models.BudgetPeriod,
	endDate *time.Time,
	alertThreshold *int,
	isActive *bool,
) (*models.Budget, error) {
	budget, err := s.GetBudgetByID(userID, budgetID)
	if err != nil {
		return nil, err
	}

	updates := make(map[string]interface{})
	if name != "" {
		updates["name"] = name
	}
	if amount != nil {
		if !amount.IsPositive() {
			return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "budget amount must be greater than zero")
		}
		updates["amount"] = *amount
	}
	if period != nil {
		updates["period"] = *period
	}
	if endDate != nil {
		updates["end_date"] = endDate
	}
	if alertThreshold != nil {
		updates["alert_threshold"] = *alertThreshold
	}
	if isActive != nil {
		updates["is_active"] = *isActive
	}

	if len(updates) > 0 {
		if err := s.db.Model(budget).Updates(updates).Error; err != nil {
			return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
		}
	}

	return budget, nil
}

// DeleteBudget soft-deletes a budget.
func (s *budgetService) DeleteBudget(userID, budgetID string) error {
	budget, err := s.GetBudgetByID(userID, budgetID)
	if err != nil {
		return err
	}

	if err := s.db.Delete(budget).Error; err != nil {
		return apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return nil
}

// GetBudgetsWithProgress evaluates every budget of the user against the
// current period, newest budget first. Each budget is an independent
// computation over the same read-only data.
func (s *budgetService) GetBudgetsWithProgress(userID string) ([]BudgetWithProgress, error) {
	var budgets []models.Budget
	if err := s.db.Preload("Category").Where("user_id = ?", userID).Order("created_at DESC").Find(&budgets).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	childrenOf, err := s.childIndex(userID)
	if err != nil {
		return nil, err
	}

	now := s.now()
	results := make([]BudgetWithProgress, 0, len(budgets))
	for _, budget := range budgets {
		progress, err := s.progressFor(budget, childrenOf, now)
		if err != nil {
			return nil, err
		}
		results = append(results, progress)
	}
	return results, nil
}

// GetBudgetDetail evaluates a single budget and additionally returns the
// matched transactions and a per-day spend histogram over the same set.
func (s *budgetService) GetBudgetDetail(userID, budgetID string) (*BudgetDetail, error) {
	budget, err := s.GetBudgetByID(userID, budgetID)
	if err != nil {
		return nil, err
	}

	now := s.now()
	periodStart, periodEnd := ComputePeriod(budget.Period, budget.StartDate, budget.EndDate, now)
	detail := &BudgetDetail{
		PeriodStart:   periodStart,
		PeriodEnd:     periodEnd,
		Transactions:  []models.Transaction{},
		DailySpending: []DailySpend{},
	}

	if !budget.IsActive {
		detail.BudgetWithProgress = composeProgress(*budget, decimal.Zero)
		return detail, nil
	}

	childrenOf, err := s.childIndex(userID)
	if err != nil {
		return nil, err
	}
	scope := resolveCategoryScope(budget, childrenOf)

	transactions, err := s.listExpenses(userID, scope, periodStart, periodEnd)
	if err != nil {
		return nil, err
	}

	// The spend total and the histogram are both derived from the one
	// fetched set; no separate aggregate query is issued here.
	spent := decimal.Zero
	buckets := make(map[string]decimal.Decimal)
	for _, tx := range transactions {
		spent = spent.Add(tx.Amount)
		day := tx.Date.Format("2006-01-02")
		buckets[day] = buckets[day].Add(tx.Amount)
	}

	days := make([]string, 0, len(buckets))
	for day := range buckets {
		days = append(days, day)
	}
	sort.Strings(days)

	daily := make([]DailySpend, 0, len(days))
	for _, day := range days {
		daily = append(daily, DailySpend{Date: day, Total: buckets[day]})
	}

	detail.BudgetWithProgress = composeProgress(*budget, spent)
	detail.Transactions = transactions
	detail.DailySpending = daily
	return detail, nil
}

// progressFor evaluates one budget at the given instant. Inactive budgets
// short-circuit to zero spend without touching the period or scope machinery.
func (s *budgetService) progressFor(budget models.Budget, childrenOf map[string][]string, now time.Time) (BudgetWithProgress, error) {
	if !budget.IsActive {
		return composeProgress(budget, decimal.Zero), nil
	}

	periodStart, periodEnd := ComputePeriod(budget.Period, budget.StartDate, budget.EndDate, now)
	scope := resolveCategoryScope(&budget, childrenOf)

	spent, err := s.sumExpenses(budget.UserID, scope, periodStart, periodEnd)
	if err != nil {
		return BudgetWithProgress{}, err
	}
	return composeProgress(budget, spent), nil
}

// childIndex loads the user's categories once and returns a parent-to-children
// index. The tree is at most two levels deep, so one pass covers it.
func (s *budgetService) childIndex(userID string) (map[string][]string, error) {
	var categories []models.Category
	if err := s.db.Select("id", "parent_id").Where("user_id = ?", userID).Find(&categories).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	childrenOf := make(map[string][]string)
	for _, category := range categories {
		if category.ParentID != nil {
			childrenOf[*category.ParentID] = append(childrenOf[*category.ParentID], category.ID)
		}
	}
	return childrenOf, nil
}

// sumExpenses sums expense transaction amounts for the user inside the
// inclusive date window and category scope. No matches sum to zero.
func (s *budgetService) sumExpenses(userID string, scope categoryScope, from, to time.Time) (decimal.Decimal, error) {
	query := s.db.Model(&models.Transaction{}).
		Select("COALESCE(SUM(amount), 0)").
		Where("user_id = ? AND type = ? AND date BETWEEN ? AND ?",
			userID, models.TransactionTypeExpense, from, to)
	if scope.uncategorized {
		query = query.Where("category_id IS NULL")
	} else {
		query = query.Where("category_id IN ?", scope.ids)
	}

	var spent decimal.Decimal
	if err := query.Scan(&spent).Error; err != nil {
		return decimal.Zero, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return spent, nil
}

// listExpenses returns the expense transactions matching the window and
// scope, newest first. Used only by the detail view.
func (s *budgetService) listExpenses(userID string, scope categoryScope, from, to time.Time) ([]models.Transaction, error) {
	query := s.db.Preload("Category").
		Where("user_id = ? AND type = ? AND date BETWEEN ? AND ?",
			userID, models.TransactionTypeExpense, from, to).
		Order("date DESC")
	if scope.uncategorized {
		query = query.Where("category_id IS NULL")
	} else {
		query = query.Where("category_id IN ?", scope.ids)
	}

	var transactions []models.Transaction
	if err := query.Find(&transactions).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return transactions, nil
}
