package services

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"finboard/internal/models"
	"finboard/internal/pagination"
	"finboard/internal/testutil"
)

// fixedClock returns a budget service evaluating budgets at a fixed instant.
func fixedClock(svc BudgetServicer, now time.Time) *budgetService {
	s := svc.(*budgetService)
	s.now = func() time.Time { return now }
	return s
}

func TestCreateBudget(t *testing.T) {
	t.Run("valid with category", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		svc := NewBudgetService(db)
		user := testutil.CreateTestUser(t, db)
		cat := testutil.CreateTestCategory(t, db, user.ID, models.CategoryTypeExpense)

		budget, err := svc.CreateBudget(user.ID, &cat.ID, "Groceries", decimal.NewFromInt(500), models.BudgetPeriodMonthly, date(2024, time.January, 1), nil, 0)
		testutil.AssertNoError(t, err)

		if budget.ID == "" {
			t.Fatal("expected non-empty budget ID")
		}
		if budget.Name != "Groceries" {
			t.Errorf("expected name Groceries, got %s", budget.Name)
		}
		if !budget.Amount.Equal(decimal.NewFromInt(500)) {
			t.Errorf("expected amount 500, got %s", budget.Amount)
		}
		if budget.AlertThreshold != models.DefaultAlertThreshold {
			t.Errorf("expected default alert threshold, got %d", budget.AlertThreshold)
		}
		if !budget.IsActive {
			t.Error("expected budget to be active")
		}
	})

	t.Run("valid without category tracks uncategorized spend", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		svc := NewBudgetService(db)
		user := testutil.CreateTestUser(t, db)

		budget, err := svc.CreateBudget(user.ID, nil, "Misc", decimal.NewFromInt(100), models.BudgetPeriodMonthly, date(2024, time.January, 1), nil, 90)
		testutil.AssertNoError(t, err)

		if budget.CategoryID != nil {
			t.Error("expected nil category ID")
		}
		if budget.AlertThreshold != 90 {
			t.Errorf("expected alert threshold 90, got %d", budget.AlertThreshold)
		}
	})

	t.Run("rejects non-positive amount", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		svc := NewBudgetService(db)
		user := testutil.CreateTestUser(t, db)

		_, err := svc.CreateBudget(user.ID, nil, "Zero", decimal.Zero, models.BudgetPeriodMonthly, date(2024, time.January, 1), nil, 0)
		testutil.AssertAppError(t, err, "INVALID_INPUT")
	})

	t.Run("rejects end date before start date", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		svc := NewBudgetService(db)
		user := testutil.CreateTestUser(t, db)

		endDate := date(2023, time.December, 1)
		_, err := svc.CreateBudget(user.ID, nil, "Backwards", decimal.NewFromInt(100), models.BudgetPeriodMonthly, date(2024, time.January, 1), &endDate, 0)
		testutil.AssertAppError(t, err, "INVALID_INPUT")
	})

	t.Run("rejects missing category", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		svc := NewBudgetService(db)
		user := testutil.CreateTestUser(t, db)

		missing := "0195e9a0-0000-7000-8000-000000000000"
		_, err := svc.CreateBudget(user.ID, &missing, "Bad", decimal.NewFromInt(100), models.BudgetPeriodMonthly, date(2024, time.January, 1), nil, 0)
		testutil.AssertAppError(t, err, "CATEGORY_NOT_FOUND")
	})

	t.Run("rejects another user's category", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		svc := NewBudgetService(db)
		user1 := testutil.CreateTestUser(t, db)
		user2 := testutil.CreateTestUser(t, db)
		cat := testutil.CreateTestCategory(t, db, user2.ID, models.CategoryTypeExpense)

		_, err := svc.CreateBudget(user1.ID, &cat.ID, "Not Mine", decimal.NewFromInt(100), models.BudgetPeriodMonthly, date(2024, time.January, 1), nil, 0)
		testutil.AssertAppError(t, err, "CATEGORY_NOT_FOUND")
	})
}

func TestGetUserBudgets(t *testing.T) {
	t.Run("returns own budgets only", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		svc := NewBudgetService(db)
		user1 := testutil.CreateTestUser(t, db)
		user2 := testutil.CreateTestUser(t, db)

		testutil.CreateTestBudget(t, db, user1.ID, nil)
		testutil.CreateTestBudget(t, db, user1.ID, nil)
		testutil.CreateTestBudget(t, db, user2.ID, nil)

		result, err := svc.GetUserBudgets(user1.ID, pagination.PageRequest{Page: 1, PageSize: 20}, nil, nil)
		testutil.AssertNoError(t, err)

		if result.TotalItems != 2 {
			t.Errorf("expected 2 budgets, got %d", result.TotalItems)
		}
	})

	t.Run("filters by is_active", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		svc := NewBudgetService(db)
		user := testutil.CreateTestUser(t, db)

		testutil.CreateTestBudget(t, db, user.ID, nil)
		inactive := testutil.CreateTestBudget(t, db, user.ID, nil)
		if err := db.Model(inactive).Update("is_active", false).Error; err != nil {
			t.Fatalf("failed to deactivate budget: %v", err)
		}

		active := true
		result, err := svc.GetUserBudgets(user.ID, pagination.PageRequest{Page: 1, PageSize: 20}, &active, nil)
		testutil.AssertNoError(t, err)

		if result.TotalItems != 1 {
			t.Errorf("expected 1 active budget, got %d", result.TotalItems)
		}
	})

	t.Run("filters by period", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		svc := NewBudgetService(db)
		user := testutil.CreateTestUser(t, db)

		testutil.CreateTestBudget(t, db, user.ID, nil) // monthly
		weekly := testutil.CreateTestBudget(t, db, user.ID, nil)
		if err := db.Model(weekly).Update("period", models.BudgetPeriodWeekly).Error; err != nil {
			t.Fatalf("failed to update period: %v", err)
		}

		period := models.BudgetPeriodWeekly
		result, err := svc.GetUserBudgets(user.ID, pagination.PageRequest{Page: 1, PageSize: 20}, nil, &period)
		testutil.AssertNoError(t, err)

		if result.TotalItems != 1 {
			t.Errorf("expected 1 weekly budget, got %d", result.TotalItems)
		}
	})
}

func TestGetBudgetByID(t *testing.T) {
	t.Run("found", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		svc := NewBudgetService(db)
		user := testutil.CreateTestUser(t, db)
		budget := testutil.CreateTestBudget(t, db, user.ID, nil)

		got, err := svc.GetBudgetByID(user.ID, budget.ID)
		testutil.AssertNoError(t, err)
		if got.ID != budget.ID {
			t.Errorf("expected budget %s, got %s", budget.ID, got.ID)
		}
	})

	t.Run("another user's budget looks missing", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		svc := NewBudgetService(db)
		owner := testutil.CreateTestUser(t, db)
		other := testutil.CreateTestUser(t, db)
		budget := testutil.CreateTestBudget(t, db, owner.ID, nil)

		_, err := svc.GetBudgetByID(other.ID, budget.ID)
		testutil.AssertAppError(t, err, "BUDGET_NOT_FOUND")
	})
}

func TestUpdateBudget(t *testing.T) {
	t.Run("updates fields", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		svc := NewBudgetService(db)
		user := testutil.CreateTestUser(t, db)
		budget := testutil.CreateTestBudget(t, db, user.ID, nil)

		amount := decimal.NewFromInt(750)
		threshold := 90
		inactive := false
		_, err := svc.UpdateBudget(user.ID, budget.ID, "Renamed", &amount, nil, nil, &threshold, &inactive)
		testutil.AssertNoError(t, err)

		var stored models.Budget
		if err := db.First(&stored, "id = ?", budget.ID).Error; err != nil {
			t.Fatalf("failed to reload budget: %v", err)
		}
		if stored.Name != "Renamed" {
			t.Errorf("expected name Renamed, got %s", stored.Name)
		}
		if !stored.Amount.Equal(amount) {
			t.Errorf("expected amount 750, got %s", stored.Amount)
		}
		if stored.AlertThreshold != 90 {
			t.Errorf("expected threshold 90, got %d", stored.AlertThreshold)
		}
		if stored.IsActive {
			t.Error("expected budget to be inactive")
		}
	})

	t.Run("rejects non-positive amount", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		svc := NewBudgetService(db)
		user := testutil.CreateTestUser(t, db)
		budget := testutil.CreateTestBudget(t, db, user.ID, nil)

		amount := decimal.Zero
		_, err := svc.UpdateBudget(user.ID, budget.ID, "", &amount, nil, nil, nil, nil)
		testutil.AssertAppError(t, err, "INVALID_INPUT")
	})
}

func TestDeleteBudget(t *testing.T) {
	t.Run("soft deletes", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		svc := NewBudgetService(db)
		user := testutil.CreateTestUser(t, db)
		budget := testutil.CreateTestBudget(t, db, user.ID, nil)

		testutil.AssertNoError(t, svc.DeleteBudget(user.ID, budget.ID))

		_, err := svc.GetBudgetByID(user.ID, budget.ID)
		testutil.AssertAppError(t, err, "BUDGET_NOT_FOUND")

		// The row survives with a deletion timestamp.
		var stored models.Budget
		if err := db.Unscoped().First(&stored, "id = ?", budget.ID).Error; err != nil {
			t.Fatalf("expected soft-deleted row to remain: %v", err)
		}
		if !stored.DeletedAt.Valid {
			t.Error("expected deleted_at to be set")
		}
	})

	t.Run("another user cannot delete", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		svc := NewBudgetService(db)
		owner := testutil.CreateTestUser(t, db)
		other := testutil.CreateTestUser(t, db)
		budget := testutil.CreateTestBudget(t, db, owner.ID, nil)

		err := svc.DeleteBudget(other.ID, budget.ID)
		testutil.AssertAppError(t, err, "BUDGET_NOT_FOUND")
	})
}

func TestGetBudgetsWithProgress(t *testing.T) {
	now := time.Date(2024, time.June, 15, 12, 0, 0, 0, time.UTC)

	t.Run("category spend rolls up from children", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		svc := fixedClock(NewBudgetService(db), now)
		user := testutil.CreateTestUser(t, db)
		food := testutil.CreateTestCategory(t, db, user.ID, models.CategoryTypeExpense)
		groceries := testutil.CreateTestSubcategory(t, db, user.ID, food)
		travel := testutil.CreateTestCategory(t, db, user.ID, models.CategoryTypeExpense)

		_, err := svc.CreateBudget(user.ID, &food.ID, "Food", decimal.NewFromInt(500), models.BudgetPeriodMonthly, date(2024, time.January, 1), nil, 0)
		testutil.AssertNoError(t, err)

		testutil.CreateTestExpense(t, db, user.ID, &food.ID, decimal.NewFromInt(100), date(2024, time.June, 5))
		testutil.CreateTestExpense(t, db, user.ID, &groceries.ID, decimal.NewFromInt(50), date(2024, time.June, 10))
		// A sibling top-level category does not count.
		testutil.CreateTestExpense(t, db, user.ID, &travel.ID, decimal.NewFromInt(999), date(2024, time.June, 10))

		results, err := svc.GetBudgetsWithProgress(user.ID)
		testutil.AssertNoError(t, err)

		if len(results) != 1 {
			t.Fatalf("expected 1 budget, got %d", len(results))
		}
		if !results[0].Spent.Equal(decimal.NewFromInt(150)) {
			t.Errorf("expected spent 150, got %s", results[0].Spent)
		}
		if !results[0].Remaining.Equal(decimal.NewFromInt(350)) {
			t.Errorf("expected remaining 350, got %s", results[0].Remaining)
		}
		if results[0].PercentUsed != 30 {
			t.Errorf("expected 30 percent used, got %v", results[0].PercentUsed)
		}
	})

	t.Run("uncategorized budget counts only uncategorized spend", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		svc := fixedClock(NewBudgetService(db), now)
		user := testutil.CreateTestUser(t, db)
		cat := testutil.CreateTestCategory(t, db, user.ID, models.CategoryTypeExpense)

		_, err := svc.CreateBudget(user.ID, nil, "Misc", decimal.NewFromInt(200), models.BudgetPeriodMonthly, date(2024, time.January, 1), nil, 0)
		testutil.AssertNoError(t, err)

		testutil.CreateTestExpense(t, db, user.ID, nil, decimal.NewFromInt(40), date(2024, time.June, 3))
		testutil.CreateTestExpense(t, db, user.ID, &cat.ID, decimal.NewFromInt(60), date(2024, time.June, 3))

		results, err := svc.GetBudgetsWithProgress(user.ID)
		testutil.AssertNoError(t, err)

		if !results[0].Spent.Equal(decimal.NewFromInt(40)) {
			t.Errorf("expected spent 40, got %s", results[0].Spent)
		}
	})

	t.Run("income never counts against a budget", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		svc := fixedClock(NewBudgetService(db), now)
		user := testutil.CreateTestUser(t, db)

		_, err := svc.CreateBudget(user.ID, nil, "Misc", decimal.NewFromInt(200), models.BudgetPeriodMonthly, date(2024, time.January, 1), nil, 0)
		testutil.AssertNoError(t, err)

		testutil.CreateTestIncome(t, db, user.ID, nil, decimal.NewFromInt(1000), date(2024, time.June, 3))
		testutil.CreateTestExpense(t, db, user.ID, nil, decimal.NewFromInt(25), date(2024, time.June, 3))

		results, err := svc.GetBudgetsWithProgress(user.ID)
		testutil.AssertNoError(t, err)

		if !results[0].Spent.Equal(decimal.NewFromInt(25)) {
			t.Errorf("expected spent 25, got %s", results[0].Spent)
		}
	})

	t.Run("period bounds are inclusive", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		svc := fixedClock(NewBudgetService(db), now)
		user := testutil.CreateTestUser(t, db)

		_, err := svc.CreateBudget(user.ID, nil, "Misc", decimal.NewFromInt(200), models.BudgetPeriodMonthly, date(2024, time.January, 1), nil, 0)
		testutil.AssertNoError(t, err)

		// First and last day of June count; May 31 and July 1 do not.
		testutil.CreateTestExpense(t, db, user.ID, nil, decimal.NewFromInt(10), date(2024, time.June, 1))
		testutil.CreateTestExpense(t, db, user.ID, nil, decimal.NewFromInt(20), time.Date(2024, time.June, 30, 23, 0, 0, 0, time.UTC))
		testutil.CreateTestExpense(t, db, user.ID, nil, decimal.NewFromInt(100), date(2024, time.May, 31))
		testutil.CreateTestExpense(t, db, user.ID, nil, decimal.NewFromInt(100), date(2024, time.July, 1))

		results, err := svc.GetBudgetsWithProgress(user.ID)
		testutil.AssertNoError(t, err)

		if !results[0].Spent.Equal(decimal.NewFromInt(30)) {
			t.Errorf("expected spent 30, got %s", results[0].Spent)
		}
	})

	t.Run("inactive budget reports zero spend", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		svc := fixedClock(NewBudgetService(db), now)
		user := testutil.CreateTestUser(t, db)

		budget, err := svc.CreateBudget(user.ID, nil, "Paused", decimal.NewFromInt(200), models.BudgetPeriodMonthly, date(2024, time.January, 1), nil, 0)
		testutil.AssertNoError(t, err)
		if err := db.Model(budget).Update("is_active", false).Error; err != nil {
			t.Fatalf("failed to deactivate budget: %v", err)
		}

		testutil.CreateTestExpense(t, db, user.ID, nil, decimal.NewFromInt(150), date(2024, time.June, 3))

		results, err := svc.GetBudgetsWithProgress(user.ID)
		testutil.AssertNoError(t, err)

		if !results[0].Spent.Equal(decimal.Zero) {
			t.Errorf("expected zero spend for inactive budget, got %s", results[0].Spent)
		}
		if results[0].PercentUsed != 0 {
			t.Errorf("expected 0 percent used, got %v", results[0].PercentUsed)
		}
		if results[0].IsOverBudget || results[0].IsNearThreshold {
			t.Error("expected no flags on an inactive budget")
		}
	})

	t.Run("no budgets yields empty slice", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		svc := fixedClock(NewBudgetService(db), now)
		user := testutil.CreateTestUser(t, db)

		results, err := svc.GetBudgetsWithProgress(user.ID)
		testutil.AssertNoError(t, err)

		if results == nil || len(results) != 0 {
			t.Errorf("expected empty slice, got %v", results)
		}
	})
}

func TestGetBudgetDetail(t *testing.T) {
	now := time.Date(2024, time.June, 15, 12, 0, 0, 0, time.UTC)

	t.Run("returns transactions and daily histogram", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		svc := fixedClock(NewBudgetService(db), now)
		user := testutil.CreateTestUser(t, db)

		budget, err := svc.CreateBudget(user.ID, nil, "Misc", decimal.NewFromInt(500), models.BudgetPeriodMonthly, date(2024, time.January, 1), nil, 0)
		testutil.AssertNoError(t, err)

		testutil.CreateTestExpense(t, db, user.ID, nil, decimal.NewFromInt(30), date(2024, time.June, 10))
		testutil.CreateTestExpense(t, db, user.ID, nil, decimal.NewFromInt(20), date(2024, time.June, 10))
		testutil.CreateTestExpense(t, db, user.ID, nil, decimal.NewFromInt(15), date(2024, time.June, 3))

		detail, err := svc.GetBudgetDetail(user.ID, budget.ID)
		testutil.AssertNoError(t, err)

		if !detail.Spent.Equal(decimal.NewFromInt(65)) {
			t.Errorf("expected spent 65, got %s", detail.Spent)
		}
		if len(detail.Transactions) != 3 {
			t.Fatalf("expected 3 transactions, got %d", len(detail.Transactions))
		}
		// Newest first.
		if !detail.Transactions[0].Date.After(detail.Transactions[2].Date) {
			t.Error("expected transactions ordered newest first")
		}

		if len(detail.DailySpending) != 2 {
			t.Fatalf("expected 2 day buckets, got %d", len(detail.DailySpending))
		}
		if detail.DailySpending[0].Date != "2024-06-03" || !detail.DailySpending[0].Total.Equal(decimal.NewFromInt(15)) {
			t.Errorf("unexpected first bucket: %+v", detail.DailySpending[0])
		}
		if detail.DailySpending[1].Date != "2024-06-10" || !detail.DailySpending[1].Total.Equal(decimal.NewFromInt(50)) {
			t.Errorf("unexpected second bucket: %+v", detail.DailySpending[1])
		}

		if !detail.PeriodStart.Equal(date(2024, time.June, 1)) {
			t.Errorf("expected period start June 1, got %v", detail.PeriodStart)
		}
		if !detail.PeriodEnd.Equal(endOfDay(date(2024, time.June, 30))) {
			t.Errorf("expected period end June 30, got %v", detail.PeriodEnd)
		}
	})

	t.Run("inactive budget skips fetching", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		svc := fixedClock(NewBudgetService(db), now)
		user := testutil.CreateTestUser(t, db)

		budget, err := svc.CreateBudget(user.ID, nil, "Paused", decimal.NewFromInt(500), models.BudgetPeriodMonthly, date(2024, time.January, 1), nil, 0)
		testutil.AssertNoError(t, err)
		if err := db.Model(budget).Update("is_active", false).Error; err != nil {
			t.Fatalf("failed to deactivate budget: %v", err)
		}
		testutil.CreateTestExpense(t, db, user.ID, nil, decimal.NewFromInt(30), date(2024, time.June, 10))

		detail, err := svc.GetBudgetDetail(user.ID, budget.ID)
		testutil.AssertNoError(t, err)

		if !detail.Spent.Equal(decimal.Zero) {
			t.Errorf("expected zero spend, got %s", detail.Spent)
		}
		if len(detail.Transactions) != 0 {
			t.Errorf("expected no transactions, got %d", len(detail.Transactions))
		}
		if len(detail.DailySpending) != 0 {
			t.Errorf("expected no day buckets, got %d", len(detail.DailySpending))
		}
		// The window is still reported for display.
		if !detail.PeriodStart.Equal(date(2024, time.June, 1)) {
			t.Errorf("expected period start June 1, got %v", detail.PeriodStart)
		}
	})

	t.Run("another user's budget looks missing", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		svc := fixedClock(NewBudgetService(db), now)
		owner := testutil.CreateTestUser(t, db)
		other := testutil.CreateTestUser(t, db)
		budget := testutil.CreateTestBudget(t, db, owner.ID, nil)

		_, err := svc.GetBudgetDetail(other.ID, budget.ID)
		testutil.AssertAppError(t, err, "BUDGET_NOT_FOUND")
	})
}
