package testutil

import (
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"finboard/internal/models"

	"github.com/shopspring/decimal"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// counter provides unique values across fixtures within a test run.
var counter atomic.Int64

func nextID() int64 {
	return counter.Add(1)
}

// CreateTestUser creates a user with a hashed password and unique email.
func CreateTestUser(t *testing.T, db *gorm.DB) *models.User {
	t.Helper()
	email := fmt.Sprintf("user%d@test.com", nextID())
	return CreateTestUserWithEmail(t, db, email)
}

// CreateTestUserWithEmail creates a user with the given email.
func CreateTestUserWithEmail(t *testing.T, db *gorm.DB, email string) *models.User {
	t.Helper()

	hash, err := bcrypt.GenerateFromPassword([]byte("password123"), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("failed to hash password: %v", err)
	}

	user := &models.User{
		Email:    email,
		Password: string(hash),
		Currency: "USD",
		IsActive: true,
	}
	if err := db.Create(user).Error; err != nil {
		t.Fatalf("failed to create test user: %v", err)
	}
	return user
}

// CreateTestCategory creates a top-level category of the given type.
func CreateTestCategory(t *testing.T, db *gorm.DB, userID string, categoryType models.CategoryType) *models.Category {
	t.Helper()

	category := &models.Category{
		UserID: userID,
		Name:   fmt.Sprintf("Test Category %d", nextID()),
		Type:   categoryType,
	}
	if err := db.Create(category).Error; err != nil {
		t.Fatalf("failed to create test category: %v", err)
	}
	return category
}

// CreateTestSubcategory creates a category under the given parent.
func CreateTestSubcategory(t *testing.T, db *gorm.DB, userID string, parent *models.Category) *models.Category {
	t.Helper()

	category := &models.Category{
		UserID:   userID,
		Name:     fmt.Sprintf("Test Subcategory %d", nextID()),
		Type:     parent.Type,
		ParentID: &parent.ID,
	}
	if err := db.Create(category).Error; err != nil {
		t.Fatalf("failed to create test subcategory: %v", err)
	}
	return category
}

// CreateTestExpense creates an expense transaction on the given date,
// optionally tagged with a category.
func CreateTestExpense(t *testing.T, db *gorm.DB, userID string, categoryID *string, amount decimal.Decimal, date time.Time) *models.Transaction {
	t.Helper()
	return createTestTransaction(t, db, userID, categoryID, models.TransactionTypeExpense, amount, date)
}

// CreateTestIncome creates an income transaction on the given date.
func CreateTestIncome(t *testing.T, db *gorm.DB, userID string, categoryID *string, amount decimal.Decimal, date time.Time) *models.Transaction {
	t.Helper()
	return createTestTransaction(t, db, userID, categoryID, models.TransactionTypeIncome, amount, date)
}

func createTestTransaction(t *testing.T, db *gorm.DB, userID string, categoryID *string, txType models.TransactionType, amount decimal.Decimal, date time.Time) *models.Transaction {
	t.Helper()

	tx := &models.Transaction{
		UserID:     userID,
		CategoryID: categoryID,
		Type:       txType,
		Amount:     amount,
		Date:       date,
	}
	if err := db.Create(tx).Error; err != nil {
		t.Fatalf("failed to create test transaction: %v", err)
	}
	return tx
}

// CreateTestBudget creates an active monthly budget of 100.00 for the given
// category (nil for an uncategorized budget), starting at the beginning of
// the current year.
func CreateTestBudget(t *testing.T, db *gorm.DB, userID string, categoryID *string) *models.Budget {
	t.Helper()

	now := time.Now()
	budget := &models.Budget{
		UserID:         userID,
		CategoryID:     categoryID,
		Name:           fmt.Sprintf("Test Budget %d", nextID()),
		Amount:         decimal.NewFromInt(100),
		Period:         models.BudgetPeriodMonthly,
		StartDate:      time.Date(now.Year(), time.January, 1, 0, 0, 0, 0, time.UTC),
		AlertThreshold: models.DefaultAlertThreshold,
		IsActive:       true,
	}
	if err := db.Create(budget).Error; err != nil {
		t.Fatalf("failed to create test budget: %v", err)
	}
	return budget
}
