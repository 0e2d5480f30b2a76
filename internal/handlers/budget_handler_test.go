package handlers

import (
	"net/http"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	apperrors "finboard/internal/errors"
	"finboard/internal/models"
	"finboard/internal/pagination"
	"finboard/internal/services"
)

// --- mock budget service ---

type mockBudgetService struct {
	createBudgetFn           func(userID string, categoryID *string, name string, amount decimal.Decimal, period models.BudgetPeriod, startDate time.Time, endDate *time.Time, alertThreshold int) (*models.Budget, error)
	getUserBudgetsFn         func(userID string, page pagination.PageRequest, isActive *bool, period *models.BudgetPeriod) (*pagination.PageResponse[models.Budget], error)
	getBudgetByIDFn          func(userID, budgetID string) (*models.Budget, error)
	updateBudgetFn           func(userID, budgetID, name string, amount *decimal.Decimal, period *models.BudgetPeriod, endDate *time.Time, alertThreshold *int, isActive *bool) (*models.Budget, error)
	deleteBudgetFn           func(userID, budgetID string) error
	getBudgetsWithProgressFn func(userID string) ([]services.BudgetWithProgress, error)
	getBudgetDetailFn        func(userID, budgetID string) (*services.BudgetDetail, error)
}

func (m *mockBudgetService) CreateBudget(userID string, categoryID *string, name string, amount decimal.Decimal, period models.BudgetPeriod, startDate time.Time, endDate *time.Time, alertThreshold int) (*models.Budget, error) {
	if m.createBudgetFn != nil {
		return m.createBudgetFn(userID, categoryID, name, amount, period, startDate, endDate, alertThreshold)
	}
	return &models.Budget{}, nil
}

func (m *mockBudgetService) GetUserBudgets(userID string, page pagination.PageRequest, isActive *bool, period *models.BudgetPeriod) (*pagination.PageResponse[models.Budget], error) {
	if m.getUserBudgetsFn != nil {
		return m.getUserBudgetsFn(userID, page, isActive, period)
	}
	resp := pagination.NewPageResponse([]models.Budget{}, 1, 20, 0)
	return &resp, nil
}

func (m *mockBudgetService) GetBudgetByID(userID, budgetID string) (*models.Budget, error) {
	if m.getBudgetByIDFn != nil {
		return m.getBudgetByIDFn(userID, budgetID)
	}
	return &models.Budget{}, nil
}

func (m *mockBudgetService) UpdateBudget(userID, budgetID, name string, amount *decimal.Decimal, period *models.BudgetPeriod, endDate *time.Time, alertThreshold *int, isActive *bool) (*models.Budget, error) {
	if m.updateBudgetFn != nil {
		return m.updateBudgetFn(userID, budgetID, name, amount, period, endDate, alertThreshold, isActive)
	}
	return &models.Budget{}, nil
}

func (m *mockBudgetService) DeleteBudget(userID, budgetID string) error {
	if m.deleteBudgetFn != nil {
		return m.deleteBudgetFn(userID, budgetID)
	}
	return nil
}

func (m *mockBudgetService) GetBudgetsWithProgress(userID string) ([]services.BudgetWithProgress, error) {
	if m.getBudgetsWithProgressFn != nil {
		return m.getBudgetsWithProgressFn(userID)
	}
	return []services.BudgetWithProgress{}, nil
}

func (m *mockBudgetService) GetBudgetDetail(userID, budgetID string) (*services.BudgetDetail, error) {
	if m.getBudgetDetailFn != nil {
		return m.getBudgetDetailFn(userID, budgetID)
	}
	return &services.BudgetDetail{}, nil
}

var _ services.BudgetServicer = (*mockBudgetService)(nil)

const testBudgetID = "0195e9a0-2222-7000-8000-000000000002"

func setupBudgetRouter(handler *BudgetHandler) *gin.Engine {
	r := gin.New()
	auth := r.Group("", injectUserID(testUserID))
	auth.POST("/budgets", handler.CreateBudget)
	auth.GET("/budgets", handler.GetBudgets)
	auth.GET("/budgets/progress", handler.GetBudgetsProgress)
	auth.GET("/budgets/:id", handler.GetBudget)
	auth.PUT("/budgets/:id", handler.UpdateBudget)
	auth.DELETE("/budgets/:id", handler.DeleteBudget)
	auth.GET("/budgets/:id/progress", handler.GetBudgetDetail)
	return r
}

// setupAnonymousBudgetRouter registers the dashboard reads without any user in
// the context, mirroring a request with no access token.
func setupAnonymousBudgetRouter(handler *BudgetHandler) *gin.Engine {
	r := gin.New()
	r.GET("/budgets/progress", handler.GetBudgetsProgress)
	r.GET("/budgets/:id/progress", handler.GetBudgetDetail)
	return r
}

func TestBudgetHandler_CreateBudget(t *testing.T) {
	t.Run("returns 201 on success", func(t *testing.T) {
		svc := &mockBudgetService{
			createBudgetFn: func(userID string, categoryID *string, name string, amount decimal.Decimal, period models.BudgetPeriod, _ time.Time, _ *time.Time, _ int) (*models.Budget, error) {
				return &models.Budget{
					Base:       models.Base{ID: testBudgetID},
					UserID:     userID,
					CategoryID: categoryID,
					Name:       name,
					Amount:     amount,
					Period:     period,
					IsActive:   true,
				}, nil
			},
		}
		handler := NewBudgetHandler(svc, &mockAuditService{})
		r := setupBudgetRouter(handler)

		rec := doRequest(r, "POST", "/budgets",
			`{"name":"Groceries","amount":500,"period":"monthly","start_date":"2024-01-01T00:00:00Z"}`)

		if rec.Code != http.StatusCreated {
			t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
		}
		result := parseJSON(t, rec)
		budget := result["budget"].(map[string]interface{})
		if budget["name"] != "Groceries" {
			t.Errorf("expected Groceries, got %v", budget["name"])
		}
	})

	t.Run("returns 400 on missing name", func(t *testing.T) {
		handler := NewBudgetHandler(&mockBudgetService{}, &mockAuditService{})
		r := setupBudgetRouter(handler)

		rec := doRequest(r, "POST", "/budgets",
			`{"amount":500,"period":"monthly","start_date":"2024-01-01T00:00:00Z"}`)

		if rec.Code != http.StatusBadRequest {
			t.Fatalf("expected 400, got %d", rec.Code)
		}
		assertErrorCode(t, parseJSON(t, rec), "INVALID_INPUT")
	})

	t.Run("returns 400 on unknown period", func(t *testing.T) {
		handler := NewBudgetHandler(&mockBudgetService{}, &mockAuditService{})
		r := setupBudgetRouter(handler)

		rec := doRequest(r, "POST", "/budgets",
			`{"name":"Groceries","amount":500,"period":"fortnightly","start_date":"2024-01-01T00:00:00Z"}`)

		if rec.Code != http.StatusBadRequest {
			t.Fatalf("expected 400, got %d", rec.Code)
		}
	})

	t.Run("returns 404 when category is missing", func(t *testing.T) {
		svc := &mockBudgetService{
			createBudgetFn: func(string, *string, string, decimal.Decimal, models.BudgetPeriod, time.Time, *time.Time, int) (*models.Budget, error) {
				return nil, apperrors.ErrCategoryNotFound
			},
		}
		handler := NewBudgetHandler(svc, &mockAuditService{})
		r := setupBudgetRouter(handler)

		rec := doRequest(r, "POST", "/budgets",
			`{"category_id":"0195e9a0-3333-7000-8000-000000000003","name":"Groceries","amount":500,"period":"monthly","start_date":"2024-01-01T00:00:00Z"}`)

		if rec.Code != http.StatusNotFound {
			t.Fatalf("expected 404, got %d", rec.Code)
		}
		assertErrorCode(t, parseJSON(t, rec), "CATEGORY_NOT_FOUND")
	})
}

func TestBudgetHandler_GetBudgets(t *testing.T) {
	t.Run("passes filters through", func(t *testing.T) {
		var gotActive *bool
		var gotPeriod *models.BudgetPeriod
		svc := &mockBudgetService{
			getUserBudgetsFn: func(_ string, _ pagination.PageRequest, isActive *bool, period *models.BudgetPeriod) (*pagination.PageResponse[models.Budget], error) {
				gotActive = isActive
				gotPeriod = period
				resp := pagination.NewPageResponse([]models.Budget{}, 1, 20, 0)
				return &resp, nil
			},
		}
		handler := NewBudgetHandler(svc, &mockAuditService{})
		r := setupBudgetRouter(handler)

		rec := doRequest(r, "GET", "/budgets?is_active=true&period=weekly", "")

		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
		}
		if gotActive == nil || !*gotActive {
			t.Error("expected is_active filter to be true")
		}
		if gotPeriod == nil || *gotPeriod != models.BudgetPeriodWeekly {
			t.Error("expected weekly period filter")
		}
	})

	t.Run("returns 400 on bad is_active", func(t *testing.T) {
		handler := NewBudgetHandler(&mockBudgetService{}, &mockAuditService{})
		r := setupBudgetRouter(handler)

		rec := doRequest(r, "GET", "/budgets?is_active=maybe", "")

		if rec.Code != http.StatusBadRequest {
			t.Fatalf("expected 400, got %d", rec.Code)
		}
	})

	t.Run("returns 400 on bad period", func(t *testing.T) {
		handler := NewBudgetHandler(&mockBudgetService{}, &mockAuditService{})
		r := setupBudgetRouter(handler)

		rec := doRequest(r, "GET", "/budgets?period=fortnightly", "")

		if rec.Code != http.StatusBadRequest {
			t.Fatalf("expected 400, got %d", rec.Code)
		}
	})
}

func TestBudgetHandler_GetBudget(t *testing.T) {
	t.Run("returns 404 when missing", func(t *testing.T) {
		svc := &mockBudgetService{
			getBudgetByIDFn: func(string, string) (*models.Budget, error) {
				return nil, apperrors.ErrBudgetNotFound
			},
		}
		handler := NewBudgetHandler(svc, &mockAuditService{})
		r := setupBudgetRouter(handler)

		rec := doRequest(r, "GET", "/budgets/"+testBudgetID, "")

		if rec.Code != http.StatusNotFound {
			t.Fatalf("expected 404, got %d", rec.Code)
		}
		assertErrorCode(t, parseJSON(t, rec), "BUDGET_NOT_FOUND")
	})

	t.Run("returns 400 on malformed id", func(t *testing.T) {
		handler := NewBudgetHandler(&mockBudgetService{}, &mockAuditService{})
		r := setupBudgetRouter(handler)

		rec := doRequest(r, "GET", "/budgets/not-a-uuid", "")

		if rec.Code != http.StatusBadRequest {
			t.Fatalf("expected 400, got %d", rec.Code)
		}
	})
}

func TestBudgetHandler_GetBudgetsProgress(t *testing.T) {
	t.Run("returns budgets and currency for an authenticated user", func(t *testing.T) {
		svc := &mockBudgetService{
			getBudgetsWithProgressFn: func(userID string) ([]services.BudgetWithProgress, error) {
				return []services.BudgetWithProgress{
					{
						Budget:          models.Budget{Base: models.Base{ID: testBudgetID}, UserID: userID, Name: "Groceries", Amount: decimal.NewFromInt(500)},
						Spent:           decimal.NewFromInt(450),
						Remaining:       decimal.NewFromInt(50),
						PercentUsed:     90,
						IsNearThreshold: true,
					},
				}, nil
			},
		}
		handler := NewBudgetHandler(svc, &mockAuditService{})
		r := setupBudgetRouter(handler)

		rec := doRequest(r, "GET", "/budgets/progress", "")

		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
		}
		result := parseJSON(t, rec)
		budgets := result["budgets"].([]interface{})
		if len(budgets) != 1 {
			t.Fatalf("expected 1 budget, got %d", len(budgets))
		}
		first := budgets[0].(map[string]interface{})
		if first["percent_used"].(float64) != 90 {
			t.Errorf("expected 90 percent used, got %v", first["percent_used"])
		}
		if first["is_near_threshold"] != true {
			t.Error("expected near threshold flag")
		}
		if result["currency"] == nil {
			t.Error("expected currency in response")
		}
	})

	t.Run("anonymous caller gets empty budgets instead of 401", func(t *testing.T) {
		svc := &mockBudgetService{
			getBudgetsWithProgressFn: func(string) ([]services.BudgetWithProgress, error) {
				t.Fatal("service must not be called for anonymous requests")
				return nil, nil
			},
		}
		handler := NewBudgetHandler(svc, &mockAuditService{})
		r := setupAnonymousBudgetRouter(handler)

		rec := doRequest(r, "GET", "/budgets/progress", "")

		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
		}
		result := parseJSON(t, rec)
		budgets := result["budgets"].([]interface{})
		if len(budgets) != 0 {
			t.Errorf("expected empty budgets, got %v", budgets)
		}
		if result["currency"] != "USD" {
			t.Errorf("expected default USD currency, got %v", result["currency"])
		}
	})
}

func TestBudgetHandler_GetBudgetDetail(t *testing.T) {
	t.Run("returns detail with histogram", func(t *testing.T) {
		svc := &mockBudgetService{
			getBudgetDetailFn: func(_, budgetID string) (*services.BudgetDetail, error) {
				return &services.BudgetDetail{
					BudgetWithProgress: services.BudgetWithProgress{
						Budget: models.Budget{Base: models.Base{ID: budgetID}, Name: "Groceries", Amount: decimal.NewFromInt(500)},
						Spent:  decimal.NewFromInt(65),
					},
					DailySpending: []services.DailySpend{
						{Date: "2024-06-03", Total: decimal.NewFromInt(15)},
						{Date: "2024-06-10", Total: decimal.NewFromInt(50)},
					},
					Transactions: []models.Transaction{},
				}, nil
			},
		}
		handler := NewBudgetHandler(svc, &mockAuditService{})
		r := setupBudgetRouter(handler)

		rec := doRequest(r, "GET", "/budgets/"+testBudgetID+"/progress", "")

		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
		}
		result := parseJSON(t, rec)
		budget := result["budget"].(map[string]interface{})
		daily := budget["daily_spending"].([]interface{})
		if len(daily) != 2 {
			t.Fatalf("expected 2 day buckets, got %d", len(daily))
		}
		firstDay := daily[0].(map[string]interface{})
		if firstDay["date"] != "2024-06-03" {
			t.Errorf("expected first bucket 2024-06-03, got %v", firstDay["date"])
		}
	})

	t.Run("anonymous caller gets null budget", func(t *testing.T) {
		handler := NewBudgetHandler(&mockBudgetService{}, &mockAuditService{})
		r := setupAnonymousBudgetRouter(handler)

		rec := doRequest(r, "GET", "/budgets/"+testBudgetID+"/progress", "")

		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rec.Code)
		}
		result := parseJSON(t, rec)
		if result["budget"] != nil {
			t.Errorf("expected null budget, got %v", result["budget"])
		}
	})

	t.Run("returns 404 when missing", func(t *testing.T) {
		svc := &mockBudgetService{
			getBudgetDetailFn: func(string, string) (*services.BudgetDetail, error) {
				return nil, apperrors.ErrBudgetNotFound
			},
		}
		handler := NewBudgetHandler(svc, &mockAuditService{})
		r := setupBudgetRouter(handler)

		rec := doRequest(r, "GET", "/budgets/"+testBudgetID+"/progress", "")

		if rec.Code != http.StatusNotFound {
			t.Fatalf("expected 404, got %d", rec.Code)
		}
	})
}

func TestBudgetHandler_UpdateBudget(t *testing.T) {
	t.Run("returns 200 on success", func(t *testing.T) {
		svc := &mockBudgetService{
			updateBudgetFn: func(_, budgetID, name string, _ *decimal.Decimal, _ *models.BudgetPeriod, _ *time.Time, _ *int, isActive *bool) (*models.Budget, error) {
				return &models.Budget{Base: models.Base{ID: budgetID}, Name: name, IsActive: isActive == nil || *isActive}, nil
			},
		}
		handler := NewBudgetHandler(svc, &mockAuditService{})
		r := setupBudgetRouter(handler)

		rec := doRequest(r, "PUT", "/budgets/"+testBudgetID,
			`{"name":"Renamed","is_active":false}`)

		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
		}
	})

	t.Run("returns 400 on bad threshold", func(t *testing.T) {
		handler := NewBudgetHandler(&mockBudgetService{}, &mockAuditService{})
		r := setupBudgetRouter(handler)

		rec := doRequest(r, "PUT", "/budgets/"+testBudgetID,
			`{"alert_threshold":150}`)

		if rec.Code != http.StatusBadRequest {
			t.Fatalf("expected 400, got %d", rec.Code)
		}
	})
}

func TestBudgetHandler_DeleteBudget(t *testing.T) {
	t.Run("returns 200 on success", func(t *testing.T) {
		handler := NewBudgetHandler(&mockBudgetService{}, &mockAuditService{})
		r := setupBudgetRouter(handler)

		rec := doRequest(r, "DELETE", "/budgets/"+testBudgetID, "")

		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rec.Code)
		}
	})

	t.Run("returns 404 when missing", func(t *testing.T) {
		svc := &mockBudgetService{
			deleteBudgetFn: func(string, string) error {
				return apperrors.ErrBudgetNotFound
			},
		}
		handler := NewBudgetHandler(svc, &mockAuditService{})
		r := setupBudgetRouter(handler)

		rec := doRequest(r, "DELETE", "/budgets/"+testBudgetID, "")

		if rec.Code != http.StatusNotFound {
			t.Fatalf("expected 404, got %d", rec.Code)
		}
	})
}
