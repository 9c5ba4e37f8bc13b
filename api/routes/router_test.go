package routes

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"

	authsvc "github.com/tsheringp/pharmstock-backend/internal/auth"
	chatbotsvc "github.com/tsheringp/pharmstock-backend/internal/chatbot"
	dispensingsvc "github.com/tsheringp/pharmstock-backend/internal/dispensing"
	drugsvc "github.com/tsheringp/pharmstock-backend/internal/drugs"
	ordersvc "github.com/tsheringp/pharmstock-backend/internal/orders"
	taxonomysvc "github.com/tsheringp/pharmstock-backend/internal/taxonomy"
	pkgAuth "github.com/tsheringp/pharmstock-backend/pkg/auth"
	"github.com/tsheringp/pharmstock-backend/pkg/config"
	"github.com/tsheringp/pharmstock-backend/pkg/db/models"
	"github.com/tsheringp/pharmstock-backend/pkg/enums"
	"github.com/tsheringp/pharmstock-backend/pkg/logger"
)

type stubPinger struct{}

func (stubPinger) Ping(context.Context) error {
	return nil
}

type stubAuthService struct{}

func (stubAuthService) Login(ctx context.Context, input authsvc.LoginInput) (*authsvc.LoginResult, error) {
	return &authsvc.LoginResult{AccessToken: "token"}, nil
}

type stubDrugService struct{}

func (stubDrugService) Create(ctx context.Context, input drugsvc.CreateInput) (*models.Drug, error) {
	return &models.Drug{}, nil
}

func (stubDrugService) Get(ctx context.Context, id, ownerID uuid.UUID) (*models.Drug, error) {
	return &models.Drug{}, nil
}

func (stubDrugService) List(ctx context.Context, input drugsvc.ListInput) (*drugsvc.ListResult, error) {
	return &drugsvc.ListResult{}, nil
}

func (stubDrugService) Update(ctx context.Context, input drugsvc.UpdateInput) (*models.Drug, error) {
	return &models.Drug{}, nil
}

func (stubDrugService) Delete(ctx context.Context, id, ownerID uuid.UUID) error {
	return nil
}

func (stubDrugService) ImportCSV(ctx context.Context, ownerID uuid.UUID, r io.Reader) (*drugsvc.ImportResult, error) {
	return &drugsvc.ImportResult{}, nil
}

func (stubDrugService) ExportCSV(ctx context.Context, ownerID uuid.UUID, w io.Writer) error {
	return nil
}

type stubTaxonomyService struct{}

func (stubTaxonomyService) CreateType(ctx context.Context, name string) (*models.DrugType, error) {
	return &models.DrugType{}, nil
}

func (stubTaxonomyService) ListTypes(ctx context.Context) ([]models.DrugType, error) {
	return nil, nil
}

func (stubTaxonomyService) DeleteType(ctx context.Context, id uuid.UUID) error {
	return nil
}

func (stubTaxonomyService) AddName(ctx context.Context, typeName, drugName string) (*models.DrugName, error) {
	return &models.DrugName{}, nil
}

func (stubTaxonomyService) ListNames(ctx context.Context, typeID uuid.UUID) ([]models.DrugName, error) {
	return nil, nil
}

func (stubTaxonomyService) DeleteName(ctx context.Context, id uuid.UUID) error {
	return nil
}

func (stubTaxonomyService) ImportCSV(ctx context.Context, r io.Reader) (*taxonomysvc.ImportResult, error) {
	return &taxonomysvc.ImportResult{}, nil
}

type stubDispensingService struct{}

func (stubDispensingService) Record(ctx context.Context, input dispensingsvc.RecordInput) (*models.DispensingRecord, error) {
	return &models.DispensingRecord{}, nil
}

func (stubDispensingService) Delete(ctx context.Context, id, actorID uuid.UUID) error {
	return nil
}

func (stubDispensingService) List(ctx context.Context, actorID uuid.UUID, filter dispensingsvc.ListFilter) ([]models.DispensingRecord, error) {
	return nil, nil
}

func (stubDispensingService) ListToday(ctx context.Context, actorID uuid.UUID) ([]models.DispensingRecord, error) {
	return nil, nil
}

func (stubDispensingService) Summary(ctx context.Context, actorID uuid.UUID, from, to time.Time) ([]dispensingsvc.SummaryRow, error) {
	return nil, nil
}

func (stubDispensingService) ImportCSV(ctx context.Context, actorID uuid.UUID, r io.Reader) (*dispensingsvc.ImportResult, error) {
	return &dispensingsvc.ImportResult{}, nil
}

type stubOrderService struct{}

func (stubOrderService) ListOrders(ctx context.Context, input ordersvc.ListOrdersInput) ([]models.Order, error) {
	return nil, nil
}

func (stubOrderService) UpdateItem(ctx context.Context, input ordersvc.UpdateItemInput) (*models.OrderItem, error) {
	return &models.OrderItem{}, nil
}

func (stubOrderService) ApproveAll(ctx context.Context, input ordersvc.ApproveAllInput) (*ordersvc.ApproveAllResult, error) {
	return &ordersvc.ApproveAllResult{}, nil
}

type stubChatbotService struct{}

func (stubChatbotService) Ask(ctx context.Context, input chatbotsvc.AskInput) (*chatbotsvc.Reply, error) {
	return &chatbotsvc.Reply{Reply: "ok"}, nil
}

func testConfig() *config.Config {
	return &config.Config{
		App: config.AppConfig{Env: "test", Port: "0"},
		JWT: config.JWTConfig{
			Secret:            "secret",
			Issuer:            "issuer",
			ExpirationMinutes: 60,
		},
	}
}

func newTestRouter(cfg *config.Config) http.Handler {
	logg := logger.New(logger.Options{ServiceName: "test-routing", Level: logger.ParseLevel("debug"), Output: io.Discard})
	return NewRouter(Deps{
		Config:            cfg,
		Logger:            logg,
		DB:                stubPinger{},
		Redis:             stubPinger{},
		AuthService:       stubAuthService{},
		DrugService:       stubDrugService{},
		TaxonomyService:   stubTaxonomyService{},
		DispensingService: stubDispensingService{},
		OrderService:      stubOrderService{},
		ChatbotService:    stubChatbotService{},
	})
}

func buildToken(t *testing.T, cfg *config.Config, role enums.UserRole) string {
	t.Helper()
	token, err := pkgAuth.MintAccessToken(cfg.JWT, time.Now(), pkgAuth.AccessTokenPayload{
		UserID: uuid.New(),
		Role:   role,
		JTI:    uuid.NewString(),
	})
	if err != nil {
		t.Fatalf("mint token: %v", err)
	}
	return token
}

func TestHealthEndpointsArePublic(t *testing.T) {
	router := newTestRouter(testConfig())

	for _, path := range []string{"/health/live", "/health/ready"} {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		resp := httptest.NewRecorder()
		router.ServeHTTP(resp, req)
		if resp.Code != http.StatusOK {
			t.Fatalf("expected 200 for %s got %d", path, resp.Code)
		}
	}
}

func TestProtectedGroupRejectsMissingJWT(t *testing.T) {
	router := newTestRouter(testConfig())
	req := httptest.NewRequest(http.MethodGet, "/api/v1/drugs/", nil)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token got %d", resp.Code)
	}
}

func TestDrugsRequireInventoryRole(t *testing.T) {
	cfg := testConfig()
	router := newTestRouter(cfg)

	seller := httptest.NewRequest(http.MethodGet, "/api/v1/drugs/", nil)
	seller.Header.Set("Authorization", "Bearer "+buildToken(t, cfg, enums.UserRoleSeller))
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, seller)
	if resp.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for seller got %d", resp.Code)
	}

	pharmacy := httptest.NewRequest(http.MethodGet, "/api/v1/drugs/", nil)
	pharmacy.Header.Set("Authorization", "Bearer "+buildToken(t, cfg, enums.UserRolePharmacy))
	resp = httptest.NewRecorder()
	router.ServeHTTP(resp, pharmacy)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 for pharmacy got %d", resp.Code)
	}
}

func TestSellerGroupRequiresSellerRole(t *testing.T) {
	cfg := testConfig()
	router := newTestRouter(cfg)

	pharmacy := httptest.NewRequest(http.MethodGet, "/api/v1/seller/orders", nil)
	pharmacy.Header.Set("Authorization", "Bearer "+buildToken(t, cfg, enums.UserRolePharmacy))
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, pharmacy)
	if resp.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for pharmacy got %d", resp.Code)
	}

	seller := httptest.NewRequest(http.MethodGet, "/api/v1/seller/orders", nil)
	seller.Header.Set("Authorization", "Bearer "+buildToken(t, cfg, enums.UserRoleSeller))
	resp = httptest.NewRecorder()
	router.ServeHTTP(resp, seller)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 for seller got %d", resp.Code)
	}
}

func TestTaxonomyWritesRequireAdmin(t *testing.T) {
	cfg := testConfig()
	router := newTestRouter(cfg)

	pharmacy := httptest.NewRequest(http.MethodDelete, "/api/v1/drug-types/"+uuid.NewString(), nil)
	pharmacy.Header.Set("Authorization", "Bearer "+buildToken(t, cfg, enums.UserRolePharmacy))
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, pharmacy)
	if resp.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for pharmacy got %d", resp.Code)
	}

	admin := httptest.NewRequest(http.MethodDelete, "/api/v1/drug-types/"+uuid.NewString(), nil)
	admin.Header.Set("Authorization", "Bearer "+buildToken(t, cfg, enums.UserRoleAdmin))
	resp = httptest.NewRecorder()
	router.ServeHTTP(resp, admin)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 for admin got %d", resp.Code)
	}
}

func TestChatbotAcceptsAnyAuthenticatedRole(t *testing.T) {
	cfg := testConfig()
	router := newTestRouter(cfg)

	for _, role := range []enums.UserRole{enums.UserRoleInstitute, enums.UserRoleSeller} {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/chatbot", nil)
		req.Header.Set("Authorization", "Bearer "+buildToken(t, cfg, role))
		resp := httptest.NewRecorder()
		router.ServeHTTP(resp, req)
		if resp.Code == http.StatusUnauthorized || resp.Code == http.StatusForbidden {
			t.Fatalf("expected access for %s got %d", role, resp.Code)
		}
	}
}
