package store

import (
	"context"
	"encoding/json"
	"errors"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/cleanupghent/cleanup-backend/internal/catalog"
	"github.com/cleanupghent/cleanup-backend/internal/middleware"
	"github.com/cleanupghent/cleanup-backend/internal/models"
	"github.com/cleanupghent/cleanup-backend/internal/services"
	"github.com/cleanupghent/cleanup-backend/internal/testutil"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type fixture struct {
	svc    *Service
	db     *gorm.DB
	points *services.PointsService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	cfg := testutil.Config(t)
	db := testutil.NewDB(t, cfg, &Purchase{})
	registry, err := catalog.FromFile(&catalog.File{StoreItems: []catalog.StoreItem{
		{ID: "default", Name: "Default", Type: catalog.ItemTypeTheme, Price: 0},
		{ID: "ocean", Name: "Ocean", Type: catalog.ItemTypeTheme, Price: 500, Color: "#0077be"},
		{ID: "sunset", Name: "Sunset", Type: catalog.ItemTypeTheme, Price: 500},
		{ID: "coupon_delhaize_5", Name: "Delhaize", Type: catalog.ItemTypeCoupon, Price: 200, Discount: "5%"},
	}})
	if err != nil {
		t.Fatal(err)
	}
	points := services.NewPointsService(db, nil, nil)
	return &fixture{svc: NewService(db, registry, points, nil), db: db, points: points}
}

func (f *fixture) fund(t *testing.T, userID uuid.UUID, amount int) {
	t.Helper()
	err := f.db.Transaction(func(tx *gorm.DB) error {
		_, err := f.points.Award(context.Background(), tx, userID, amount, services.ReasonReportVerified, "report", uuid.NewString())
		return err
	})
	if err != nil {
		t.Fatal(err)
	}
}

func (f *fixture) balance(t *testing.T, userID uuid.UUID) int {
	t.Helper()
	b, err := f.points.Balance(context.Background(), userID)
	if err != nil {
		t.Fatal(err)
	}
	return b.TotalPoints
}

func (f *fixture) purchaseCount(t *testing.T, userID uuid.UUID) int64 {
	t.Helper()
	var n int64
	f.db.Model(&Purchase{}).Where("user_id = ?", userID).Count(&n)
	return n
}

func TestPurchaseWithoutEnoughPointsChangesNothing(t *testing.T) {
	f := newFixture(t)
	user := testutil.CreateUser(t, f.db, "jan@gent.be", models.RoleUser)
	f.fund(t, user.ID, 120)

	_, err := f.svc.Purchase(context.Background(), user.ID, "ocean", "")
	var short *InsufficientPointsError
	if !errors.As(err, &short) {
		t.Fatalf("err = %v, want InsufficientPointsError", err)
	}
	if !errors.Is(err, services.ErrInsufficientPoints) {
		t.Error("error does not wrap ErrInsufficientPoints")
	}
	if short.Need != 500 || short.Have != 120 {
		t.Errorf("need/have = %d/%d", short.Need, short.Have)
	}
	if want := "Not enough points! You need 500 points but only have 120 points."; short.Error() != want {
		t.Errorf("message = %q", short.Error())
	}

	if got := f.balance(t, user.ID); got != 120 {
		t.Errorf("balance = %d, want 120", got)
	}
	if n := f.purchaseCount(t, user.ID); n != 0 {
		t.Errorf("purchases = %d, want 0", n)
	}
}

func TestThemePurchaseDeductsOnceAndRejectsRepeat(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	user := testutil.CreateUser(t, f.db, "an@gent.be", models.RoleUser)
	f.fund(t, user.ID, 1200)

	resp, err := f.svc.Purchase(ctx, user.ID, "ocean", "")
	if err != nil {
		t.Fatalf("Purchase: %v", err)
	}
	if resp.Balance != 700 || resp.Purchase.Price != 500 || resp.Purchase.VoucherCode != nil {
		t.Errorf("response = %+v", resp)
	}

	if _, err := f.svc.Purchase(ctx, user.ID, "ocean", ""); !errors.Is(err, ErrAlreadyOwned) {
		t.Errorf("repeat err = %v, want ErrAlreadyOwned", err)
	}
	if _, err := f.svc.Purchase(ctx, user.ID, "default", ""); !errors.Is(err, ErrAlreadyOwned) {
		t.Errorf("default theme err = %v, want ErrAlreadyOwned", err)
	}
	if _, err := f.svc.Purchase(ctx, user.ID, "rainbow", ""); !errors.Is(err, ErrItemNotFound) {
		t.Errorf("unknown item err = %v, want ErrItemNotFound", err)
	}

	if got := f.balance(t, user.ID); got != 700 {
		t.Errorf("balance = %d, want 700", got)
	}
	if n := f.purchaseCount(t, user.ID); n != 1 {
		t.Errorf("purchases = %d, want 1", n)
	}

	var ledger []models.PointTransaction
	f.db.Where("user_id = ? AND reason = ?", user.ID, services.ReasonStorePurchase).Find(&ledger)
	if len(ledger) != 1 || ledger[0].Delta != -500 || ledger[0].RefID != resp.Purchase.ID.String() {
		t.Errorf("ledger = %+v", ledger)
	}
}

func TestCouponsCanBeBoughtRepeatedly(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	user := testutil.CreateUser(t, f.db, "piet@gent.be", models.RoleUser)
	f.fund(t, user.ID, 500)

	first, err := f.svc.Purchase(ctx, user.ID, "coupon_delhaize_5", "")
	if err != nil {
		t.Fatal(err)
	}
	second, err := f.svc.Purchase(ctx, user.ID, "coupon_delhaize_5", "")
	if err != nil {
		t.Fatal(err)
	}
	if first.Purchase.VoucherCode == nil || second.Purchase.VoucherCode == nil {
		t.Fatal("coupon purchases need voucher codes")
	}
	if *first.Purchase.VoucherCode == *second.Purchase.VoucherCode {
		t.Error("voucher codes should differ")
	}
	if !strings.HasPrefix(*first.Purchase.VoucherCode, "GENT-") {
		t.Errorf("voucher = %q", *first.Purchase.VoucherCode)
	}
	if second.Balance != 100 {
		t.Errorf("balance = %d, want 100", second.Balance)
	}
}

func TestIdempotentRetryReturnsOriginal(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	user := testutil.CreateUser(t, f.db, "lies@gent.be", models.RoleUser)
	f.fund(t, user.ID, 300)

	first, err := f.svc.Purchase(ctx, user.ID, "coupon_delhaize_5", "retry-1")
	if err != nil {
		t.Fatal(err)
	}
	again, err := f.svc.Purchase(ctx, user.ID, "coupon_delhaize_5", "retry-1")
	if err != nil {
		t.Fatal(err)
	}
	if !again.Replayed || again.Purchase.ID != first.Purchase.ID {
		t.Errorf("retry = %+v, want replay of %s", again, first.Purchase.ID)
	}
	if got := f.balance(t, user.ID); got != 100 {
		t.Errorf("balance = %d, want 100", got)
	}
	if _, err := f.svc.Purchase(ctx, user.ID, "ocean", "retry-1"); !errors.Is(err, ErrIdempotencyKeyConflict) {
		t.Errorf("reused key err = %v", err)
	}

	other := testutil.CreateUser(t, f.db, "other@gent.be", models.RoleUser)
	f.fund(t, other.ID, 300)
	if _, err := f.svc.Purchase(ctx, other.ID, "coupon_delhaize_5", "retry-1"); err != nil {
		t.Errorf("keys are per user: %v", err)
	}
}

func TestSelectThemeAndItems(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	user := testutil.CreateUser(t, f.db, "eva@gent.be", models.RoleUser)
	f.fund(t, user.ID, 600)

	if _, err := f.svc.SelectTheme(ctx, user.ID, "sunset"); !errors.Is(err, ErrThemeNotOwned) {
		t.Errorf("unowned err = %v", err)
	}
	if _, err := f.svc.SelectTheme(ctx, user.ID, "coupon_delhaize_5"); !errors.Is(err, ErrNotATheme) {
		t.Errorf("coupon err = %v", err)
	}
	if _, err := f.svc.Purchase(ctx, user.ID, "ocean", ""); err != nil {
		t.Fatal(err)
	}
	updated, err := f.svc.SelectTheme(ctx, user.ID, "ocean")
	if err != nil {
		t.Fatal(err)
	}
	if updated.ThemeID != "ocean" {
		t.Errorf("theme = %q", updated.ThemeID)
	}

	items, err := f.svc.Items(ctx, user.ID)
	if err != nil {
		t.Fatal(err)
	}
	if items.Balance != 100 {
		t.Errorf("balance = %d, want 100", items.Balance)
	}
	for _, it := range items.Items {
		wantOwned := it.ID == "default" || it.ID == "ocean"
		if it.Owned != wantOwned {
			t.Errorf("%s owned = %v", it.ID, it.Owned)
		}
		if it.Active != (it.ID == "ocean") {
			t.Errorf("%s active = %v", it.ID, it.Active)
		}
	}

	if _, err := f.svc.SelectTheme(ctx, user.ID, "default"); err != nil {
		t.Errorf("default theme is always selectable: %v", err)
	}
}

func TestPurchaseHandlerStatusCodes(t *testing.T) {
	f := newFixture(t)
	cfg := testutil.Config(t)
	user := testutil.CreateUser(t, f.db, "kim@gent.be", models.RoleUser)
	token := testutil.AccessToken(t, user.ID, user.Email, models.RoleUser)
	f.fund(t, user.ID, 250)

	app := fiber.New()
	New(f.svc).RegisterRoutes(app.Group("/api", middleware.JWTProtected(cfg)))

	post := func(itemID, key string) (int, map[string]interface{}) {
		req := httptest.NewRequest("POST", "/api/store/purchases", strings.NewReader(`{"item_id":"`+itemID+`"}`))
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Authorization", "Bearer "+token)
		if key != "" {
			req.Header.Set("Idempotency-Key", key)
		}
		resp, err := app.Test(req, -1)
		if err != nil {
			t.Fatal(err)
		}
		var body map[string]interface{}
		_ = json.NewDecoder(resp.Body).Decode(&body)
		return resp.StatusCode, body
	}

	if code, body := post("ocean", ""); code != fiber.StatusPaymentRequired {
		t.Errorf("unaffordable status = %d", code)
	} else if body["message"] != "Not enough points! You need 500 points but only have 250 points." {
		t.Errorf("message = %v", body["message"])
	}
	if code, _ := post("coupon_delhaize_5", "k"); code != fiber.StatusCreated {
		t.Errorf("purchase status = %d", code)
	}
	if code, body := post("coupon_delhaize_5", "k"); code != fiber.StatusOK || body["replayed"] != true {
		t.Errorf("replay status = %d, body %v", code, body)
	}
	if code, _ := post("nothing", ""); code != fiber.StatusNotFound {
		t.Errorf("unknown item status = %d", code)
	}
}
