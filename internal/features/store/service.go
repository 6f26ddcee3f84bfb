package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/cleanupghent/cleanup-backend/internal/catalog"
	"github.com/cleanupghent/cleanup-backend/internal/metrics"
	"github.com/cleanupghent/cleanup-backend/internal/models"
	"github.com/cleanupghent/cleanup-backend/internal/services"
	"github.com/cleanupghent/cleanup-backend/internal/session"
	"github.com/cleanupghent/cleanup-backend/internal/tracing"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"gorm.io/gorm"
)

var (
	ErrItemNotFound           = errors.New("item not found")
	ErrAlreadyOwned           = errors.New("you already own this theme")
	ErrNotATheme              = errors.New("item is not a theme")
	ErrThemeNotOwned          = errors.New("you do not own this theme")
	ErrIdempotencyKeyConflict = errors.New("idempotency key was used for a different item")
	ErrIdempotencyKeyTooLong  = errors.New("idempotency key must be at most 100 characters")
)

// InsufficientPointsError carries the numbers for the client message.
type InsufficientPointsError struct {
	Need int
	Have int
}

func (e *InsufficientPointsError) Error() string {
	return fmt.Sprintf("Not enough points! You need %d points but only have %d points.", e.Need, e.Have)
}

func (e *InsufficientPointsError) Unwrap() error {
	return services.ErrInsufficientPoints
}

type Service struct {
	db      *gorm.DB
	catalog *catalog.Registry
	points  *services.PointsService
	metrics *metrics.Metrics
}

func NewService(db *gorm.DB, registry *catalog.Registry, points *services.PointsService, m *metrics.Metrics) *Service {
	return &Service{db: db, catalog: registry, points: points, metrics: m}
}

func (s *Service) ownedThemes(db *gorm.DB, userID uuid.UUID) (map[string]bool, error) {
	var ids []string
	err := db.Model(&Purchase{}).
		Where("user_id = ? AND item_type = ?", userID, catalog.ItemTypeTheme).
		Pluck("item_id", &ids).Error
	if err != nil {
		return nil, err
	}
	owned := map[string]bool{catalog.DefaultThemeID: true}
	for _, id := range ids {
		owned[id] = true
	}
	return owned, nil
}

// Items lists the catalog with the caller's ownership and active theme.
func (s *Service) Items(ctx context.Context, userID uuid.UUID) (*ItemsResponse, error) {
	db := s.db.WithContext(ctx)
	owned, err := s.ownedThemes(db, userID)
	if err != nil {
		return nil, err
	}

	var user models.User
	if err := db.Select("id", "theme_id").First(&user, "id = ?", userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, services.ErrUserNotFound
		}
		return nil, err
	}

	balance, err := s.points.Balance(ctx, userID)
	if err != nil {
		return nil, err
	}

	items := s.catalog.Items()
	out := &ItemsResponse{Items: make([]ItemView, len(items)), Balance: balance.TotalPoints}
	for i, it := range items {
		view := ItemView{StoreItem: it}
		if it.Type == catalog.ItemTypeTheme {
			view.Owned = owned[it.ID]
			view.Active = user.ThemeID == it.ID
		}
		out.Items[i] = view
	}
	return out, nil
}

func (s *Service) findByIdempotencyKey(db *gorm.DB, userID uuid.UUID, key string) (*Purchase, error) {
	var p Purchase
	err := db.Where("user_id = ? AND idempotency_key = ?", userID, key).First(&p).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (s *Service) replay(ctx context.Context, p *Purchase, itemID string) (*PurchaseResponse, error) {
	if p.ItemID != itemID {
		return nil, ErrIdempotencyKeyConflict
	}
	balance, err := s.points.Balance(ctx, p.UserID)
	if err != nil {
		return nil, err
	}
	return &PurchaseResponse{Purchase: *p, Balance: balance.TotalPoints, Replayed: true}, nil
}

func voucherCode() string {
	raw := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", ""))
	return "GENT-" + raw[:4] + "-" + raw[4:8] + "-" + raw[8:12]
}

// Purchase deducts exactly the item's price and records one purchase row in
// a single transaction. A repeated idempotency key returns the original
// purchase without charging again.
func (s *Service) Purchase(ctx context.Context, userID uuid.UUID, itemID, idempotencyKey string) (resp *PurchaseResponse, err error) {
	ctx, end := tracing.StartSpan(ctx, "store.purchase", attribute.String("item_id", itemID))
	defer func() { end(err) }()

	item, ok := s.catalog.Item(itemID)
	if !ok {
		return nil, ErrItemNotFound
	}
	idempotencyKey = strings.TrimSpace(idempotencyKey)
	if len(idempotencyKey) > 100 {
		return nil, ErrIdempotencyKeyTooLong
	}

	db := s.db.WithContext(ctx)
	if idempotencyKey != "" {
		prior, err := s.findByIdempotencyKey(db, userID, idempotencyKey)
		if err != nil {
			return nil, err
		}
		if prior != nil {
			return s.replay(ctx, prior, itemID)
		}
	}

	if item.Type == catalog.ItemTypeTheme {
		owned, err := s.ownedThemes(db, userID)
		if err != nil {
			return nil, err
		}
		if owned[item.ID] {
			s.metrics.IncPurchase(item.Type, "already_owned")
			return nil, ErrAlreadyOwned
		}
	}

	purchase := &Purchase{
		ID:       uuid.New(),
		UserID:   userID,
		ItemID:   item.ID,
		ItemType: item.Type,
		Price:    item.Price,
	}
	if item.Type == catalog.ItemTypeTheme {
		purchase.OwnershipKey = fmt.Sprintf("theme:%s:%s", userID, item.ID)
	} else {
		purchase.OwnershipKey = "coupon:" + purchase.ID.String()
		code := voucherCode()
		purchase.VoucherCode = &code
	}
	if idempotencyKey != "" {
		purchase.IdempotencyKey = &idempotencyKey
	}

	var balance int
	err = db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(purchase).Error; err != nil {
			return err
		}
		b, err := s.points.Spend(ctx, tx, userID, item.Price, services.ReasonStorePurchase, "purchase", purchase.ID.String())
		if err != nil {
			return err
		}
		balance = b
		return nil
	})
	if err != nil {
		switch {
		case errors.Is(err, services.ErrInsufficientPoints):
			s.metrics.IncPurchase(item.Type, "insufficient_points")
			have, berr := s.points.Balance(ctx, userID)
			if berr != nil {
				return nil, err
			}
			return nil, &InsufficientPointsError{Need: item.Price, Have: have.TotalPoints}
		case errors.Is(err, gorm.ErrDuplicatedKey):
			// Lost a race with a concurrent request for the same key or theme.
			if idempotencyKey != "" {
				if prior, ferr := s.findByIdempotencyKey(db, userID, idempotencyKey); ferr == nil && prior != nil {
					return s.replay(ctx, prior, itemID)
				}
			}
			s.metrics.IncPurchase(item.Type, "already_owned")
			return nil, ErrAlreadyOwned
		}
		return nil, fmt.Errorf("purchase failed: %w", err)
	}

	s.metrics.IncPurchase(item.Type, "ok")
	s.metrics.AddPointsSpent(services.ReasonStorePurchase, item.Price)
	slog.Info("store purchase",
		"user_id", userID.String(),
		"item_id", item.ID,
		"price", item.Price,
		"balance", balance,
	)
	return &PurchaseResponse{Purchase: *purchase, Balance: balance}, nil
}

func (s *Service) Purchases(ctx context.Context, userID uuid.UUID, limit, offset int) ([]Purchase, int64, error) {
	db := s.db.WithContext(ctx)
	var total int64
	if err := db.Model(&Purchase{}).Scopes(session.ForUser(userID)).Count(&total).Error; err != nil {
		return nil, 0, err
	}
	var purchases []Purchase
	err := db.Scopes(session.ForUser(userID), session.Paginate(limit, offset, 100)).
		Order("created_at DESC").
		Find(&purchases).Error
	return purchases, total, err
}

// SelectTheme activates a theme the user owns. The default theme is always owned.
func (s *Service) SelectTheme(ctx context.Context, userID uuid.UUID, themeID string) (*models.User, error) {
	item, ok := s.catalog.Item(themeID)
	if !ok {
		return nil, ErrItemNotFound
	}
	if item.Type != catalog.ItemTypeTheme {
		return nil, ErrNotATheme
	}

	db := s.db.WithContext(ctx)
	owned, err := s.ownedThemes(db, userID)
	if err != nil {
		return nil, err
	}
	if !owned[item.ID] {
		return nil, ErrThemeNotOwned
	}

	res := db.Model(&models.User{}).Where("id = ?", userID).Update("theme_id", item.ID)
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, services.ErrUserNotFound
	}

	var user models.User
	if err := db.First(&user, "id = ?", userID).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

func (s *Service) DeleteUserData(tx *gorm.DB, userID uuid.UUID) error {
	return tx.Where("user_id = ?", userID).Delete(&Purchase{}).Error
}
