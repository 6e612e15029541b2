package orders

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/atmosfood/storefront-backend/pkg/db/models"
	"github.com/atmosfood/storefront-backend/pkg/enums"
	"github.com/atmosfood/storefront-backend/pkg/pagination"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ErrOrderFinal is returned by UpdateStatus when the order exists but has
// already reached a final status.
var ErrOrderFinal = errors.New("order is final")

var finalStatuses = []enums.OrderStatus{enums.OrderStatusCompleted, enums.OrderStatusCancelled}

type repository struct {
	db *gorm.DB
}

// NewRepository builds an orders repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, order *models.Order) (*models.Order, error) {
	if order.ID == uuid.Nil {
		order.ID = uuid.New()
	}
	if order.Status == "" {
		order.Status = enums.OrderStatusPreparing
	}
	if err := r.db.WithContext(ctx).Create(order).Error; err != nil {
		return nil, err
	}
	return order, nil
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	var order models.Order
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&order).Error; err != nil {
		return nil, err
	}
	return &order, nil
}

func (r *repository) FindByReference(ctx context.Context, reference string) (*models.Order, error) {
	var order models.Order
	err := r.db.WithContext(ctx).
		Where("order_reference = ?", strings.TrimSpace(reference)).
		First(&order).Error
	if err != nil {
		return nil, err
	}
	return &order, nil
}

// ListByEmail returns orders for email newest first. Matching ignores case.
func (r *repository) ListByEmail(ctx context.Context, email string, params pagination.Params) (pagination.Page[models.Order], error) {
	cursor, err := pagination.ParseCursor(params.Cursor)
	if err != nil {
		return pagination.Page[models.Order]{}, err
	}

	query := r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("lower(email) = ?", normalizeEmail(email))
	if cursor != nil {
		query = query.Where("(created_at < ?) OR (created_at = ? AND id < ?)", cursor.CreatedAt, cursor.CreatedAt, cursor.ID)
	}

	var rows []models.Order
	err = query.
		Order("created_at DESC").
		Order("id DESC").
		Limit(pagination.FetchLimit(params.Limit)).
		Find(&rows).Error
	if err != nil {
		return pagination.Page[models.Order]{}, err
	}
	return pagination.Build(rows, params.Limit, func(o models.Order) pagination.Cursor {
		return pagination.Cursor{CreatedAt: o.CreatedAt, ID: o.ID}
	}), nil
}

// Stats groups orders by status. An empty email covers every order.
func (r *repository) Stats(ctx context.Context, email string) ([]StatusTotal, error) {
	query := r.db.WithContext(ctx).Model(&models.Order{})
	if email = normalizeEmail(email); email != "" {
		query = query.Where("lower(email) = ?", email)
	}

	var rows []struct {
		Status enums.OrderStatus
		Count  int64
		Amount int64
	}
	err := query.
		Select("status, COUNT(*) AS count, COALESCE(SUM(total_amount), 0) AS amount").
		Group("status").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	out := make([]StatusTotal, 0, len(rows))
	for _, row := range rows {
		out = append(out, StatusTotal{Status: row.Status, Count: row.Count, Amount: row.Amount})
	}
	return out, nil
}

func (r *repository) UpdateStatus(ctx context.Context, id uuid.UUID, status enums.OrderStatus, eta *time.Time) error {
	updates := map[string]any{"status": status}
	if eta != nil {
		updates["estimated_delivery_at"] = *eta
	}
	res := r.db.WithContext(ctx).Model(&models.Order{}).
		Where("id = ?", id).
		Where("status NOT IN ?", finalStatuses).
		Updates(updates)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected > 0 {
		return nil
	}
	var count int64
	if err := r.db.WithContext(ctx).Model(&models.Order{}).Where("id = ?", id).Count(&count).Error; err != nil {
		return err
	}
	if count == 0 {
		return gorm.ErrRecordNotFound
	}
	return ErrOrderFinal
}

// ListActive returns non-final orders placed since the cutoff that the
// order API knows about, oldest first.
func (r *repository) ListActive(ctx context.Context, since time.Time, limit int) ([]models.Order, error) {
	query := r.db.WithContext(ctx).
		Where("status NOT IN ?", finalStatuses).
		Where("upstream_order_id <> ''").
		Where("created_at >= ?", since).
		Order("created_at ASC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	var rows []models.Order
	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
