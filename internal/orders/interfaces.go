package orders

import (
	"context"
	"time"

	"github.com/atmosfood/storefront-backend/pkg/db/models"
	"github.com/atmosfood/storefront-backend/pkg/enums"
	"github.com/atmosfood/storefront-backend/pkg/pagination"
	"github.com/atmosfood/storefront-backend/pkg/types"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Repository persists order history.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, order *models.Order) (*models.Order, error)
	FindByID(ctx context.Context, id uuid.UUID) (*models.Order, error)
	FindByReference(ctx context.Context, reference string) (*models.Order, error)
	ListByEmail(ctx context.Context, email string, params pagination.Params) (pagination.Page[models.Order], error)
	Stats(ctx context.Context, email string) ([]StatusTotal, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status enums.OrderStatus, eta *time.Time) error
	ListActive(ctx context.Context, since time.Time, limit int) ([]models.Order, error)
}

// StatusTotal aggregates orders sharing a status.
type StatusTotal struct {
	Status enums.OrderStatus
	Count  int64
	Amount int64
}

// Submitter places orders with the remote order API.
type Submitter interface {
	Submit(ctx context.Context, idempotencyKey string, payload types.CheckoutPayload) (SubmitResult, error)
	Fetch(ctx context.Context, upstreamID string) (RemoteOrder, error)
}
