package cache

import (
	"context"
	"errors"

	"github.com/smertin-nikita/market/internal/domain"
)

var ErrCacheMiss = errors.New("basket not in cache")

// BasketCache caches the basket representation per owner.
type BasketCache interface {
	Get(ctx context.Context, ownerID int64) (*domain.Order, error)
	Set(ctx context.Context, ownerID int64, order *domain.Order) error
	Delete(ctx context.Context, ownerID int64) error
}
