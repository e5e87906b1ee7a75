package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"
	"github.com/shopspring/decimal"

	"github.com/smertin-nikita/market/internal/domain"
)

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

const orderColumns = `id, owner_id, status, amount, created_at, updated_at`

type OrderFilter struct {
	OwnerID *int64
	Status  *domain.OrderStatus

	// SupplierID widens the result to placed orders carrying goods from a
	// shop owned by this user, alongside the user's own orders.
	SupplierID    *int64
	ExcludeBasket bool
}

// GetOrCreateBasket returns the owner's basket order, creating it on first
// access. The insert races safely against concurrent callers through the
// partial unique index on (owner_id) WHERE status = 'BASKET'.
func (r *Repository) GetOrCreateBasket(ctx context.Context, ownerID int64) (*domain.Order, error) {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO orders (owner_id, status)
		 VALUES ($1, 'BASKET')
		 ON CONFLICT (owner_id) WHERE status = 'BASKET' DO NOTHING`,
		ownerID)
	if err != nil {
		return nil, fmt.Errorf("insert basket: %w", err)
	}

	var order domain.Order
	row := r.db.QueryRowContext(ctx,
		`SELECT `+orderColumns+` FROM orders WHERE owner_id = $1 AND status = $2`,
		ownerID, domain.OrderStatusBasket)
	if err := scanOrder(row, &order); err != nil {
		return nil, fmt.Errorf("select basket: %w", err)
	}

	if err := r.loadItems(ctx, r.db, &order); err != nil {
		return nil, err
	}
	return &order, nil
}

func (r *Repository) GetOrder(ctx context.Context, id int64) (*domain.Order, error) {
	var order domain.Order
	row := r.db.QueryRowContext(ctx,
		`SELECT `+orderColumns+` FROM orders WHERE id = $1`, id)
	err := scanOrder(row, &order)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrOrderNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query order by id: %w", err)
	}

	if err := r.loadItems(ctx, r.db, &order); err != nil {
		return nil, err
	}
	return &order, nil
}

func (r *Repository) ListOrders(ctx context.Context, filter OrderFilter) ([]*domain.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders WHERE 1=1`
	var args []any

	if filter.OwnerID != nil {
		args = append(args, *filter.OwnerID)
		query += fmt.Sprintf(" AND owner_id = $%d", len(args))
	}
	if filter.SupplierID != nil {
		args = append(args, *filter.SupplierID)
		query += fmt.Sprintf(` AND (owner_id = $%[1]d OR (status <> 'BASKET' AND id IN (
			SELECT oi.order_id FROM order_items oi
			JOIN product_infos pi ON pi.id = oi.product_info_id
			JOIN shops s ON s.id = pi.shop_id
			WHERE s.owner_id = $%[1]d)))`, len(args))
	}
	if filter.Status != nil {
		args = append(args, *filter.Status)
		query += fmt.Sprintf(" AND status = $%d", len(args))
	}
	if filter.ExcludeBasket {
		args = append(args, domain.OrderStatusBasket)
		query += fmt.Sprintf(" AND status <> $%d", len(args))
	}
	query += " ORDER BY created_at DESC"

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query orders: %w", err)
	}
	defer rows.Close()

	var orders []*domain.Order
	for rows.Next() {
		var order domain.Order
		if err := scanOrder(rows, &order); err != nil {
			return nil, fmt.Errorf("scan order row: %w", err)
		}
		orders = append(orders, &order)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	if err := r.loadItemsBatch(ctx, orders); err != nil {
		return nil, err
	}
	return orders, nil
}

// AppendItems adds line items to a basket, snapshotting each inventory
// record's current unit price, and recomputes the order amount. Stock is not
// touched here.
func (r *Repository) AppendItems(ctx context.Context, orderID int64, items []domain.OrderItem) (*domain.Order, error) {
	err := r.inTx(ctx, func(tx *sql.Tx) error {
		if err := lockBasket(ctx, tx, orderID); err != nil {
			return err
		}
		if err := insertItems(ctx, tx, orderID, items); err != nil {
			return err
		}
		return recomputeAmount(ctx, tx, orderID)
	})
	if err != nil {
		return nil, err
	}
	return r.GetOrder(ctx, orderID)
}

// ReplaceItems swaps the basket's entire line-item set for the supplied one.
func (r *Repository) ReplaceItems(ctx context.Context, orderID int64, items []domain.OrderItem) (*domain.Order, error) {
	err := r.inTx(ctx, func(tx *sql.Tx) error {
		if err := lockBasket(ctx, tx, orderID); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM order_items WHERE order_id = $1`, orderID); err != nil {
			return fmt.Errorf("delete order items: %w", err)
		}
		if err := insertItems(ctx, tx, orderID, items); err != nil {
			return err
		}
		return recomputeAmount(ctx, tx, orderID)
	})
	if err != nil {
		return nil, err
	}
	return r.GetOrder(ctx, orderID)
}

func (r *Repository) UpdateItemQuantity(ctx context.Context, orderID, itemID int64, quantity int) (*domain.Order, error) {
	err := r.inTx(ctx, func(tx *sql.Tx) error {
		if err := lockBasket(ctx, tx, orderID); err != nil {
			return err
		}
		res, err := tx.ExecContext(ctx,
			`UPDATE order_items SET quantity = $1 WHERE id = $2 AND order_id = $3`,
			quantity, itemID, orderID)
		if err != nil {
			return fmt.Errorf("update item quantity: %w", err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return ErrItemNotFound
		}
		return recomputeAmount(ctx, tx, orderID)
	})
	if err != nil {
		return nil, err
	}
	return r.GetOrder(ctx, orderID)
}

func (r *Repository) RemoveItem(ctx context.Context, orderID, itemID int64) (*domain.Order, error) {
	err := r.inTx(ctx, func(tx *sql.Tx) error {
		if err := lockBasket(ctx, tx, orderID); err != nil {
			return err
		}
		res, err := tx.ExecContext(ctx,
			`DELETE FROM order_items WHERE id = $1 AND order_id = $2`, itemID, orderID)
		if err != nil {
			return fmt.Errorf("delete order item: %w", err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return ErrItemNotFound
		}
		return recomputeAmount(ctx, tx, orderID)
	})
	if err != nil {
		return nil, err
	}
	return r.GetOrder(ctx, orderID)
}

func (r *Repository) DeleteOrder(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM orders WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete order: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrOrderNotFound
	}
	return nil
}

// ConfirmOrder runs the BASKET -> NEW transition: it locks the referenced
// inventory rows, verifies stock for every line item before any mutation,
// debits the requested quantities, refreshes each item's price snapshot to the
// price at debit time, recomputes the amount and writes the status. The whole
// operation commits together or not at all. Concurrent confirmations against
// the same inventory record serialize on the row locks.
func (r *Repository) ConfirmOrder(ctx context.Context, orderID int64) (*domain.Order, error) {
	err := r.inTx(ctx, func(tx *sql.Tx) error {
		status, err := lockOrder(ctx, tx, orderID)
		if err != nil {
			return err
		}
		if _, err := domain.Effect(status, domain.OrderStatusNew); err != nil {
			return err
		}

		// Lock inventory rows in id order so concurrent confirmations
		// cannot deadlock.
		rows, err := tx.QueryContext(ctx,
			`SELECT oi.id, oi.product_info_id, oi.quantity, pi.quantity, pi.price
			 FROM order_items oi
			 JOIN product_infos pi ON pi.id = oi.product_info_id
			 WHERE oi.order_id = $1
			 ORDER BY oi.product_info_id
			 FOR UPDATE OF pi`, orderID)
		if err != nil {
			return fmt.Errorf("lock inventory rows: %w", err)
		}

		type line struct {
			itemID    int64
			productID int64
			requested int
			available int
			price     decimal.Decimal
		}
		var lines []line
		for rows.Next() {
			var l line
			if err := rows.Scan(&l.itemID, &l.productID, &l.requested, &l.available, &l.price); err != nil {
				rows.Close()
				return fmt.Errorf("scan inventory row: %w", err)
			}
			lines = append(lines, l)
		}
		if err := rows.Err(); err != nil {
			rows.Close()
			return fmt.Errorf("row iteration error: %w", err)
		}
		rows.Close()

		if len(lines) == 0 {
			return domain.ErrEmptyBasket
		}

		// Validate everything before mutating anything.
		for _, l := range lines {
			if l.requested > l.available {
				return fmt.Errorf("product info %d has %d of %d requested: %w",
					l.productID, l.available, l.requested, domain.ErrInsufficientStock)
			}
		}

		amount := decimal.Zero
		for _, l := range lines {
			if _, err := tx.ExecContext(ctx,
				`UPDATE product_infos SET quantity = quantity - $1 WHERE id = $2`,
				l.requested, l.productID); err != nil {
				return fmt.Errorf("debit stock: %w", err)
			}
			if _, err := tx.ExecContext(ctx,
				`UPDATE order_items SET price = $1 WHERE id = $2`,
				l.price, l.itemID); err != nil {
				return fmt.Errorf("refresh item price: %w", err)
			}
			amount = amount.Add(l.price.Mul(decimal.NewFromInt(int64(l.requested))))
		}

		if _, err := tx.ExecContext(ctx,
			`UPDATE orders SET status = $1, amount = $2, updated_at = NOW() WHERE id = $3`,
			domain.OrderStatusNew, amount, orderID); err != nil {
			return fmt.Errorf("update order status: %w", err)
		}

		return insertOutboxEvent(ctx, tx, orderID, EventOrderConfirmed, domain.OrderStatusNew, amount)
	})
	if err != nil {
		return nil, err
	}
	return r.GetOrder(ctx, orderID)
}

// SetOrderStatus moves an order to the requested status if the transition
// table allows it. Entering CANCELLED credits every line item's quantity back
// to its inventory record; the table forbids a second cancellation, so stock
// is never restored twice.
func (r *Repository) SetOrderStatus(ctx context.Context, orderID int64, next domain.OrderStatus) (*domain.Order, error) {
	err := r.inTx(ctx, func(tx *sql.Tx) error {
		current, err := lockOrder(ctx, tx, orderID)
		if err != nil {
			return err
		}
		effect, err := domain.Effect(current, next)
		if err != nil {
			return err
		}

		if effect == domain.EffectCreditStock {
			if _, err := tx.ExecContext(ctx,
				`UPDATE product_infos pi
				 SET quantity = pi.quantity + oi.quantity
				 FROM order_items oi
				 WHERE oi.order_id = $1 AND oi.product_info_id = pi.id`,
				orderID); err != nil {
				return fmt.Errorf("credit stock: %w", err)
			}
		}

		var amount decimal.Decimal
		if err := tx.QueryRowContext(ctx,
			`UPDATE orders SET status = $1, updated_at = NOW() WHERE id = $2 RETURNING amount`,
			next, orderID).Scan(&amount); err != nil {
			return fmt.Errorf("update order status: %w", err)
		}

		return insertOutboxEvent(ctx, tx, orderID, EventOrderStatusChanged, next, amount)
	})
	if err != nil {
		return nil, err
	}
	return r.GetOrder(ctx, orderID)
}

func lockOrder(ctx context.Context, tx *sql.Tx, orderID int64) (domain.OrderStatus, error) {
	var status domain.OrderStatus
	err := tx.QueryRowContext(ctx,
		`SELECT status FROM orders WHERE id = $1 FOR UPDATE`, orderID).Scan(&status)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrOrderNotFound
	}
	if err != nil {
		return "", fmt.Errorf("lock order: %w", err)
	}
	return status, nil
}

func lockBasket(ctx context.Context, tx *sql.Tx, orderID int64) error {
	status, err := lockOrder(ctx, tx, orderID)
	if err != nil {
		return err
	}
	if status != domain.OrderStatusBasket {
		return ErrOrderNotBasket
	}
	return nil
}

func insertItems(ctx context.Context, tx *sql.Tx, orderID int64, items []domain.OrderItem) error {
	for _, item := range items {
		if item.Quantity <= 0 {
			return domain.ErrInvalidQuantity
		}

		var price decimal.Decimal
		err := tx.QueryRowContext(ctx,
			`SELECT price FROM product_infos WHERE id = $1`, item.ProductInfoID).Scan(&price)
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("product info %d: %w", item.ProductInfoID, ErrProductInfoNotFound)
		}
		if err != nil {
			return fmt.Errorf("query product info price: %w", err)
		}

		_, err = tx.ExecContext(ctx,
			`INSERT INTO order_items (order_id, product_info_id, quantity, price)
			 VALUES ($1, $2, $3, $4)`,
			orderID, item.ProductInfoID, item.Quantity, price)
		if err != nil {
			var pqErr *pq.Error
			if errors.As(err, &pqErr) && pqErr.Code == "23505" {
				return fmt.Errorf("product info %d: %w", item.ProductInfoID, ErrDuplicateItem)
			}
			return fmt.Errorf("insert order item: %w", err)
		}
	}
	return nil
}

func recomputeAmount(ctx context.Context, tx *sql.Tx, orderID int64) error {
	_, err := tx.ExecContext(ctx,
		`UPDATE orders
		 SET amount = (SELECT COALESCE(SUM(price * quantity), 0) FROM order_items WHERE order_id = $1),
		     updated_at = NOW()
		 WHERE id = $1`, orderID)
	if err != nil {
		return fmt.Errorf("recompute amount: %w", err)
	}
	return nil
}

func scanOrder(row interface{ Scan(...any) error }, order *domain.Order) error {
	return row.Scan(
		&order.ID,
		&order.OwnerID,
		&order.Status,
		&order.Amount,
		&order.CreatedAt,
		&order.UpdatedAt,
	)
}

const itemColumns = `oi.id, oi.order_id, oi.product_info_id, oi.quantity, oi.price,
	pi.id, pi.product_id, pi.shop_id, pi.code_id, pi.model, pi.quantity, pi.price, pi.price_rrc,
	p.id, p.name, s.id, s.name, COALESCE(s.owner_id, 0)`

const itemJoins = `FROM order_items oi
	JOIN product_infos pi ON pi.id = oi.product_info_id
	JOIN products p ON p.id = pi.product_id
	JOIN shops s ON s.id = pi.shop_id`

func (r *Repository) loadItems(ctx context.Context, q querier, order *domain.Order) error {
	rows, err := q.QueryContext(ctx,
		`SELECT `+itemColumns+`
		 `+itemJoins+`
		 WHERE oi.order_id = $1
		 ORDER BY oi.id`, order.ID)
	if err != nil {
		return fmt.Errorf("query order items: %w", err)
	}
	defer rows.Close()

	order.Items = nil
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return err
		}
		order.Items = append(order.Items, item)
	}
	return rows.Err()
}

func (r *Repository) loadItemsBatch(ctx context.Context, orders []*domain.Order) error {
	if len(orders) == 0 {
		return nil
	}

	byID := make(map[int64]*domain.Order, len(orders))
	ids := make([]int64, 0, len(orders))
	for _, o := range orders {
		byID[o.ID] = o
		ids = append(ids, o.ID)
	}

	rows, err := r.db.QueryContext(ctx,
		`SELECT `+itemColumns+`
		 `+itemJoins+`
		 WHERE oi.order_id = ANY($1)
		 ORDER BY oi.id`, pq.Array(ids))
	if err != nil {
		return fmt.Errorf("query order items: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return err
		}
		if o, ok := byID[item.OrderID]; ok {
			o.Items = append(o.Items, item)
		}
	}
	return rows.Err()
}

func scanItem(rows *sql.Rows) (domain.OrderItem, error) {
	var item domain.OrderItem
	var info domain.ProductInfo
	var product domain.Product
	var shop domain.Shop
	err := rows.Scan(
		&item.ID,
		&item.OrderID,
		&item.ProductInfoID,
		&item.Quantity,
		&item.Price,
		&info.ID,
		&info.ProductID,
		&info.ShopID,
		&info.CodeID,
		&info.Model,
		&info.Quantity,
		&info.Price,
		&info.PriceRRC,
		&product.ID,
		&product.Name,
		&shop.ID,
		&shop.Name,
		&shop.OwnerID,
	)
	if err != nil {
		return item, fmt.Errorf("scan order item row: %w", err)
	}
	info.Product = &product
	info.Shop = &shop
	item.ProductInfo = &info
	return item, nil
}
