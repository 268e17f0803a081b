package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/google/uuid"

	"stock-reservation-engine/internal/models"
)

// NormalizeMySQLDSN validates the DSN and forces parseTime=true on it.
// The DATETIME columns below scan into time.Time, which the driver only
// supports with parseTime enabled; without it every order and event
// read fails at Scan.
func NormalizeMySQLDSN(dsn string) (string, error) {
	cfg, err := mysql.ParseDSN(dsn)
	if err != nil {
		return "", fmt.Errorf("invalid MySQL DSN: %w", err)
	}
	cfg.ParseTime = true
	return cfg.FormatDSN(), nil
}

// MySQLStore backs both the stock ledger and the order store with MySQL.
// Status writes happen inside the engine's per-item critical section, so
// plain statements suffice; RowsAffected distinguishes missing rows.
// Connections must use a parseTime=true DSN; run it through
// NormalizeMySQLDSN before sql.Open.
//
// Expected schema:
//
//	CREATE TABLE stock_events (
//	    seq        BIGINT AUTO_INCREMENT PRIMARY KEY,
//	    id         CHAR(36) NOT NULL,
//	    item_id    VARCHAR(64) NOT NULL,
//	    quantity   INT NOT NULL,
//	    created_at DATETIME(6) NOT NULL,
//	    KEY idx_stock_events_item (item_id)
//	);
//	CREATE TABLE orders (
//	    id             VARCHAR(64) PRIMARY KEY,
//	    full_name      VARCHAR(255),
//	    phone          VARCHAR(32),
//	    address        TEXT,
//	    payment_status VARCHAR(32),
//	    payment_method VARCHAR(32),
//	    created_at     DATETIME(6) NOT NULL
//	);
//	CREATE TABLE order_items (
//	    id          VARCHAR(64) PRIMARY KEY,
//	    order_id    VARCHAR(64) NOT NULL,
//	    item_id     VARCHAR(64) NOT NULL,
//	    quantity    INT NOT NULL,
//	    unit_price  DECIMAL(10,2) NOT NULL,
//	    item_status VARCHAR(16) NOT NULL,
//	    KEY idx_order_items_order (order_id),
//	    KEY idx_order_items_item (item_id)
//	);
type MySQLStore struct {
	db *sql.DB
}

func NewMySQLStore(db *sql.DB) *MySQLStore {
	return &MySQLStore{db: db}
}

func (m *MySQLStore) Append(ctx context.Context, itemID string, quantity int) (models.StockEvent, error) {
	event := models.StockEvent{
		ID:        uuid.NewString(),
		ItemID:    itemID,
		Quantity:  quantity,
		Timestamp: time.Now().UTC(),
	}

	result, err := m.db.ExecContext(ctx, `
		INSERT INTO stock_events (id, item_id, quantity, created_at)
		VALUES (?, ?, ?, ?)`,
		event.ID, event.ItemID, event.Quantity, event.Timestamp,
	)
	if err != nil {
		return models.StockEvent{}, fmt.Errorf("insert stock event: %w", err)
	}

	seq, err := result.LastInsertId()
	if err != nil {
		return models.StockEvent{}, fmt.Errorf("stock event sequence: %w", err)
	}
	event.Offset = seq

	return event, nil
}

func (m *MySQLStore) TotalStock(ctx context.Context, itemID string) (int, error) {
	var total int
	err := m.db.QueryRowContext(ctx, `
		SELECT COALESCE(SUM(quantity), 0)
		FROM stock_events WHERE item_id = ?`, itemID,
	).Scan(&total)
	if err != nil {
		return 0, fmt.Errorf("sum stock events: %w", err)
	}
	return total, nil
}

func (m *MySQLStore) EventsForItem(ctx context.Context, itemID string) ([]models.StockEvent, error) {
	rows, err := m.db.QueryContext(ctx, `
		SELECT seq, id, item_id, quantity, created_at
		FROM stock_events WHERE item_id = ? ORDER BY seq`, itemID,
	)
	if err != nil {
		return nil, fmt.Errorf("query stock events: %w", err)
	}
	defer rows.Close()

	var events []models.StockEvent
	for rows.Next() {
		var ev models.StockEvent
		if err := rows.Scan(&ev.Offset, &ev.ID, &ev.ItemID, &ev.Quantity, &ev.Timestamp); err != nil {
			return nil, fmt.Errorf("scan stock event: %w", err)
		}
		events = append(events, ev)
	}
	return events, rows.Err()
}

func (m *MySQLStore) ItemIDs(ctx context.Context) ([]string, error) {
	rows, err := m.db.QueryContext(ctx, `
		SELECT DISTINCT item_id FROM stock_events ORDER BY item_id`)
	if err != nil {
		return nil, fmt.Errorf("query ledger items: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan item id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (m *MySQLStore) CreateOrder(ctx context.Context, order models.Order) error {
	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO orders (id, full_name, phone, address, payment_status, payment_method, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		order.ID, order.FullName, order.Phone, order.Address,
		order.PaymentStatus, order.PaymentMethod, order.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert order: %w", err)
	}

	for _, it := range order.Items {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO order_items (id, order_id, item_id, quantity, unit_price, item_status)
			VALUES (?, ?, ?, ?, ?, ?)`,
			it.ID, order.ID, it.ItemID, it.Quantity, it.UnitPrice, it.Status,
		)
		if err != nil {
			return fmt.Errorf("insert order item %s: %w", it.ID, err)
		}
	}

	return tx.Commit()
}

func (m *MySQLStore) GetOrder(ctx context.Context, orderID string) (models.Order, error) {
	var order models.Order
	err := m.db.QueryRowContext(ctx, `
		SELECT id, full_name, phone, address, payment_status, payment_method, created_at
		FROM orders WHERE id = ?`, orderID,
	).Scan(&order.ID, &order.FullName, &order.Phone, &order.Address,
		&order.PaymentStatus, &order.PaymentMethod, &order.CreatedAt)

	if errors.Is(err, sql.ErrNoRows) {
		return models.Order{}, fmt.Errorf("%w: %s", ErrOrderNotFound, orderID)
	}
	if err != nil {
		return models.Order{}, fmt.Errorf("query order: %w", err)
	}

	items, err := m.itemsForOrder(ctx, orderID)
	if err != nil {
		return models.Order{}, err
	}
	order.Items = items
	return order, nil
}

func (m *MySQLStore) ListOrders(ctx context.Context) ([]models.Order, error) {
	rows, err := m.db.QueryContext(ctx, `
		SELECT id, full_name, phone, address, payment_status, payment_method, created_at
		FROM orders ORDER BY created_at`)
	if err != nil {
		return nil, fmt.Errorf("query orders: %w", err)
	}
	defer rows.Close()

	var orders []models.Order
	for rows.Next() {
		var order models.Order
		if err := rows.Scan(&order.ID, &order.FullName, &order.Phone, &order.Address,
			&order.PaymentStatus, &order.PaymentMethod, &order.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan order: %w", err)
		}
		orders = append(orders, order)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range orders {
		items, err := m.itemsForOrder(ctx, orders[i].ID)
		if err != nil {
			return nil, err
		}
		orders[i].Items = items
	}
	return orders, nil
}

func (m *MySQLStore) GetOrderItem(ctx context.Context, orderItemID string) (models.OrderItem, error) {
	var it models.OrderItem
	err := m.db.QueryRowContext(ctx, `
		SELECT id, order_id, item_id, quantity, unit_price, item_status
		FROM order_items WHERE id = ?`, orderItemID,
	).Scan(&it.ID, &it.OrderID, &it.ItemID, &it.Quantity, &it.UnitPrice, &it.Status)

	if errors.Is(err, sql.ErrNoRows) {
		return models.OrderItem{}, fmt.Errorf("%w: %s", ErrOrderItemNotFound, orderItemID)
	}
	if err != nil {
		return models.OrderItem{}, fmt.Errorf("query order item: %w", err)
	}
	return it, nil
}

func (m *MySQLStore) ListOrderItemsByCatalogItem(ctx context.Context, itemID string) ([]models.OrderItem, error) {
	rows, err := m.db.QueryContext(ctx, `
		SELECT id, order_id, item_id, quantity, unit_price, item_status
		FROM order_items WHERE item_id = ?`, itemID,
	)
	if err != nil {
		return nil, fmt.Errorf("query order items by catalog item: %w", err)
	}
	defer rows.Close()

	var items []models.OrderItem
	for rows.Next() {
		var it models.OrderItem
		if err := rows.Scan(&it.ID, &it.OrderID, &it.ItemID, &it.Quantity, &it.UnitPrice, &it.Status); err != nil {
			return nil, fmt.Errorf("scan order item: %w", err)
		}
		items = append(items, it)
	}
	return items, rows.Err()
}

func (m *MySQLStore) UpdateItemStatus(ctx context.Context, orderItemID string, status models.ItemStatus) error {
	result, err := m.db.ExecContext(ctx, `
		UPDATE order_items SET item_status = ? WHERE id = ?`,
		status, orderItemID,
	)
	if err != nil {
		return fmt.Errorf("update item status: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("update item status rows: %w", err)
	}
	if rows == 0 {
		// Writing the current status again also affects zero rows on
		// MySQL, but the engine never issues self-transitions.
		return fmt.Errorf("%w: %s", ErrOrderItemNotFound, orderItemID)
	}
	return nil
}

func (m *MySQLStore) Close() error {
	return m.db.Close()
}

func (m *MySQLStore) itemsForOrder(ctx context.Context, orderID string) ([]models.OrderItem, error) {
	rows, err := m.db.QueryContext(ctx, `
		SELECT id, order_id, item_id, quantity, unit_price, item_status
		FROM order_items WHERE order_id = ? ORDER BY id`, orderID,
	)
	if err != nil {
		return nil, fmt.Errorf("query order items: %w", err)
	}
	defer rows.Close()

	var items []models.OrderItem
	for rows.Next() {
		var it models.OrderItem
		if err := rows.Scan(&it.ID, &it.OrderID, &it.ItemID, &it.Quantity, &it.UnitPrice, &it.Status); err != nil {
			return nil, fmt.Errorf("scan order item: %w", err)
		}
		items = append(items, it)
	}
	return items, rows.Err()
}
