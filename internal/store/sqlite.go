package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"

	apperrors "auction-trader/internal/errors"
	"auction-trader/internal/models"
)

// ErrOrderNotFound is returned when no order matches a client order id.
var ErrOrderNotFound = errors.New("order not found")

// SQLiteStore implements OrderStore using SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (and creates if needed) the order journal.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrDatabaseError, fmt.Sprintf("failed to open database: %v", err))
	}

	db.SetMaxOpenConns(4)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(time.Hour)

	store := &SQLiteStore{db: db}
	if err := store.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return store, nil
}

// initSchema creates all required tables and indexes.
func (s *SQLiteStore) initSchema() error {
	schema := `
	-- Submitted orders; decimals are stored as text to keep them exact
	CREATE TABLE IF NOT EXISTS orders (
		client_order_id TEXT PRIMARY KEY,
		order_id TEXT,
		description TEXT NOT NULL,
		currency_pair TEXT NOT NULL,
		expiry DATETIME,
		total_net_price TEXT NOT NULL,
		lock_amount TEXT NOT NULL,
		fees TEXT NOT NULL,
		status TEXT NOT NULL,
		submitted_at DATETIME NOT NULL,
		updated_at DATETIME NOT NULL
	);

	CREATE TABLE IF NOT EXISTS order_legs (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		client_order_id TEXT NOT NULL,
		leg_index INTEGER NOT NULL,
		contract_id INTEGER NOT NULL,
		side TEXT NOT NULL,
		quantity TEXT NOT NULL,
		UNIQUE(client_order_id, leg_index),
		FOREIGN KEY (client_order_id) REFERENCES orders(client_order_id) ON DELETE CASCADE
	);

	CREATE INDEX IF NOT EXISTS idx_orders_submitted ON orders(submitted_at);
	CREATE INDEX IF NOT EXISTS idx_orders_status ON orders(status);
	`

	_, err := s.db.Exec(schema)
	return err
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// SaveOrder writes an order and its legs in one transaction. Saving an
// existing client order id replaces it.
func (s *SQLiteStore) SaveOrder(ctx context.Context, order *models.SubmittedOrder) error {
	if order == nil || order.ClientOrderID == "" {
		return apperrors.NewValidationError("client_order_id", "", "order needs a client order id")
	}

	now := time.Now().UTC()
	if order.SubmittedAt.IsZero() {
		order.SubmittedAt = now
	}
	if order.UpdatedAt.IsZero() {
		order.UpdatedAt = order.SubmittedAt
	}
	if order.Status == "" {
		order.Status = models.OrderStatusOpen
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM order_legs WHERE client_order_id = ?`, order.ClientOrderID); err != nil {
		return fmt.Errorf("failed to clear legs: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT OR REPLACE INTO orders (client_order_id, order_id, description, currency_pair, expiry, total_net_price, lock_amount, fees, status, submitted_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, order.ClientOrderID, order.OrderID, order.Description, order.CurrencyPair, order.Expiry.UTC(),
		order.TotalNetPrice.String(), order.Lock.String(), order.Fees.String(),
		string(order.Status), order.SubmittedAt.UTC(), order.UpdatedAt.UTC())
	if err != nil {
		return fmt.Errorf("failed to save order: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO order_legs (client_order_id, leg_index, contract_id, side, quantity)
		VALUES (?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer stmt.Close()

	for i, leg := range order.Legs {
		if _, err := stmt.ExecContext(ctx, order.ClientOrderID, i, leg.ContractID, string(leg.Side), leg.Quantity.String()); err != nil {
			return fmt.Errorf("failed to insert leg: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

const orderColumns = "client_order_id, order_id, description, currency_pair, expiry, total_net_price, lock_amount, fees, status, submitted_at, updated_at"

// GetOrders retrieves orders, newest first.
func (s *SQLiteStore) GetOrders(ctx context.Context, filter OrderFilter) ([]models.SubmittedOrder, error) {
	query := "SELECT " + orderColumns + " FROM orders WHERE 1=1"
	args := []interface{}{}

	if filter.CurrencyPair != "" {
		query += " AND currency_pair = ?"
		args = append(args, filter.CurrencyPair)
	}
	if filter.Status != "" {
		query += " AND status = ?"
		args = append(args, string(filter.Status))
	}
	if !filter.StartDate.IsZero() {
		query += " AND submitted_at >= ?"
		args = append(args, filter.StartDate.UTC())
	}
	if !filter.EndDate.IsZero() {
		query += " AND submitted_at <= ?"
		args = append(args, filter.EndDate.UTC())
	}

	query += " ORDER BY submitted_at DESC"
	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query orders: %w", err)
	}

	var orders []models.SubmittedOrder
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			rows.Close()
			return nil, err
		}
		orders = append(orders, o)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, err
	}
	rows.Close()

	for i := range orders {
		legs, err := s.getLegs(ctx, orders[i].ClientOrderID)
		if err != nil {
			return nil, err
		}
		orders[i].Legs = legs
	}
	return orders, nil
}

// GetOrder retrieves one order with its legs.
func (s *SQLiteStore) GetOrder(ctx context.Context, clientOrderID string) (*models.SubmittedOrder, error) {
	row := s.db.QueryRowContext(ctx, "SELECT "+orderColumns+" FROM orders WHERE client_order_id = ?", clientOrderID)
	o, err := scanOrder(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrOrderNotFound, clientOrderID)
	}
	if err != nil {
		return nil, err
	}

	o.Legs, err = s.getLegs(ctx, clientOrderID)
	if err != nil {
		return nil, err
	}
	return &o, nil
}

// UpdateOrderStatus updates an order's status.
func (s *SQLiteStore) UpdateOrderStatus(ctx context.Context, clientOrderID string, status models.OrderStatus) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE orders SET status = ?, updated_at = ? WHERE client_order_id = ?
	`, string(status), time.Now().UTC(), clientOrderID)
	if err != nil {
		return fmt.Errorf("failed to update order status: %w", err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", ErrOrderNotFound, clientOrderID)
	}
	return nil
}

func (s *SQLiteStore) getLegs(ctx context.Context, clientOrderID string) ([]models.Leg, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT contract_id, side, quantity FROM order_legs
		WHERE client_order_id = ? ORDER BY leg_index
	`, clientOrderID)
	if err != nil {
		return nil, fmt.Errorf("failed to query legs: %w", err)
	}
	defer rows.Close()

	var legs []models.Leg
	for rows.Next() {
		var leg models.Leg
		var side, qty string
		if err := rows.Scan(&leg.ContractID, &side, &qty); err != nil {
			return nil, fmt.Errorf("failed to scan leg: %w", err)
		}
		leg.Side = models.Side(side)
		if leg.Quantity, err = decimal.NewFromString(qty); err != nil {
			return nil, fmt.Errorf("leg quantity %q: %w", qty, err)
		}
		legs = append(legs, leg)
	}
	return legs, rows.Err()
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanOrder(row rowScanner) (models.SubmittedOrder, error) {
	var o models.SubmittedOrder
	var orderID sql.NullString
	var expiry sql.NullTime
	var net, lock, fees, status string

	err := row.Scan(&o.ClientOrderID, &orderID, &o.Description, &o.CurrencyPair, &expiry,
		&net, &lock, &fees, &status, &o.SubmittedAt, &o.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return o, err
		}
		return o, fmt.Errorf("failed to scan order: %w", err)
	}

	o.OrderID = orderID.String
	if expiry.Valid {
		o.Expiry = expiry.Time
	}
	o.Status = models.OrderStatus(status)

	for _, f := range []struct {
		dst *decimal.Decimal
		raw string
	}{{&o.TotalNetPrice, net}, {&o.Lock, lock}, {&o.Fees, fees}} {
		v, err := decimal.NewFromString(f.raw)
		if err != nil {
			return o, fmt.Errorf("decimal column %q: %w", f.raw, err)
		}
		*f.dst = v
	}
	return o, nil
}

var _ OrderStore = (*SQLiteStore)(nil)
