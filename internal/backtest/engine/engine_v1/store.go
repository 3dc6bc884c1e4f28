package engine

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	"github.com/Masterminds/squirrel"
	_ "github.com/marcboeker/go-duckdb"
	"github.com/moznion/go-optional"
	"github.com/voltlab/volt-backtest/internal/logger"
	"github.com/voltlab/volt-backtest/internal/types"
	"github.com/voltlab/volt-backtest/pkg/errors"
	"go.uber.org/zap"
)

// RunStore archives the orders and fills of a run in an in-memory DuckDB
// database, so results can be queried with SQL and exported to Parquet.
type RunStore struct {
	db     *sql.DB
	logger *logger.Logger
	sq     squirrel.StatementBuilderType
}

// NewRunStore opens the backing database.
func NewRunStore(logger *logger.Logger) (*RunStore, error) {
	db, err := sql.Open("duckdb", ":memory:")
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeStoreInitFailed, "failed to open database", err)
	}

	return &RunStore{
		db:     db,
		logger: logger,
		sq:     squirrel.StatementBuilder.PlaceholderFormat(squirrel.Question),
	}, nil
}

// Initialize creates the orders and fills tables.
func (s *RunStore) Initialize() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS orders (
			order_id TEXT PRIMARY KEY,
			symbol TEXT,
			side TEXT,
			order_type TEXT,
			quantity DOUBLE,
			limit_price DOUBLE,
			requested_at TIMESTAMP,
			status TEXT,
			reason TEXT,
			message TEXT,
			strategy_name TEXT
		)
	`)
	if err != nil {
		return errors.Wrap(errors.ErrCodeStoreInitFailed, "failed to create orders table", err)
	}

	_, err = s.db.Exec(`
		CREATE TABLE IF NOT EXISTS fills (
			order_id TEXT,
			symbol TEXT,
			side TEXT,
			quantity DOUBLE,
			price DOUBLE,
			commission DOUBLE,
			slippage DOUBLE,
			filled_at TIMESTAMP,
			pnl DOUBLE
		)
	`)
	if err != nil {
		return errors.Wrap(errors.ErrCodeStoreInitFailed, "failed to create fills table", err)
	}

	return nil
}

// SaveOrder inserts or replaces an order. Orders are written when submitted
// and rewritten when they reach a terminal status.
func (s *RunStore) SaveOrder(order types.Order) error {
	limitPrice := 0.0
	if order.LimitPrice.IsSome() {
		limitPrice = order.LimitPrice.Unwrap()
	}

	_, err := s.sq.
		Insert("orders").
		Options("OR REPLACE").
		Columns(
			"order_id", "symbol", "side", "order_type", "quantity", "limit_price",
			"requested_at", "status", "reason", "message", "strategy_name",
		).
		Values(
			order.ID, order.Symbol, order.Side, order.Type, order.Quantity, limitPrice,
			order.RequestedAt, order.Status, order.Reason.Reason, order.Reason.Message,
			order.StrategyName,
		).
		RunWith(s.db).
		Exec()
	if err != nil {
		return errors.Wrapf(errors.ErrCodeStoreWriteFailed, err, "failed to save order %s", order.ID)
	}

	return nil
}

// SaveFill appends a fill.
func (s *RunStore) SaveFill(fill types.Fill) error {
	_, err := s.sq.
		Insert("fills").
		Columns(
			"order_id", "symbol", "side", "quantity", "price",
			"commission", "slippage", "filled_at", "pnl",
		).
		Values(
			fill.OrderID, fill.Symbol, fill.Side, fill.Quantity, fill.Price,
			fill.Commission, fill.Slippage, fill.Time, fill.PnL,
		).
		RunWith(s.db).
		Exec()
	if err != nil {
		return errors.Wrapf(errors.ErrCodeStoreWriteFailed, err, "failed to save fill for order %s", fill.OrderID)
	}

	return nil
}

// GetOrderByID looks up an archived order.
func (s *RunStore) GetOrderByID(orderID string) (optional.Option[types.Order], error) {
	row := s.sq.
		Select(
			"order_id", "symbol", "side", "order_type", "quantity", "limit_price",
			"requested_at", "status", "reason", "message", "strategy_name",
		).
		From("orders").
		Where(squirrel.Eq{"order_id": orderID}).
		RunWith(s.db).
		QueryRow()

	var order types.Order

	var limitPrice float64
	err := row.Scan(
		&order.ID, &order.Symbol, &order.Side, &order.Type, &order.Quantity, &limitPrice,
		&order.RequestedAt, &order.Status, &order.Reason.Reason, &order.Reason.Message,
		&order.StrategyName,
	)
	if err == sql.ErrNoRows {
		return optional.None[types.Order](), nil
	}
	if err != nil {
		return optional.None[types.Order](), errors.Wrapf(errors.ErrCodeStoreQueryFailed, err, "failed to query order %s", orderID)
	}

	if order.Type == types.OrderTypeLimit {
		order.LimitPrice = optional.Some(limitPrice)
	}

	return optional.Some(order), nil
}

// CountOrdersByStatus returns the number of archived orders per status.
func (s *RunStore) CountOrdersByStatus() (map[types.OrderStatus]int, error) {
	rows, err := s.sq.
		Select("status", "COUNT(*)").
		From("orders").
		GroupBy("status").
		RunWith(s.db).
		Query()
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeStoreQueryFailed, "failed to count orders", err)
	}
	defer rows.Close()

	counts := make(map[types.OrderStatus]int)
	for rows.Next() {
		var status types.OrderStatus

		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, errors.Wrap(errors.ErrCodeStoreQueryFailed, "failed to scan order count", err)
		}
		counts[status] = count
	}

	return counts, rows.Err()
}

// TotalFillPnL sums the realized PnL over all archived fills.
func (s *RunStore) TotalFillPnL() (float64, error) {
	var total sql.NullFloat64
	err := s.sq.
		Select("SUM(pnl)").
		From("fills").
		RunWith(s.db).
		QueryRow().
		Scan(&total)
	if err != nil {
		return 0, errors.Wrap(errors.ErrCodeStoreQueryFailed, "failed to sum fill pnl", err)
	}

	return total.Float64, nil
}

// Write exports the archive to Parquet files in the given directory.
func (s *RunStore) Write(path string) error {
	if err := os.MkdirAll(path, 0755); err != nil {
		return errors.Wrap(errors.ErrCodeStoreWriteFailed, "failed to create results directory", err)
	}

	ordersPath := filepath.Join(path, "orders.parquet")
	if _, err := s.db.Exec(fmt.Sprintf(`COPY orders TO '%s' (FORMAT PARQUET)`, ordersPath)); err != nil {
		return errors.Wrap(errors.ErrCodeStoreWriteFailed, "failed to export orders to Parquet", err)
	}

	fillsPath := filepath.Join(path, "fills.parquet")
	if _, err := s.db.Exec(fmt.Sprintf(`COPY fills TO '%s' (FORMAT PARQUET)`, fillsPath)); err != nil {
		return errors.Wrap(errors.ErrCodeStoreWriteFailed, "failed to export fills to Parquet", err)
	}

	s.logger.Info("exported run archive",
		zap.String("orders", ordersPath),
		zap.String("fills", fillsPath),
	)

	return nil
}

// Cleanup drops and recreates the tables so the store can serve another run.
func (s *RunStore) Cleanup() error {
	_, err := s.db.Exec(`
		DROP TABLE IF EXISTS fills;
		DROP TABLE IF EXISTS orders;
	`)
	if err != nil {
		return errors.Wrap(errors.ErrCodeStoreInitFailed, "failed to drop tables", err)
	}

	return s.Initialize()
}

// Close releases the backing database.
func (s *RunStore) Close() error {
	return s.db.Close()
}
