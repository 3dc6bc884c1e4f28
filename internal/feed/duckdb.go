package feed

import (
	"database/sql"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/Masterminds/squirrel"
	_ "github.com/marcboeker/go-duckdb"
	"github.com/moznion/go-optional"
	"github.com/voltlab/volt-backtest/internal/logger"
	"github.com/voltlab/volt-backtest/internal/types"
	"github.com/voltlab/volt-backtest/pkg/errors"
	"go.uber.org/zap"
)

// DuckDBLoader reads bar files (CSV or Parquet) into memory through an
// in-process DuckDB instance. Any column beyond the OHLCV set is carried as a
// feature column, which is how upstream indicator and forecast columns reach
// strategies.
type DuckDBLoader struct {
	db     *sql.DB
	logger *logger.Logger
	sq     squirrel.StatementBuilderType
}

// NewDuckDBLoader creates a loader backed by an in-memory DuckDB database.
func NewDuckDBLoader(logger *logger.Logger) (*DuckDBLoader, error) {
	db, err := sql.Open("duckdb", ":memory:")
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeFeedLoadFailed, "failed to open duckdb", err)
	}

	return &DuckDBLoader{
		db:     db,
		logger: logger,
		sq:     squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}, nil
}

// Load reads all bars from the given file, ordered by (time, symbol), and
// restricted to the optional [start, end] range. The resulting slice is ready
// for feed.New.
func (l *DuckDBLoader) Load(path string, start, end optional.Option[time.Time]) ([]types.Bar, error) {
	source, err := readerFor(path)
	if err != nil {
		return nil, err
	}

	l.logger.Debug("Loading bars", zap.String("path", path))

	// Recreate the view for each load so a loader can serve multiple files.
	if _, err := l.db.Exec(`DROP VIEW IF EXISTS bars`); err != nil {
		return nil, errors.Wrap(errors.ErrCodeFeedLoadFailed, "failed to drop existing view", err)
	}

	// CREATE VIEW has no squirrel support; raw SQL with the vetted reader expression.
	if _, err := l.db.Exec(fmt.Sprintf(`CREATE VIEW bars AS SELECT * FROM %s`, source)); err != nil {
		return nil, errors.Wrap(errors.ErrCodeFeedLoadFailed, "failed to create bars view", err)
	}

	query := l.sq.Select("*").From("bars").OrderBy("time ASC", "symbol ASC")
	if start.IsSome() {
		query = query.Where(squirrel.GtOrEq{"time": start.Unwrap()})
	}

	if end.IsSome() {
		query = query.Where(squirrel.LtOrEq{"time": end.Unwrap()})
	}

	rows, err := query.RunWith(l.db).Query()
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeFeedQueryFailed, "failed to query bars", err)
	}
	defer rows.Close()

	bars, err := scanBars(rows)
	if err != nil {
		return nil, err
	}

	l.logger.Debug("Loaded bars", zap.Int("count", len(bars)))

	return bars, nil
}

// Close releases the underlying database.
func (l *DuckDBLoader) Close() error {
	return l.db.Close()
}

func readerFor(path string) (string, error) {
	escaped := strings.ReplaceAll(path, "'", "''")

	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		return fmt.Sprintf("read_csv_auto('%s')", escaped), nil
	case ".parquet":
		return fmt.Sprintf("read_parquet('%s')", escaped), nil
	default:
		return "", errors.Newf(errors.ErrCodeFeedLoadFailed, "unsupported bar file extension: %s", filepath.Ext(path))
	}
}

func scanBars(rows *sql.Rows) ([]types.Bar, error) {
	columns, err := rows.Columns()
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeFeedQueryFailed, "failed to read columns", err)
	}

	var bars []types.Bar

	for rows.Next() {
		values := make([]any, len(columns))
		for i := range values {
			values[i] = new(any)
		}

		if err := rows.Scan(values...); err != nil {
			return nil, errors.Wrap(errors.ErrCodeFeedQueryFailed, "failed to scan bar row", err)
		}

		var bar types.Bar

		for i, column := range columns {
			value := *(values[i].(*any))
			if value == nil {
				return nil, errors.Newf(errors.ErrCodeMissingBarField, "bar row has NULL %s", column)
			}

			switch strings.ToLower(column) {
			case "symbol":
				s, ok := value.(string)
				if !ok {
					return nil, errors.Newf(errors.ErrCodeMalformedBar, "column symbol is not a string")
				}

				bar.Symbol = s
			case "time":
				t, ok := value.(time.Time)
				if !ok {
					return nil, errors.Newf(errors.ErrCodeMalformedBar, "column time is not a timestamp")
				}

				bar.Time = t.UTC()
			case "open":
				bar.Open, err = toFloat(column, value)
			case "high":
				bar.High, err = toFloat(column, value)
			case "low":
				bar.Low, err = toFloat(column, value)
			case "close":
				bar.Close, err = toFloat(column, value)
			case "volume":
				bar.Volume, err = toFloat(column, value)
			default:
				var v float64

				v, err = toFloat(column, value)
				if err == nil {
					if bar.Features == nil {
						bar.Features = make(map[string]float64)
					}

					bar.Features[column] = v
				}
			}

			if err != nil {
				return nil, err
			}
		}

		bars = append(bars, bar)
	}

	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(errors.ErrCodeFeedQueryFailed, "error iterating bar rows", err)
	}

	return bars, nil
}

func toFloat(column string, value any) (float64, error) {
	switch v := value.(type) {
	case float64:
		return v, nil
	case float32:
		return float64(v), nil
	case int64:
		return float64(v), nil
	case int32:
		return float64(v), nil
	default:
		return 0, errors.Newf(errors.ErrCodeMalformedBar, "column %s has non-numeric value %T", column, value)
	}
}
