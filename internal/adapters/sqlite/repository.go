package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3" // SQLite driver

	"github.com/natelewis/whalewatch-sub003/internal/domain"
	"github.com/natelewis/whalewatch-sub003/internal/ports"
)

// Repository implements the ports.BarRepository, ports.TradeRepository and
// ports.QuoteRepository interfaces using SQLite.
type Repository struct {
	db     *sql.DB
	logger ports.Logger
}

// Config holds configuration for the SQLite repository.
type Config struct {
	DBPath string
	Logger ports.Logger
}

// NewRepository creates a new SQLite repository instance.
func NewRepository(cfg Config) (*Repository, error) {
	if cfg.Logger == nil {
		return nil, fmt.Errorf("logger is required for SQLite repository")
	}
	dbPath := cfg.DBPath
	if dbPath == "" {
		dbPath = "./data/whalewatch.db" // Default path
	}

	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		err = fmt.Errorf("failed to create data directory '%s': %w", filepath.Dir(dbPath), err)
		cfg.Logger.Error(context.Background(), err, "SQLite repository initialization failed")
		return nil, err
	}

	// WAL mode for better concurrency between the ingest writer and the
	// dashboard readers.
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		err = fmt.Errorf("failed to open database at '%s': %w", dbPath, err)
		cfg.Logger.Error(context.Background(), err, "SQLite repository initialization failed")
		return nil, err
	}

	if err := db.Ping(); err != nil {
		db.Close()
		err = fmt.Errorf("failed to ping database at '%s': %w", dbPath, err)
		cfg.Logger.Error(context.Background(), err, "SQLite repository initialization failed")
		return nil, err
	}

	db.SetMaxOpenConns(1) // the Go driver benefits from limiting connections
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	cfg.Logger.Info(context.Background(), "SQLite database connection established", map[string]interface{}{"path": dbPath})

	repo := &Repository{db: db, logger: cfg.Logger}

	if err := repo.initializeSchema(context.Background()); err != nil {
		db.Close()
		err = fmt.Errorf("failed to initialize database schema: %w", err)
		cfg.Logger.Error(context.Background(), err, "SQLite repository initialization failed")
		return nil, err
	}

	return repo, nil
}

// initializeSchema creates tables if they don't exist.
func (r *Repository) initializeSchema(ctx context.Context) error {
	const schema = `
	CREATE TABLE IF NOT EXISTS bars (
		symbol TEXT NOT NULL,
		interval TEXT NOT NULL,
		timestamp INTEGER NOT NULL,
		open REAL NOT NULL,
		high REAL NOT NULL,
		low REAL NOT NULL,
		close REAL NOT NULL,
		volume REAL NOT NULL,
		PRIMARY KEY (symbol, interval, timestamp)
	);

	CREATE TABLE IF NOT EXISTS trades (
		id INTEGER NOT NULL,
		symbol TEXT NOT NULL,
		timestamp INTEGER NOT NULL,
		price REAL NOT NULL,
		size REAL NOT NULL,
		exchange TEXT NOT NULL DEFAULT '',
		tape TEXT NOT NULL DEFAULT '',
		PRIMARY KEY (symbol, id, timestamp)
	);

	CREATE TABLE IF NOT EXISTS quotes (
		symbol TEXT NOT NULL,
		timestamp INTEGER NOT NULL,
		bid_price REAL NOT NULL,
		bid_size REAL NOT NULL,
		bid_exchange TEXT NOT NULL DEFAULT '',
		ask_price REAL NOT NULL,
		ask_size REAL NOT NULL,
		ask_exchange TEXT NOT NULL DEFAULT '',
		PRIMARY KEY (symbol, timestamp)
	);

	CREATE INDEX IF NOT EXISTS idx_bars_symbol_interval_ts ON bars (symbol, interval, timestamp);
	CREATE INDEX IF NOT EXISTS idx_trades_symbol_ts ON trades (symbol, timestamp);
	`
	_, err := r.db.ExecContext(ctx, schema)
	if err != nil {
		return fmt.Errorf("failed to execute schema initialization: %w", err)
	}
	return nil
}

// Close closes the database connection.
func (r *Repository) Close() error {
	if r.db != nil {
		r.logger.Info(context.Background(), "Closing SQLite database connection")
		return r.db.Close()
	}
	return nil
}

// --- BarRepository Implementation ---

// UpsertBars inserts or replaces bars keyed by (symbol, interval, timestamp).
// Re-ingesting an overlapping backfill page rewrites the same rows, so the
// store converges regardless of page ordering.
func (r *Repository) UpsertBars(ctx context.Context, bars []*domain.Bar) (int, error) {
	if len(bars) == 0 {
		return 0, nil
	}
	const query = `
	INSERT INTO bars (symbol, interval, timestamp, open, high, low, close, volume)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT (symbol, interval, timestamp) DO UPDATE SET
		open = excluded.open, high = excluded.high, low = excluded.low,
		close = excluded.close, volume = excluded.volume`

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin bar upsert transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, query)
	if err != nil {
		return 0, fmt.Errorf("failed to prepare bar upsert: %w", err)
	}
	defer stmt.Close()

	written := 0
	for _, b := range bars {
		if _, err := stmt.ExecContext(ctx, b.Symbol, b.Interval, b.Timestamp.UnixMilli(),
			b.Open, b.High, b.Low, b.Close, b.Volume); err != nil {
			return written, fmt.Errorf("failed to upsert bar %s %s: %w", b.Symbol, b.Timestamp.Format(time.RFC3339), err)
		}
		written++
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit bar upsert: %w", err)
	}
	r.logger.Debug(ctx, "Bars upserted", map[string]interface{}{"count": written})
	return written, nil
}

// LatestBars retrieves the newest bars for a symbol/interval, oldest first.
func (r *Repository) LatestBars(ctx context.Context, symbol, interval string, limit int) ([]*domain.Bar, error) {
	const query = `
	SELECT symbol, interval, timestamp, open, high, low, close, volume
	FROM (
		SELECT * FROM bars WHERE symbol = ? AND interval = ?
		ORDER BY timestamp DESC LIMIT ?
	) ORDER BY timestamp ASC`
	return r.queryBars(ctx, query, symbol, interval, limit)
}

// BarsBefore retrieves up to limit bars strictly older than ts, oldest first.
func (r *Repository) BarsBefore(ctx context.Context, symbol, interval string, ts time.Time, limit int) ([]*domain.Bar, error) {
	const query = `
	SELECT symbol, interval, timestamp, open, high, low, close, volume
	FROM (
		SELECT * FROM bars WHERE symbol = ? AND interval = ? AND timestamp < ?
		ORDER BY timestamp DESC LIMIT ?
	) ORDER BY timestamp ASC`
	return r.queryBars(ctx, query, symbol, interval, ts.UnixMilli(), limit)
}

// BarsAfter retrieves up to limit bars strictly newer than ts, oldest first.
func (r *Repository) BarsAfter(ctx context.Context, symbol, interval string, ts time.Time, limit int) ([]*domain.Bar, error) {
	const query = `
	SELECT symbol, interval, timestamp, open, high, low, close, volume
	FROM bars WHERE symbol = ? AND interval = ? AND timestamp > ?
	ORDER BY timestamp ASC LIMIT ?`
	return r.queryBars(ctx, query, symbol, interval, ts.UnixMilli(), limit)
}

// CountBars returns the number of stored bars for a symbol/interval.
func (r *Repository) CountBars(ctx context.Context, symbol, interval string) (int64, error) {
	const query = `SELECT COUNT(*) FROM bars WHERE symbol = ? AND interval = ?`
	var count int64
	if err := r.db.QueryRowContext(ctx, query, symbol, interval).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count bars for %s %s: %w", symbol, interval, err)
	}
	return count, nil
}

func (r *Repository) queryBars(ctx context.Context, query string, args ...interface{}) ([]*domain.Bar, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query bars: %w", err)
	}
	defer rows.Close()

	bars := make([]*domain.Bar, 0)
	for rows.Next() {
		b := &domain.Bar{}
		var ts int64
		if err := rows.Scan(&b.Symbol, &b.Interval, &ts, &b.Open, &b.High, &b.Low, &b.Close, &b.Volume); err != nil {
			return nil, fmt.Errorf("failed to scan bar row: %w", err)
		}
		b.Timestamp = time.UnixMilli(ts).UTC()
		bars = append(bars, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating bar rows: %w", err)
	}
	return bars, nil
}

// --- TradeRepository Implementation ---

// InsertTrades stores trade prints, ignoring duplicates.
func (r *Repository) InsertTrades(ctx context.Context, trades []*domain.Trade) (int, error) {
	if len(trades) == 0 {
		return 0, nil
	}
	const query = `
	INSERT OR IGNORE INTO trades (id, symbol, timestamp, price, size, exchange, tape)
	VALUES (?, ?, ?, ?, ?, ?, ?)`

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin trade insert transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, query)
	if err != nil {
		return 0, fmt.Errorf("failed to prepare trade insert: %w", err)
	}
	defer stmt.Close()

	inserted := 0
	for _, t := range trades {
		res, err := stmt.ExecContext(ctx, t.ID, t.Symbol, t.Timestamp.UnixMilli(), t.Price, t.Size, t.Exchange, t.Tape)
		if err != nil {
			return inserted, fmt.Errorf("failed to insert trade %d for %s: %w", t.ID, t.Symbol, err)
		}
		if n, err := res.RowsAffected(); err == nil {
			inserted += int(n)
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit trade insert: %w", err)
	}
	return inserted, nil
}

// RecentTrades retrieves the most recent trades for a symbol, newest first.
func (r *Repository) RecentTrades(ctx context.Context, symbol string, limit int) ([]*domain.Trade, error) {
	const query = `
	SELECT id, symbol, timestamp, price, size, exchange, tape
	FROM trades WHERE symbol = ? ORDER BY timestamp DESC LIMIT ?`

	rows, err := r.db.QueryContext(ctx, query, symbol, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query trades for %s: %w", symbol, err)
	}
	defer rows.Close()

	trades := make([]*domain.Trade, 0)
	for rows.Next() {
		t := &domain.Trade{}
		var ts int64
		if err := rows.Scan(&t.ID, &t.Symbol, &ts, &t.Price, &t.Size, &t.Exchange, &t.Tape); err != nil {
			return nil, fmt.Errorf("failed to scan trade row: %w", err)
		}
		t.Timestamp = time.UnixMilli(ts).UTC()
		trades = append(trades, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating trade rows: %w", err)
	}
	return trades, nil
}

// --- QuoteRepository Implementation ---

// InsertQuote stores a top-of-book snapshot, replacing a same-instant one.
func (r *Repository) InsertQuote(ctx context.Context, q *domain.Quote) error {
	const query = `
	INSERT OR REPLACE INTO quotes (symbol, timestamp, bid_price, bid_size, bid_exchange, ask_price, ask_size, ask_exchange)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?)`

	_, err := r.db.ExecContext(ctx, query, q.Symbol, q.Timestamp.UnixMilli(),
		q.BidPrice, q.BidSize, q.BidExchange, q.AskPrice, q.AskSize, q.AskExchange)
	if err != nil {
		return fmt.Errorf("failed to insert quote for %s: %w", q.Symbol, err)
	}
	return nil
}

// LatestQuote retrieves the most recent stored quote for a symbol.
func (r *Repository) LatestQuote(ctx context.Context, symbol string) (*domain.Quote, error) {
	const query = `
	SELECT symbol, timestamp, bid_price, bid_size, bid_exchange, ask_price, ask_size, ask_exchange
	FROM quotes WHERE symbol = ? ORDER BY timestamp DESC LIMIT 1`

	q := &domain.Quote{}
	var ts int64
	err := r.db.QueryRowContext(ctx, query, symbol).Scan(
		&q.Symbol, &ts, &q.BidPrice, &q.BidSize, &q.BidExchange, &q.AskPrice, &q.AskSize, &q.AskExchange)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil // Not an error, just not found
		}
		return nil, fmt.Errorf("failed to query latest quote for %s: %w", symbol, err)
	}
	q.Timestamp = time.UnixMilli(ts).UTC()
	return q, nil
}
