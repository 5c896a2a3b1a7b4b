package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"QuantBench/internal/domain/models"
	"QuantBench/internal/domain/repository"
)

// ClickHouseResultStore persists backtest runs and their trade logs.
type ClickHouseResultStore struct {
	db          *sql.DB
	runsTable   string
	tradesTable string
}

// NewClickHouseResultStore creates a ClickHouse-backed result store.
func NewClickHouseResultStore(db *sql.DB, runsTable, tradesTable string) repository.ResultStore {
	return &ClickHouseResultStore{db: db, runsTable: runsTable, tradesTable: tradesTable}
}

func (s *ClickHouseResultStore) Init(ctx context.Context) error {
	stmts := []string{
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
			run_id String,
			started_at DateTime64(3),
			strategy LowCardinality(String),
			regime LowCardinality(String),
			total_return Float64,
			annualized_return Float64,
			sharpe Float64,
			sortino Float64,
			max_drawdown Float64,
			var_95 Float64,
			cvar_95 Float64,
			observations UInt32,
			n_trades UInt32,
			elapsed_ms Int64,
			weights String,
			metrics String
		) ENGINE = MergeTree() ORDER BY (strategy, started_at)`, s.runsTable),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
			run_id String,
			ts DateTime,
			asset LowCardinality(String),
			old_position Float64,
			new_position Float64,
			price Float64,
			cost Float64
		) ENGINE = MergeTree() ORDER BY (run_id, ts)`, s.tradesTable),
	}
	for _, stmt := range stmts {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("init result schema: %w", err)
		}
	}
	return nil
}

func (s *ClickHouseResultStore) StoreRun(ctx context.Context, r *models.BacktestResult) error {
	if r == nil || r.RunID == "" {
		return fmt.Errorf("result must have a run id")
	}

	weights, err := json.Marshal(r.Weights)
	if err != nil {
		return fmt.Errorf("marshal weights: %w", err)
	}
	metrics, err := json.Marshal(r.Metrics)
	if err != nil {
		return fmt.Errorf("marshal metrics: %w", err)
	}

	q := fmt.Sprintf(`INSERT INTO %s
		(run_id, started_at, strategy, regime, total_return, annualized_return,
		 sharpe, sortino, max_drawdown, var_95, cvar_95, observations, n_trades,
		 elapsed_ms, weights, metrics)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`, s.runsTable)
	if _, err := s.db.ExecContext(ctx, q,
		r.RunID,
		r.StartedAt,
		r.Strategy,
		r.Regime,
		r.Metrics.TotalReturn,
		r.Metrics.AnnualizedReturn,
		r.Metrics.Sharpe,
		r.Metrics.Sortino,
		r.Metrics.MaxDrawdown,
		r.Metrics.VaR95,
		r.Metrics.CVaR95,
		uint32(r.Metrics.Observations),
		uint32(len(r.Sim.Trades)),
		r.ElapsedMS,
		string(weights),
		string(metrics),
	); err != nil {
		return fmt.Errorf("insert run: %w", err)
	}

	return s.storeTrades(ctx, r.RunID, r.Sim.Trades)
}

func (s *ClickHouseResultStore) storeTrades(ctx context.Context, runID string, trades []models.TradeRecord) error {
	if len(trades) == 0 {
		return nil
	}
	// Chunked multi-row VALUES inserts to limit round-trips.
	const chunkSize = 2000
	for start := 0; start < len(trades); start += chunkSize {
		end := start + chunkSize
		if end > len(trades) {
			end = len(trades)
		}

		values := make([]string, 0, end-start)
		args := make([]interface{}, 0, (end-start)*7)
		for _, tr := range trades[start:end] {
			values = append(values, "(?, ?, ?, ?, ?, ?, ?)")
			args = append(args,
				runID,
				time.Unix(tr.Timestamp, 0),
				tr.Asset,
				tr.OldPosition,
				tr.NewPosition,
				tr.Price,
				tr.Cost,
			)
		}
		q := fmt.Sprintf("INSERT INTO %s (run_id, ts, asset, old_position, new_position, price, cost) VALUES %s",
			s.tradesTable, strings.Join(values, ","))
		if _, err := s.db.ExecContext(ctx, q, args...); err != nil {
			return fmt.Errorf("insert trades: %w", err)
		}
	}
	return nil
}

func (s *ClickHouseResultStore) QueryRuns(ctx context.Context, strategy string, from, to time.Time, limit int) ([]*models.BacktestResult, error) {
	q := fmt.Sprintf(`SELECT run_id, started_at, strategy, regime, elapsed_ms, weights, metrics
		FROM %s WHERE started_at >= ? AND started_at <= ?`, s.runsTable)
	args := []interface{}{from, to}
	if strategy != "" {
		q += " AND strategy = ?"
		args = append(args, strategy)
	}
	q += " ORDER BY started_at DESC LIMIT ?"
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []*models.BacktestResult
	for rows.Next() {
		var (
			r               models.BacktestResult
			weights, metric string
		)
		if err := rows.Scan(&r.RunID, &r.StartedAt, &r.Strategy, &r.Regime, &r.ElapsedMS, &weights, &metric); err != nil {
			return nil, err
		}
		if weights != "" {
			if err := json.Unmarshal([]byte(weights), &r.Weights); err != nil {
				return nil, fmt.Errorf("decode weights for %s: %w", r.RunID, err)
			}
		}
		if metric != "" {
			if err := json.Unmarshal([]byte(metric), &r.Metrics); err != nil {
				return nil, fmt.Errorf("decode metrics for %s: %w", r.RunID, err)
			}
		}
		results = append(results, &r)
	}
	return results, rows.Err()
}

func (s *ClickHouseResultStore) Health(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *ClickHouseResultStore) Close() error {
	return nil // pool is owned by pkg/clickhouse
}
