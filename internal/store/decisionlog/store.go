// Package decisionlog keeps the append-only record of every model decision:
// one row per trader per cycle, including the error-shaped holds, so the
// log reads as a complete transcript of the competition.
package decisionlog

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	_ "modernc.org/sqlite"
)

// Store writes and reads decision rows. It can own its SQLite handle or
// share the one the gorm state store opened, which keeps a single-file
// deployment down to one WAL.
type Store struct {
	mu     sync.Mutex
	db     *sql.DB
	path   string
	ownsDB bool
}

// Record is one decision row.
type Record struct {
	ID            int64    `json:"id"`
	Timestamp     int64    `json:"ts"`
	CompetitionID string   `json:"competition_id"`
	ModelName     string   `json:"model_name"`
	Cycle         int      `json:"cycle"`
	Action        string   `json:"action"`
	Symbol        string   `json:"symbol,omitempty"`
	Quantity      float64  `json:"quantity,omitempty"`
	Price         float64  `json:"price,omitempty"`
	Confidence    float64  `json:"confidence"`
	Reasoning     string   `json:"reasoning,omitempty"`
	Status        string   `json:"status"`
	Reason        string   `json:"reason,omitempty"`
	RealizedPnL   *float64 `json:"realized_pnl,omitempty"`
	RawOutput     string   `json:"raw_output,omitempty"`
	RawJSON       string   `json:"raw_json,omitempty"`
	Error         string   `json:"error,omitempty"`
}

// New opens (or creates) the decision log at path.
func New(path string) (*Store, error) {
	if path == "" {
		return nil, fmt.Errorf("decision log path must not be empty")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&cache=shared", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(2)
	db.SetMaxIdleConns(2)
	if err := ensureSchema(db); err != nil {
		db.Close()
		return nil, err
	}
	return &Store{db: db, path: path, ownsDB: true}, nil
}

// UseExternalDB switches the store onto a connection someone else opened,
// typically the gorm state store's, to avoid cross-connection lock churn
// on a shared file.
func (s *Store) UseExternalDB(db *sql.DB) error {
	if s == nil {
		return fmt.Errorf("decision log store not initialized")
	}
	if db == nil {
		return fmt.Errorf("external db must not be nil")
	}
	if err := ensureSchema(db); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ownsDB && s.db != nil && s.db != db {
		_ = s.db.Close()
	}
	s.db = db
	s.ownsDB = false
	return nil
}

// Close closes the handle if this store owns it.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.db == nil {
		return nil
	}
	if !s.ownsDB {
		s.db = nil
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return err
}

func ensureSchema(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS decision_logs (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			ts INTEGER NOT NULL,
			competition_id TEXT,
			model_name TEXT NOT NULL,
			cycle INTEGER NOT NULL,
			action TEXT NOT NULL,
			symbol TEXT,
			quantity REAL DEFAULT 0,
			price REAL DEFAULT 0,
			confidence REAL DEFAULT 0,
			reasoning TEXT,
			status TEXT NOT NULL,
			reason TEXT,
			raw_output TEXT,
			error TEXT,
			created_at INTEGER NOT NULL
		);
		`,
		`CREATE INDEX IF NOT EXISTS idx_decision_logs_model_ts_id ON decision_logs(model_name, ts DESC, id DESC);`,
		`CREATE INDEX IF NOT EXISTS idx_decision_logs_competition_cycle ON decision_logs(competition_id, cycle);`,
	}
	for _, stmt := range stmts {
		if _, err := db.Exec(stmt); err != nil {
			return err
		}
	}
	return ensureColumns(db)
}

func ensureColumns(db *sql.DB) error {
	cols := []struct {
		table  string
		column string
		typ    string
	}{
		{"decision_logs", "raw_json", "TEXT"},
		{"decision_logs", "realized_pnl", "REAL"},
	}
	for _, col := range cols {
		if err := addColumnIfMissing(db, col.table, col.column, col.typ); err != nil {
			return err
		}
	}
	return nil
}

func addColumnIfMissing(db *sql.DB, table, column, typ string) error {
	query := fmt.Sprintf("PRAGMA table_info(%s)", table)
	rows, err := db.Query(query)
	if err != nil {
		return err
	}
	defer rows.Close()
	exists := false
	for rows.Next() {
		var cid int
		var name, ctype string
		var notnull, pk int
		var dflt sql.NullString
		if err := rows.Scan(&cid, &name, &ctype, &notnull, &dflt, &pk); err != nil {
			return err
		}
		if strings.EqualFold(name, column) {
			exists = true
			break
		}
	}
	if exists {
		return nil
	}
	stmt := fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s %s", table, column, typ)
	_, err = db.Exec(stmt)
	return err
}

// Append writes one decision row and returns its ID.
func (s *Store) Append(ctx context.Context, rec Record) (int64, error) {
	s.mu.Lock()
	db := s.db
	s.mu.Unlock()
	if db == nil {
		return 0, fmt.Errorf("decision log store not initialized")
	}
	ts := rec.Timestamp
	if ts == 0 {
		ts = time.Now().UnixMilli()
	}
	now := time.Now().UnixMilli()
	res, err := db.ExecContext(ctx, `
		INSERT INTO decision_logs
			(ts, competition_id, model_name, cycle, action, symbol, quantity, price,
			 confidence, reasoning, status, reason, realized_pnl, raw_output, raw_json,
			 error, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		ts,
		rec.CompetitionID,
		rec.ModelName,
		rec.Cycle,
		rec.Action,
		rec.Symbol,
		rec.Quantity,
		rec.Price,
		rec.Confidence,
		rec.Reasoning,
		rec.Status,
		rec.Reason,
		rec.RealizedPnL,
		rec.RawOutput,
		rec.RawJSON,
		rec.Error,
		now,
	)
	if err != nil {
		return 0, err
	}
	id, _ := res.LastInsertId()
	return id, nil
}

// ListByModel returns the most recent rows for one trader, newest first.
func (s *Store) ListByModel(ctx context.Context, competitionID, modelName string, limit int) ([]Record, error) {
	s.mu.Lock()
	db := s.db
	s.mu.Unlock()
	if db == nil {
		return nil, fmt.Errorf("decision log store not initialized")
	}
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	rows, err := db.QueryContext(ctx, `
		SELECT id, ts, competition_id, model_name, cycle, action, symbol, quantity,
		       price, confidence, reasoning, status, reason, realized_pnl, raw_output,
		       raw_json, error
		FROM decision_logs
		WHERE competition_id = ? AND model_name = ?
		ORDER BY ts DESC, id DESC
		LIMIT ?`,
		competitionID, modelName, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, rec)
	}
	return list, rows.Err()
}

// ListByCycle returns every trader's row for one cycle in insertion order.
func (s *Store) ListByCycle(ctx context.Context, competitionID string, cycle int) ([]Record, error) {
	s.mu.Lock()
	db := s.db
	s.mu.Unlock()
	if db == nil {
		return nil, fmt.Errorf("decision log store not initialized")
	}
	rows, err := db.QueryContext(ctx, `
		SELECT id, ts, competition_id, model_name, cycle, action, symbol, quantity,
		       price, confidence, reasoning, status, reason, realized_pnl, raw_output,
		       raw_json, error
		FROM decision_logs
		WHERE competition_id = ? AND cycle = ?
		ORDER BY id ASC`,
		competitionID, cycle,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, rec)
	}
	return list, rows.Err()
}

func scanRecord(rows *sql.Rows) (Record, error) {
	var rec Record
	var symbol, reasoning, reason, rawOutput, rawJSON, errText sql.NullString
	var competitionID sql.NullString
	var quantity, price, confidence sql.NullFloat64
	var realized sql.NullFloat64
	if err := rows.Scan(
		&rec.ID, &rec.Timestamp, &competitionID, &rec.ModelName, &rec.Cycle,
		&rec.Action, &symbol, &quantity, &price, &confidence, &reasoning,
		&rec.Status, &reason, &realized, &rawOutput, &rawJSON, &errText,
	); err != nil {
		return Record{}, err
	}
	rec.CompetitionID = competitionID.String
	rec.Symbol = symbol.String
	rec.Quantity = quantity.Float64
	rec.Price = price.Float64
	rec.Confidence = confidence.Float64
	rec.Reasoning = reasoning.String
	rec.Reason = reason.String
	rec.RawOutput = rawOutput.String
	rec.RawJSON = rawJSON.String
	rec.Error = errText.String
	if realized.Valid {
		v := realized.Float64
		rec.RealizedPnL = &v
	}
	return rec, nil
}
