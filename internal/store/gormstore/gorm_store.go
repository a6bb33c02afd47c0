// Package gormstore persists competition state in SQLite via gorm: the
// competition row, one ledger state per trader and the append-only
// performance snapshot series. Ledger states are upserted after every
// cycle so a restart resumes from the last completed cycle.
package gormstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"ludus/internal/arena/ledger"
	storemodel "ludus/internal/store/model"

	"gorm.io/datatypes"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"
)

type (
	competitionModel = storemodel.CompetitionModel
	ledgerStateModel = storemodel.LedgerStateModel
	snapshotModel    = storemodel.PerformanceSnapshotModel
)

// CompetitionRecord mirrors the competitions row.
type CompetitionRecord struct {
	CompetitionID string
	Name          string
	Symbol        string
	Mode          string
	CycleSeconds  int
	NumCycles     int
	LastCycle     int
	Status        string
	StartedAt     time.Time
}

// LedgerStateRecord is one trader's durable book.
type LedgerStateRecord struct {
	CompetitionID  string
	ModelName      string
	InitialCapital float64
	Cash           float64
	RealizedPnL    float64
	TradeCount     int
	Positions      []ledger.Position
	UpdatedAt      time.Time
}

// PerformanceSnapshotRecord is one trader's marks after one cycle.
type PerformanceSnapshotRecord struct {
	CompetitionID string
	ModelName     string
	Cycle         int
	Price         float64
	Cash          float64
	Equity        float64
	RealizedPnL   float64
	UnrealizedPnL float64
	TotalPnL      float64
	ReturnPct     float64
	PositionCount int
	TradeCount    int
	Timestamp     time.Time
}

// Store wraps the gorm handle. SQLite in WAL mode with a two-connection
// cap: the loop writes, HTTP handlers read.
type Store struct {
	db *gorm.DB
}

// NewStore opens (or creates) the state database at path and migrates the
// schema.
func NewStore(path string) (*Store, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, fmt.Errorf("gorm store: state path must not be empty")
	}
	if err := ensureDir(path); err != nil {
		return nil, err
	}
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&cache=shared", path)
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:                                   logger.Default.LogMode(logger.Silent),
		DisableForeignKeyConstraintWhenMigrating: true,
	})
	if err != nil {
		return nil, err
	}
	models := []interface{}{
		&competitionModel{},
		&ledgerStateModel{},
		&snapshotModel{},
	}
	if err := db.AutoMigrate(models...); err != nil {
		return nil, err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	// SQLite + WAL: allow a small amount of parallelism for concurrent HTTP
	// reads while keeping lock contention low.
	sqlDB.SetMaxOpenConns(2)
	sqlDB.SetMaxIdleConns(2)
	return &Store{db: db}, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// SQLDB exposes the underlying *sql.DB for shared connections.
func (s *Store) SQLDB() (*sql.DB, error) {
	if s == nil || s.db == nil {
		return nil, fmt.Errorf("gorm store not initialized")
	}
	return s.db.DB()
}

// SaveCompetition upserts the competition row keyed by competition ID.
func (s *Store) SaveCompetition(ctx context.Context, rec CompetitionRecord) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("gorm store not initialized")
	}
	now := time.Now().UnixMilli()
	m := competitionModel{
		CompetitionID: rec.CompetitionID,
		Name:          rec.Name,
		Symbol:        rec.Symbol,
		Mode:          rec.Mode,
		CycleSeconds:  rec.CycleSeconds,
		NumCycles:     rec.NumCycles,
		LastCycle:     rec.LastCycle,
		Status:        rec.Status,
		StartedAtUnix: rec.StartedAt.UnixMilli(),
		CreatedAtUnix: now,
		UpdatedAtUnix: now,
	}
	return s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "competition_id"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"name", "symbol", "mode", "cycle_seconds", "num_cycles",
				"last_cycle", "status", "updated_at",
			}),
		}).
		Create(&m).Error
}

// LoadCompetition fetches one competition row. The bool reports presence.
func (s *Store) LoadCompetition(ctx context.Context, competitionID string) (CompetitionRecord, bool, error) {
	if s == nil || s.db == nil {
		return CompetitionRecord{}, false, fmt.Errorf("gorm store not initialized")
	}
	var m competitionModel
	err := s.db.WithContext(ctx).Where("competition_id = ?", competitionID).First(&m).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return CompetitionRecord{}, false, nil
	}
	if err != nil {
		return CompetitionRecord{}, false, err
	}
	return CompetitionRecord{
		CompetitionID: m.CompetitionID,
		Name:          m.Name,
		Symbol:        m.Symbol,
		Mode:          m.Mode,
		CycleSeconds:  m.CycleSeconds,
		NumCycles:     m.NumCycles,
		LastCycle:     m.LastCycle,
		Status:        m.Status,
		StartedAt:     time.UnixMilli(m.StartedAtUnix),
	}, true, nil
}

// SaveLedgerStates upserts one row per trader, keyed by
// (competition_id, model_name).
func (s *Store) SaveLedgerStates(ctx context.Context, recs []LedgerStateRecord) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("gorm store not initialized")
	}
	if len(recs) == 0 {
		return nil
	}
	now := time.Now().UnixMilli()
	models := make([]ledgerStateModel, 0, len(recs))
	for _, rec := range recs {
		positions, err := encodePositions(rec.Positions)
		if err != nil {
			return fmt.Errorf("encode positions for %s: %w", rec.ModelName, err)
		}
		models = append(models, ledgerStateModel{
			CompetitionID:  rec.CompetitionID,
			ModelName:      rec.ModelName,
			InitialCapital: rec.InitialCapital,
			Cash:           rec.Cash,
			RealizedPnL:    rec.RealizedPnL,
			TradeCount:     rec.TradeCount,
			PositionsJSON:  positions,
			CreatedAtUnix:  now,
			UpdatedAtUnix:  now,
		})
	}
	return s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "competition_id"}, {Name: "model_name"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"initial_capital", "cash", "realized_pnl", "trade_count",
				"positions_json", "updated_at",
			}),
		}).
		Create(&models).Error
}

// LoadLedgerStates returns the saved books for one competition keyed by
// model name.
func (s *Store) LoadLedgerStates(ctx context.Context, competitionID string) (map[string]LedgerStateRecord, error) {
	if s == nil || s.db == nil {
		return nil, fmt.Errorf("gorm store not initialized")
	}
	var models []ledgerStateModel
	if err := s.db.WithContext(ctx).Where("competition_id = ?", competitionID).Find(&models).Error; err != nil {
		return nil, err
	}
	out := make(map[string]LedgerStateRecord, len(models))
	for _, m := range models {
		positions, err := decodePositions(m.PositionsJSON)
		if err != nil {
			return nil, fmt.Errorf("decode positions for %s: %w", m.ModelName, err)
		}
		out[m.ModelName] = LedgerStateRecord{
			CompetitionID:  m.CompetitionID,
			ModelName:      m.ModelName,
			InitialCapital: m.InitialCapital,
			Cash:           m.Cash,
			RealizedPnL:    m.RealizedPnL,
			TradeCount:     m.TradeCount,
			Positions:      positions,
			UpdatedAt:      time.UnixMilli(m.UpdatedAtUnix),
		}
	}
	return out, nil
}

// AppendSnapshots inserts performance snapshot rows. Append-only, no
// conflict handling.
func (s *Store) AppendSnapshots(ctx context.Context, recs []PerformanceSnapshotRecord) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("gorm store not initialized")
	}
	if len(recs) == 0 {
		return nil
	}
	now := time.Now().UnixMilli()
	models := make([]snapshotModel, 0, len(recs))
	for _, rec := range recs {
		models = append(models, snapshotModel{
			CompetitionID: rec.CompetitionID,
			ModelName:     rec.ModelName,
			Cycle:         rec.Cycle,
			Price:         rec.Price,
			Cash:          rec.Cash,
			Equity:        rec.Equity,
			RealizedPnL:   rec.RealizedPnL,
			UnrealizedPnL: rec.UnrealizedPnL,
			TotalPnL:      rec.TotalPnL,
			ReturnPct:     rec.ReturnPct,
			PositionCount: rec.PositionCount,
			TradeCount:    rec.TradeCount,
			TS:            rec.Timestamp.UnixMilli(),
			CreatedAtUnix: now,
		})
	}
	return s.db.WithContext(ctx).Create(&models).Error
}

// ListSnapshots returns the most recent snapshots for one trader in cycle
// order, oldest first.
func (s *Store) ListSnapshots(ctx context.Context, competitionID, modelName string, limit int) ([]PerformanceSnapshotRecord, error) {
	if s == nil || s.db == nil {
		return nil, fmt.Errorf("gorm store not initialized")
	}
	if limit <= 0 || limit > 2000 {
		limit = 500
	}
	var models []snapshotModel
	err := s.db.WithContext(ctx).
		Where("competition_id = ? AND model_name = ?", competitionID, modelName).
		Order("cycle DESC").
		Limit(limit).
		Find(&models).Error
	if err != nil {
		return nil, err
	}
	out := make([]PerformanceSnapshotRecord, 0, len(models))
	for i := len(models) - 1; i >= 0; i-- {
		out = append(out, snapshotRecord(models[i]))
	}
	return out, nil
}

// ListAllSnapshots returns every snapshot for the competition grouped by
// model name, each series oldest first. The equity chart draws one line
// per entry.
func (s *Store) ListAllSnapshots(ctx context.Context, competitionID string) (map[string][]PerformanceSnapshotRecord, error) {
	if s == nil || s.db == nil {
		return nil, fmt.Errorf("gorm store not initialized")
	}
	var models []snapshotModel
	err := s.db.WithContext(ctx).
		Where("competition_id = ?", competitionID).
		Order("cycle ASC").
		Find(&models).Error
	if err != nil {
		return nil, err
	}
	out := make(map[string][]PerformanceSnapshotRecord)
	for _, m := range models {
		out[m.ModelName] = append(out[m.ModelName], snapshotRecord(m))
	}
	return out, nil
}

func snapshotRecord(m snapshotModel) PerformanceSnapshotRecord {
	return PerformanceSnapshotRecord{
		CompetitionID: m.CompetitionID,
		ModelName:     m.ModelName,
		Cycle:         m.Cycle,
		Price:         m.Price,
		Cash:          m.Cash,
		Equity:        m.Equity,
		RealizedPnL:   m.RealizedPnL,
		UnrealizedPnL: m.UnrealizedPnL,
		TotalPnL:      m.TotalPnL,
		ReturnPct:     m.ReturnPct,
		PositionCount: m.PositionCount,
		TradeCount:    m.TradeCount,
		Timestamp:     time.UnixMilli(m.TS),
	}
}

func encodePositions(positions []ledger.Position) (datatypes.JSON, error) {
	if len(positions) == 0 {
		return datatypes.JSON("[]"), nil
	}
	raw, err := json.Marshal(positions)
	if err != nil {
		return nil, err
	}
	return datatypes.JSON(raw), nil
}

func decodePositions(raw datatypes.JSON) ([]ledger.Position, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	var positions []ledger.Position
	if err := json.Unmarshal(raw, &positions); err != nil {
		return nil, err
	}
	return positions, nil
}

func ensureDir(path string) error {
	dir := filepathDir(path)
	if dir == "" {
		return nil
	}
	return os.MkdirAll(dir, 0o755)
}

func filepathDir(path string) string {
	last := strings.LastIndex(path, "/")
	if last == -1 {
		last = strings.LastIndex(path, "\\")
	}
	if last == -1 {
		return ""
	}
	return path[:last]
}
