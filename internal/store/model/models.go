// Package model holds the gorm table mappings for competition state.
package model

import (
	"gorm.io/datatypes"
)

// CompetitionModel is one competition run. LastCycle advances as cycles
// complete and is where a resumed process picks up counting.
type CompetitionModel struct {
	ID            int64  `gorm:"column:id;primaryKey"`
	CompetitionID string `gorm:"column:competition_id;uniqueIndex"`
	Name          string `gorm:"column:name"`
	Symbol        string `gorm:"column:symbol"`
	Mode          string `gorm:"column:mode"`
	CycleSeconds  int    `gorm:"column:cycle_seconds"`
	NumCycles     int    `gorm:"column:num_cycles"`
	LastCycle     int    `gorm:"column:last_cycle"`
	Status        string `gorm:"column:status"`
	StartedAtUnix int64  `gorm:"column:started_at"`
	CreatedAtUnix int64  `gorm:"column:created_at"`
	UpdatedAtUnix int64  `gorm:"column:updated_at"`
}

func (CompetitionModel) TableName() string { return "competitions" }

// LedgerStateModel is the durable copy of one trader's book, overwritten
// after every cycle. Positions travel as a JSON array.
type LedgerStateModel struct {
	ID             int64          `gorm:"column:id;primaryKey"`
	CompetitionID  string         `gorm:"column:competition_id;uniqueIndex:idx_ledger_state,priority:1"`
	ModelName      string         `gorm:"column:model_name;uniqueIndex:idx_ledger_state,priority:2"`
	InitialCapital float64        `gorm:"column:initial_capital"`
	Cash           float64        `gorm:"column:cash"`
	RealizedPnL    float64        `gorm:"column:realized_pnl"`
	TradeCount     int            `gorm:"column:trade_count"`
	PositionsJSON  datatypes.JSON `gorm:"column:positions_json;type:TEXT"`
	CreatedAtUnix  int64          `gorm:"column:created_at"`
	UpdatedAtUnix  int64          `gorm:"column:updated_at"`
}

func (LedgerStateModel) TableName() string { return "ledger_states" }

// PerformanceSnapshotModel is one trader's marks at the end of one cycle.
// Append-only; the equity chart and performance endpoints read it back.
type PerformanceSnapshotModel struct {
	ID            int64   `gorm:"column:id;primaryKey"`
	CompetitionID string  `gorm:"column:competition_id;index:idx_perf_model,priority:1"`
	ModelName     string  `gorm:"column:model_name;index:idx_perf_model,priority:2"`
	Cycle         int     `gorm:"column:cycle"`
	Price         float64 `gorm:"column:price"`
	Cash          float64 `gorm:"column:cash"`
	Equity        float64 `gorm:"column:equity"`
	RealizedPnL   float64 `gorm:"column:realized_pnl"`
	UnrealizedPnL float64 `gorm:"column:unrealized_pnl"`
	TotalPnL      float64 `gorm:"column:total_pnl"`
	ReturnPct     float64 `gorm:"column:return_pct"`
	PositionCount int     `gorm:"column:position_count"`
	TradeCount    int     `gorm:"column:trade_count"`
	TS            int64   `gorm:"column:ts;index"`
	CreatedAtUnix int64   `gorm:"column:created_at"`
}

func (PerformanceSnapshotModel) TableName() string { return "performance_snapshots" }
