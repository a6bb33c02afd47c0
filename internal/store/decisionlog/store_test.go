package decisionlog

import (
	"context"
	"database/sql"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := New(filepath.Join(t.TempDir(), "decisions.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestNewRequiresPath(t *testing.T) {
	_, err := New("")
	assert.Error(t, err)
}

func TestAppendAndListByModel(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	pnl := 125.5

	id, err := s.Append(ctx, Record{
		Timestamp:     1000,
		CompetitionID: "comp-1",
		ModelName:     "gpt-5",
		Cycle:         1,
		Action:        "buy",
		Symbol:        "BTC/USDT",
		Quantity:      0.5,
		Price:         58000,
		Confidence:    0.8,
		Reasoning:     "momentum",
		Status:        "executed",
		RealizedPnL:   &pnl,
		RawOutput:     `{"action":"buy"}`,
		RawJSON:       `{"action":"buy"}`,
	})
	assert.NoError(t, err)
	assert.Positive(t, id)

	list, err := s.ListByModel(ctx, "comp-1", "gpt-5", 10)
	assert.NoError(t, err)
	assert.Len(t, list, 1)

	rec := list[0]
	assert.Equal(t, "buy", rec.Action)
	assert.Equal(t, "BTC/USDT", rec.Symbol)
	assert.Equal(t, 0.5, rec.Quantity)
	assert.Equal(t, 58000.0, rec.Price)
	assert.Equal(t, 0.8, rec.Confidence)
	assert.Equal(t, "executed", rec.Status)
	assert.NotNil(t, rec.RealizedPnL)
	assert.Equal(t, 125.5, *rec.RealizedPnL)
}

func TestAppendErrorRowKeepsNilPnL(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	_, err := s.Append(ctx, Record{
		CompetitionID: "comp-1",
		ModelName:     "gpt-5",
		Cycle:         2,
		Action:        "hold",
		Status:        "hold",
		RawOutput:     "not json at all",
		Error:         "no JSON found in model output",
	})
	assert.NoError(t, err)

	list, err := s.ListByModel(ctx, "comp-1", "gpt-5", 10)
	assert.NoError(t, err)
	assert.Len(t, list, 1)
	assert.Nil(t, list[0].RealizedPnL)
	assert.Equal(t, "no JSON found in model output", list[0].Error)
	assert.Equal(t, "not json at all", list[0].RawOutput)
}

func TestListByModelNewestFirst(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	for i := 1; i <= 5; i++ {
		_, err := s.Append(ctx, Record{
			Timestamp:     int64(i * 1000),
			CompetitionID: "comp-1",
			ModelName:     "gpt-5",
			Cycle:         i,
			Action:        "hold",
			Status:        "hold",
		})
		assert.NoError(t, err)
	}

	list, err := s.ListByModel(ctx, "comp-1", "gpt-5", 3)
	assert.NoError(t, err)
	assert.Len(t, list, 3)
	assert.Equal(t, 5, list[0].Cycle)
	assert.Equal(t, 3, list[2].Cycle)
}

func TestListByModelFiltersCompetitionAndModel(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	for _, row := range []Record{
		{CompetitionID: "comp-1", ModelName: "gpt-5", Cycle: 1, Action: "hold", Status: "hold"},
		{CompetitionID: "comp-1", ModelName: "deepseek-chat", Cycle: 1, Action: "hold", Status: "hold"},
		{CompetitionID: "comp-2", ModelName: "gpt-5", Cycle: 1, Action: "hold", Status: "hold"},
	} {
		_, err := s.Append(ctx, row)
		assert.NoError(t, err)
	}

	list, err := s.ListByModel(ctx, "comp-1", "gpt-5", 10)
	assert.NoError(t, err)
	assert.Len(t, list, 1)
}

func TestListByCycleInsertionOrder(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	names := []string{"gpt-5", "deepseek-chat", "qwen"}
	for _, name := range names {
		_, err := s.Append(ctx, Record{CompetitionID: "comp-1", ModelName: name, Cycle: 3, Action: "hold", Status: "hold"})
		assert.NoError(t, err)
	}
	_, err := s.Append(ctx, Record{CompetitionID: "comp-1", ModelName: "gpt-5", Cycle: 4, Action: "buy", Status: "executed"})
	assert.NoError(t, err)

	list, err := s.ListByCycle(ctx, "comp-1", 3)
	assert.NoError(t, err)
	assert.Len(t, list, 3)
	for i, name := range names {
		assert.Equal(t, name, list[i].ModelName)
	}
}

func TestSchemaMigrationIsIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "decisions.db")

	first, err := New(path)
	assert.NoError(t, err)
	_, err = first.Append(context.Background(), Record{CompetitionID: "comp-1", ModelName: "gpt-5", Cycle: 1, Action: "hold", Status: "hold"})
	assert.NoError(t, err)
	assert.NoError(t, first.Close())

	second, err := New(path)
	assert.NoError(t, err)
	defer second.Close()

	list, err := second.ListByModel(context.Background(), "comp-1", "gpt-5", 10)
	assert.NoError(t, err)
	assert.Len(t, list, 1)
}

func TestUseExternalDB(t *testing.T) {
	s := newTestStore(t)

	path := filepath.Join(t.TempDir(), "shared.db")
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&cache=shared", path)
	external, err := sql.Open("sqlite", dsn)
	assert.NoError(t, err)
	defer external.Close()

	assert.NoError(t, s.UseExternalDB(external))

	_, err = s.Append(context.Background(), Record{CompetitionID: "comp-1", ModelName: "gpt-5", Cycle: 1, Action: "hold", Status: "hold"})
	assert.NoError(t, err)

	// Closing the store must leave the shared handle usable.
	assert.NoError(t, s.Close())
	assert.NoError(t, external.Ping())
}

func TestUseExternalDBRejectsNil(t *testing.T) {
	s := newTestStore(t)
	assert.Error(t, s.UseExternalDB(nil))
}
