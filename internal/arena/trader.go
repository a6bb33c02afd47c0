// Package arena runs the competition: N model traders against one market
// feed, one decision each per cycle, each against a private ledger.
package arena

import (
	"time"

	"ludus/internal/arena/ledger"
	"ludus/internal/decision"
	"ludus/internal/gateway/provider"
	"ludus/internal/logger"
	"ludus/internal/pkg/circuit"
)

// Trader couples one language model with its private book.
type Trader struct {
	Name      string
	Provider  string
	Model     string
	Ledger    *ledger.Ledger
	Requester *decision.Requester
}

// Seat is one configured trader slot in fixed order. When construction
// failed, Trader is nil and Err says why; the seat still produces a
// decision row every cycle so the transcript stays uniform.
type Seat struct {
	Name   string
	Trader *Trader
	Err    string
}

// TraderSpec is the per-trader construction input.
type TraderSpec struct {
	Backend        provider.BackendSpec
	InitialCapital float64
}

// TraderOptions carries the knobs shared by every trader.
type TraderOptions struct {
	HistoryLimit     int
	RequestTimeout   time.Duration
	BreakerThreshold int
	BreakerCooldown  time.Duration
}

// BuildTraders constructs one seat per spec, in order. A failed backend
// (missing credential, unknown provider) does not abort the competition:
// the seat is kept with the error and the rest build normally.
func BuildTraders(specs []TraderSpec, caps provider.Capabilities, opt TraderOptions) []Seat {
	seats := make([]Seat, 0, len(specs))
	for _, spec := range specs {
		name := spec.Backend.Trader
		backend, err := provider.NewBackend(spec.Backend, caps)
		if err != nil {
			logger.Errorf("Trader %s unavailable: %v", name, err)
			seats = append(seats, Seat{Name: name, Err: err.Error()})
			continue
		}
		var breaker *circuit.Breaker
		if opt.BreakerThreshold > 0 {
			breaker = circuit.NewBreaker(name, opt.BreakerThreshold, opt.BreakerCooldown)
		}
		seats = append(seats, Seat{
			Name: name,
			Trader: &Trader{
				Name:      name,
				Provider:  backend.Provider(),
				Model:     backend.Model(),
				Ledger:    ledger.New(spec.InitialCapital, opt.HistoryLimit),
				Requester: decision.NewRequester(backend, breaker, opt.RequestTimeout),
			},
		})
		logger.Infof("Trader %s ready: provider=%s model=%s capital=%.2f",
			name, backend.Provider(), backend.Model(), spec.InitialCapital)
	}
	return seats
}
