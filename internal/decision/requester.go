package decision

import (
	"context"
	"fmt"
	"time"

	"ludus/internal/gateway/provider"
	"ludus/internal/pkg/circuit"
	textutil "ludus/internal/pkg/text"
)

// rawKeepLen caps the raw text kept on a failed request so one rambling
// model cannot bloat the decision log.
const rawKeepLen = 2000

// Requester owns one trader's path to its model: backend, circuit breaker
// and the per-call timeout.
type Requester struct {
	Backend provider.Backend
	Breaker *circuit.Breaker
	Timeout time.Duration

	parser *Parser
}

func NewRequester(backend provider.Backend, breaker *circuit.Breaker, timeout time.Duration) *Requester {
	return &Requester{
		Backend: backend,
		Breaker: breaker,
		Timeout: timeout,
		parser:  NewParser(),
	}
}

// Request asks the model for one decision. It never returns an error: when
// the call or the parse fails, the Result carries the uniform hold fallback
// with the failure text in Err, so the cycle records one row per trader no
// matter what happened.
func (r *Requester) Request(ctx context.Context, systemPrompt, userPrompt string) Result {
	if r.Breaker != nil && !r.Breaker.Allow() {
		return errorResult("", fmt.Errorf("provider %s unavailable: circuit open", r.Backend.Provider()))
	}

	callCtx := ctx
	if r.Timeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, r.Timeout)
		defer cancel()
	}

	raw, err := r.Backend.Chat(callCtx, systemPrompt, userPrompt)
	if err != nil {
		if r.Breaker != nil {
			r.Breaker.RecordFailure()
		}
		return errorResult(raw, fmt.Errorf("model request failed: %w", err))
	}
	if r.Breaker != nil {
		r.Breaker.RecordSuccess()
	}

	res, perr := r.parser.Parse(raw)
	if perr != nil {
		return errorResultFrom(res, perr)
	}
	return res
}

func errorResult(raw string, err error) Result {
	return errorResultFrom(Result{RawOutput: raw}, err)
}

// errorResultFrom keeps whatever text the parse chain recovered and stamps
// the fallback decision over it: hold, zero confidence, truncated raw.
func errorResultFrom(res Result, err error) Result {
	res.Decision = Decision{Action: ActionHold, Confidence: 0}
	res.RawOutput = textutil.Truncate(res.RawOutput, rawKeepLen)
	res.Err = err.Error()
	return res
}
