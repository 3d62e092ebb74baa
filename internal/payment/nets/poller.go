package nets

import (
	"context"
	"time"
)

// Default polling parameters: one poll every 5 seconds, 60 attempts, about
// five minutes of waiting before the stream gives up.
const (
	DefaultPollInterval = 5 * time.Second
	DefaultMaxAttempts  = 60
)

// Outcome is the terminal result of a polling run.
type Outcome int

const (
	OutcomeSuccess Outcome = iota
	OutcomeFailure
	OutcomeTimeout
	OutcomeCancelled
)

// Event is one status update forwarded to the client while polling.
type Event struct {
	Stage   string `json:"stage"` // "polling", "success", "failure", "timeout"
	Attempt int    `json:"attempt,omitempty"`
	Code    string `json:"code,omitempty"`
	Message string `json:"message,omitempty"`
}

// Gateway is the slice of the NETS client the poller needs.
type Gateway interface {
	QueryTransactionStatus(ctx context.Context, retrievalRef string, timeoutReached bool) (*StatusResponse, error)
}

// Poller drives the long-lived status stream for one pending transaction.
type Poller struct {
	gateway     Gateway
	interval    time.Duration
	maxAttempts int
}

func NewPoller(gateway Gateway, interval time.Duration, maxAttempts int) *Poller {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxAttempts
	}
	return &Poller{gateway: gateway, interval: interval, maxAttempts: maxAttempts}
}

// Poll queries the gateway on a fixed interval, forwarding every response
// through emit, until a terminal status arrives or the attempt budget is
// exhausted. The final attempt signals the timeout flag so the gateway can
// answer terminally. It returns immediately when ctx is cancelled (client
// disconnect), releasing its timer.
func (p *Poller) Poll(ctx context.Context, retrievalRef string, emit func(Event)) Outcome {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for attempt := 1; attempt <= p.maxAttempts; attempt++ {
		select {
		case <-ctx.Done():
			return OutcomeCancelled
		case <-ticker.C:
		}

		timeoutReached := attempt == p.maxAttempts
		status, err := p.gateway.QueryTransactionStatus(ctx, retrievalRef, timeoutReached)
		if err != nil {
			if ctx.Err() != nil {
				return OutcomeCancelled
			}
			emit(Event{Stage: "polling", Attempt: attempt, Message: "status query failed, retrying"})
			continue
		}

		switch {
		case status.Succeeded():
			return OutcomeSuccess
		case status.Failed():
			emit(Event{Stage: "failure", Attempt: attempt, Code: status.ResponseCode,
				Message: "Transaction failed."})
			return OutcomeFailure
		default:
			emit(Event{Stage: "polling", Attempt: attempt, Code: status.ResponseCode})
		}
	}

	emit(Event{Stage: "timeout", Message: "Transaction timed out. Please try again."})
	return OutcomeTimeout
}
