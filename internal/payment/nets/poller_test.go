package nets

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type scriptedGateway struct {
	responses []*StatusResponse
	errs      []error
	calls     int
	lastFlag  bool
}

func (g *scriptedGateway) QueryTransactionStatus(_ context.Context, _ string, timeoutReached bool) (*StatusResponse, error) {
	i := g.calls
	g.calls++
	g.lastFlag = timeoutReached
	if i < len(g.errs) && g.errs[i] != nil {
		return nil, g.errs[i]
	}
	if i < len(g.responses) {
		return g.responses[i], nil
	}
	return &StatusResponse{ResponseCode: "09", TxnStatus: 0}, nil
}

func TestPoll_SuccessOnThirdAttempt(t *testing.T) {
	gateway := &scriptedGateway{responses: []*StatusResponse{
		{ResponseCode: "09", TxnStatus: 0},
		{ResponseCode: "09", TxnStatus: 0},
		{ResponseCode: "00", TxnStatus: TxnStatusSuccess},
	}}
	poller := NewPoller(gateway, time.Millisecond, 10)

	var events []Event
	outcome := poller.Poll(context.Background(), "ref-1", func(e Event) { events = append(events, e) })

	require.Equal(t, OutcomeSuccess, outcome)
	require.Equal(t, 3, gateway.calls)
	require.Len(t, events, 2)
	require.Equal(t, "polling", events[0].Stage)
}

func TestPoll_FailureStops(t *testing.T) {
	gateway := &scriptedGateway{responses: []*StatusResponse{
		{ResponseCode: "09", TxnStatus: TxnStatusFailure},
	}}
	poller := NewPoller(gateway, time.Millisecond, 10)

	var events []Event
	outcome := poller.Poll(context.Background(), "ref-1", func(e Event) { events = append(events, e) })

	require.Equal(t, OutcomeFailure, outcome)
	require.Len(t, events, 1)
	require.Equal(t, "failure", events[0].Stage)
	require.Equal(t, "09", events[0].Code)
}

func TestPoll_TimeoutSignalsGatewayOnFinalAttempt(t *testing.T) {
	gateway := &scriptedGateway{}
	poller := NewPoller(gateway, time.Millisecond, 3)

	var events []Event
	outcome := poller.Poll(context.Background(), "ref-1", func(e Event) { events = append(events, e) })

	require.Equal(t, OutcomeTimeout, outcome)
	require.Equal(t, 3, gateway.calls)
	require.True(t, gateway.lastFlag)
	require.Equal(t, "timeout", events[len(events)-1].Stage)
}

func TestPoll_QueryErrorsAreRetried(t *testing.T) {
	gateway := &scriptedGateway{
		errs: []error{errors.New("connection reset"), nil},
		responses: []*StatusResponse{
			nil,
			{ResponseCode: "00", TxnStatus: TxnStatusSuccess},
		},
	}
	poller := NewPoller(gateway, time.Millisecond, 10)

	outcome := poller.Poll(context.Background(), "ref-1", func(Event) {})

	require.Equal(t, OutcomeSuccess, outcome)
	require.Equal(t, 2, gateway.calls)
}

func TestPoll_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	poller := NewPoller(&scriptedGateway{}, time.Hour, 10)
	outcome := poller.Poll(ctx, "ref-1", func(Event) {})

	require.Equal(t, OutcomeCancelled, outcome)
}

func TestStatusResponse_TerminalStates(t *testing.T) {
	require.True(t, (&StatusResponse{ResponseCode: "00", TxnStatus: 1}).Succeeded())
	require.False(t, (&StatusResponse{ResponseCode: "09", TxnStatus: 1}).Succeeded())
	require.True(t, (&StatusResponse{ResponseCode: "09", TxnStatus: 2}).Failed())
	require.False(t, (&StatusResponse{ResponseCode: "00", TxnStatus: 2}).Failed())
}
