package relay

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"payrelay/internal/payway"
	"payrelay/internal/tree"
)

// startCycle drives a machine through initiation and waits until its poller
// is registered, so clock advances afterwards hit a live timer.
func startCycle(t *testing.T, o *Orchestrator, gateway *fakeGateway) {
	t.Helper()
	o.HandleSnapshot(context.Background(), requestSnapshot("VM-01", "T1"))
	require.Eventually(t, func() bool { return gateway.createCount() == 1 }, waitFor, tick)
	require.Eventually(t, func() bool { return o.pollingActive("VM-01") }, waitFor, tick)
}

func advanceAndAwaitChecks(t *testing.T, mock *clock.Mock, gateway *fakeGateway, d time.Duration, want int) {
	t.Helper()
	mock.Add(d)
	require.Eventually(t, func() bool { return gateway.checkCount() == want }, waitFor, tick)
}

func TestPollerPersistsEveryObservation(t *testing.T) {
	o, store, gateway, mock := newTestOrchestrator(t)
	resp := pendingCheck()
	resp.Status.Code = payway.StatusCodeSuccess
	resp.Data.PaymentStatus = "PENDING"
	resp.Data.TotalAmount = json.Number("500")
	resp.Data.PaymentCurrency = payway.Currency
	gateway.setCheck(resp, nil)

	startCycle(t, o, gateway)

	advanceAndAwaitChecks(t, mock, gateway, PollInitialDelay, 1)

	require.Eventually(t, func() bool {
		s := machineStatus(t, store, "VM-01")
		return s != nil && s.PaymentStatus == "PENDING"
	}, waitFor, tick)

	s := machineStatus(t, store, "VM-01")
	assert.Equal(t, json.Number("500"), s.Amount)
	assert.Equal(t, payway.Currency, s.Currency)
	assert.NotEmpty(t, s.TranID)
	assert.NotEmpty(t, s.Timestamp)
	assert.True(t, o.pollingActive("VM-01"), "non-terminal observation keeps polling")
}

func TestPollerStopsOnApproval(t *testing.T) {
	o, store, gateway, mock := newTestOrchestrator(t)
	gateway.setCheck(approvedCheck(), nil)

	startCycle(t, o, gateway)
	advanceAndAwaitChecks(t, mock, gateway, PollInitialDelay, 1)

	require.Eventually(t, func() bool {
		s := machineStatus(t, store, "VM-01")
		return s != nil && s.PaymentStatus == payway.PaymentStatusApproved
	}, waitFor, tick)

	s := machineStatus(t, store, "VM-01")
	assert.Equal(t, json.Number("500"), s.PaymentAmount, "approval must carry the settled amount")
	assert.Equal(t, "123456", s.Apv)

	require.Eventually(t, func() bool { return !o.pollingActive("VM-01") }, waitFor, tick)

	// The timer is gone: more time passing must not produce more checks.
	mock.Add(2 * PollInterval)
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, 1, gateway.checkCount())
}

func TestPollerContinuesThroughCheckErrors(t *testing.T) {
	o, store, gateway, mock := newTestOrchestrator(t)
	gateway.setCheck(payway.CheckResponse{}, errors.New("connection reset"))

	startCycle(t, o, gateway)
	advanceAndAwaitChecks(t, mock, gateway, PollInitialDelay, 1)

	assert.Nil(t, machineStatus(t, store, "VM-01"), "a failed check writes nothing")
	assert.True(t, o.pollingActive("VM-01"))

	gateway.setCheck(approvedCheck(), nil)
	advanceAndAwaitChecks(t, mock, gateway, PollInterval, 2)

	require.Eventually(t, func() bool {
		s := machineStatus(t, store, "VM-01")
		return s != nil && s.PaymentStatus == payway.PaymentStatusApproved
	}, waitFor, tick)
}

func TestPollerExpiresAtDeadline(t *testing.T) {
	o, store, gateway, mock := newTestOrchestrator(t)

	startCycle(t, o, gateway)

	// Ticks land at 3s, 13s, ..., 173s: 18 checks, all before the deadline.
	advanceAndAwaitChecks(t, mock, gateway, PollInitialDelay, 1)
	for i := 2; i <= 18; i++ {
		advanceAndAwaitChecks(t, mock, gateway, PollInterval, i)
	}

	s := machineStatus(t, store, "VM-01")
	require.NotNil(t, s)
	assert.NotEqual(t, tree.PaymentExpired, s.PaymentStatus, "must not expire before the deadline")

	// The next tick falls past the deadline: expire without another check.
	mock.Add(PollInterval)
	require.Eventually(t, func() bool {
		s := machineStatus(t, store, "VM-01")
		return s != nil && s.PaymentStatus == tree.PaymentExpired
	}, waitFor, tick)

	s = machineStatus(t, store, "VM-01")
	assert.NotEmpty(t, s.TranID)
	assert.NotEmpty(t, s.Timestamp)
	assert.Equal(t, 18, gateway.checkCount())

	require.Eventually(t, func() bool { return !o.pollingActive("VM-01") }, waitFor, tick)
}
