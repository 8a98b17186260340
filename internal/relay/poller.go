package relay

import (
	"context"
	"log/slog"
	"time"

	"github.com/benbjohnson/clock"

	"payrelay/internal/payway"
	"payrelay/internal/tree"
)

// poll drives one transaction to a terminal state. It checks the gateway on
// a fixed interval after an initial settling delay, persists every
// observation, and stops on approval or when the deadline elapses. Gateway
// errors do not stop the loop and do not reset the deadline.
func (o *Orchestrator) poll(ctx context.Context, machine, tranID string, start time.Time, timer *clock.Timer, log *slog.Logger) {
	defer o.stopPolling(machine)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
		}

		if o.clock.Now().Sub(start) >= o.pollDeadline {
			o.putStatus(ctx, machine, &tree.Status{
				PaymentStatus: tree.PaymentExpired,
				TranID:        tranID,
				Timestamp:     payway.FormatReqTime(o.clock.Now()),
			}, log)
			log.Info("transaction expired", "tran_id", tranID)
			return
		}

		// Arm the next tick before the check so a slow call keeps the cadence.
		timer.Reset(o.pollInterval)

		check, err := o.gateway.CheckTransaction(ctx, payway.FormatReqTime(o.clock.Now()), tranID)
		if err != nil {
			log.Warn("status check failed", "tran_id", tranID, "err", err)
			continue
		}

		status := &tree.Status{
			PaymentStatus: check.Data.PaymentStatus,
			TranID:        tranID,
			Amount:        check.Data.TotalAmount,
			Apv:           check.Data.Apv,
			Currency:      check.Data.PaymentCurrency,
			Timestamp:     payway.FormatReqTime(o.clock.Now()),
		}

		if check.Approved() {
			status.PaymentAmount = check.Data.PaymentAmount
			o.putStatus(ctx, machine, status, log)
			log.Info("transaction approved",
				"tran_id", tranID, "apv", check.Data.Apv, "amount", check.Data.PaymentAmount.String())
			return
		}

		o.putStatus(ctx, machine, status, log)
	}
}
