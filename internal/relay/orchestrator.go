package relay

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"payrelay/internal/payway"
	"payrelay/internal/tree"
)

// Cycle timing. The lock window doubles as the longest a machine stays
// blocked after a cycle, successful or not.
const (
	LockWindow       = 3 * time.Minute
	PollInitialDelay = 3 * time.Second
	PollInterval     = 10 * time.Second
	PollDeadline     = 3 * time.Minute
)

// Gateway is the slice of the payment gateway the orchestrator needs.
// Implemented by *payway.Client.
type Gateway interface {
	CreateCharge(ctx context.Context, order payway.ChargeOrder) (*payway.ChargeResponse, error)
	CheckTransaction(ctx context.Context, reqTime, tranID string) (*payway.CheckResponse, error)
}

// Options tune an Orchestrator. The zero value gives production behavior.
type Options struct {
	// Clock drives lock expiry and poll timing. Defaults to the wall clock;
	// tests inject a mock.
	Clock clock.Clock

	// Logger defaults to slog.Default().
	Logger *slog.Logger
}

// Orchestrator owns the per-machine state table and runs the
// initiate-then-poll workflow. One instance serves all machines; cycles for
// different machines run concurrently, cycles for one machine are serialized
// by its dedup lock.
type Orchestrator struct {
	store   tree.Store
	gateway Gateway
	clock   clock.Clock
	log     *slog.Logger

	lockWindow   time.Duration
	pollDelay    time.Duration
	pollInterval time.Duration
	pollDeadline time.Duration

	mu       sync.Mutex
	machines map[string]*machineState
}

// New creates an orchestrator over a store and a gateway.
func New(store tree.Store, gateway Gateway, opts *Options) *Orchestrator {
	if opts == nil {
		opts = &Options{}
	}
	clk := opts.Clock
	if clk == nil {
		clk = clock.New()
	}
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}

	return &Orchestrator{
		store:        store,
		gateway:      gateway,
		clock:        clk,
		log:          log,
		lockWindow:   LockWindow,
		pollDelay:    PollInitialDelay,
		pollInterval: PollInterval,
		pollDeadline: PollDeadline,
		machines:     make(map[string]*machineState),
	}
}

// HandleSnapshot reconciles one full-tree snapshot: machines whose request
// differs from the recorded response and from the last dispatch, and which
// hold no lock, get a new cycle. Order across machines is not defined; an
// empty snapshot is a no-op.
func (o *Orchestrator) HandleSnapshot(ctx context.Context, snap tree.Snapshot) {
	for machine, rec := range snap {
		if rec.Request == nil || rec.Request.Time == "" {
			continue
		}
		if rec.Response != nil && rec.Response.RequestTime == rec.Request.Time {
			continue
		}
		if !o.admit(machine, rec.Request.Time) {
			continue
		}

		request := *rec.Request
		go o.initiate(ctx, machine, &request)
	}
}

// initiate runs the create-charge half of a cycle and hands off to the
// poller. Failures are persisted to the machine's response node; the dedup
// lock is left to expire on its own timer either way.
func (o *Orchestrator) initiate(ctx context.Context, machine string, request *tree.Request) {
	log := o.log.With("machine", machine, "cycle", uuid.NewString())

	if err := payway.ValidateRequest(request); err != nil {
		log.Warn("rejecting request", "err", err)
		o.putResponse(ctx, machine, &tree.Response{Error: err.Error(), RequestTime: request.Time}, log)
		return
	}

	amount, err := canonicalAmount(request.Amount)
	if err != nil {
		log.Warn("rejecting request", "err", err)
		o.putResponse(ctx, machine, &tree.Response{Error: err.Error(), RequestTime: request.Time}, log)
		return
	}

	if err := o.store.ClearTransient(ctx, machine); err != nil {
		// Stale nodes get overwritten below anyway.
		log.Warn("clearing transient state failed", "err", err)
	}

	reqTime := payway.FormatReqTime(o.clock.Now())
	tranID := payway.TranID(reqTime)
	log.Info("creating charge",
		"tran_id", tranID, "amount", amount, "location", request.Location)

	charge, err := o.gateway.CreateCharge(ctx, payway.ChargeOrder{
		Machine: machine,
		ReqTime: reqTime,
		TranID:  tranID,
		Amount:  amount,
		Slot:    request.Location,
		Items:   request.Items,
	})
	if err != nil {
		log.Error("create charge failed", "tran_id", tranID, "err", err)
		o.putResponse(ctx, machine, &tree.Response{Error: err.Error(), RequestTime: request.Time}, log)
		return
	}

	o.putResponse(ctx, machine, &tree.Response{
		QRString:    charge.QRString,
		Amount:      charge.Amount,
		Timestamp:   payway.FormatReqTime(o.clock.Now()),
		RequestTime: request.Time,
		Status:      tree.ResponsePending,
	}, log)
	log.Info("charge pending", "tran_id", tranID)

	// The deadline starts and the first tick is armed before the poller is
	// registered, so registry state always reflects a live timer.
	start := o.clock.Now()
	timer := o.clock.Timer(o.pollDelay)
	if !o.startPolling(machine) {
		timer.Stop()
		log.Info("poller already active", "tran_id", tranID)
		return
	}
	go o.poll(ctx, machine, tranID, start, timer, log)
}

func (o *Orchestrator) putResponse(ctx context.Context, machine string, response *tree.Response, log *slog.Logger) {
	if err := o.store.PutResponse(ctx, machine, response); err != nil {
		log.Error("persisting response failed", "err", err)
	}
}

func (o *Orchestrator) putStatus(ctx context.Context, machine string, status *tree.Status, log *slog.Logger) {
	if err := o.store.PutStatus(ctx, machine, status); err != nil {
		log.Error("persisting status failed", "err", err)
	}
}

// canonicalAmount renders a request amount as the canonical decimal string
// the signature is computed over.
func canonicalAmount(raw json.Number) (string, error) {
	d, err := decimal.NewFromString(raw.String())
	if err != nil {
		return "", fmt.Errorf("invalid amount %q: %w", raw.String(), err)
	}
	if !d.IsPositive() {
		return "", fmt.Errorf("invalid amount %q: must be positive", raw.String())
	}
	return d.String(), nil
}
