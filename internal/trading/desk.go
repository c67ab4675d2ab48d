// Package trading drives the strategy pricing pipeline: it turns strategy
// descriptions into priced order drafts, keeps them fresh and submits them.
package trading

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/sourcegraph/conc"

	apperrors "auction-trader/internal/errors"
	"auction-trader/internal/logging"
	"auction-trader/internal/models"
	"auction-trader/internal/notify"
	"auction-trader/internal/payoff"
	"auction-trader/internal/sdk"
	"auction-trader/internal/store"
	"auction-trader/internal/strategy"
	"auction-trader/internal/stream"
)

// DefaultTopic is the hub topic desks publish on unless configured.
const DefaultTopic = "desk"

// Assembler turns a description into priced legs.
type Assembler interface {
	Assemble(ctx context.Context, book *models.ContractBook, desc strategy.Description) (strategy.Assembly, error)
}

// DraftBuilder turns priced legs into an order draft.
type DraftBuilder interface {
	Build(priced []models.PricedLeg) (models.OrderDraft, error)
}

// DeskConfig holds desk settings.
type DeskConfig struct {
	Topic           string
	RefreshInterval time.Duration // zero disables the refresh timer
	Payoff          payoff.Options
}

// Desk owns one strategy draft. Every Update is a resolution cycle tagged
// with a generation; only the latest cycle may publish its result.
type Desk struct {
	config    DeskConfig
	assembler Assembler
	builder   DraftBuilder
	client    sdk.Client
	store     store.OrderStore
	notifier  notify.Notifier
	hub       *stream.Hub
	logger    zerolog.Logger

	mu         sync.Mutex
	generation uint64
	state      models.DraftState
	desc       strategy.Description
	book       *models.ContractBook
	spot       decimal.Decimal
	snapshot   models.Snapshot
	submitting bool
	closed     bool

	baseCtx     context.Context
	cancel      context.CancelFunc
	refreshStop chan struct{}
	refreshWG   sync.WaitGroup
}

// DeskDeps are the collaborators of a desk. Store, Notifier and Hub are
// optional.
type DeskDeps struct {
	Assembler Assembler
	Builder   DraftBuilder
	Client    sdk.Client
	Store     store.OrderStore
	Notifier  notify.Notifier
	Hub       *stream.Hub
	Logger    zerolog.Logger
}

// NewDesk creates a desk in the Empty state.
func NewDesk(cfg DeskConfig, deps DeskDeps) *Desk {
	if cfg.Topic == "" {
		cfg.Topic = DefaultTopic
	}
	if cfg.Payoff.Points == 0 {
		cfg.Payoff = payoff.DefaultOptions()
	}
	notifier := deps.Notifier
	if notifier == nil {
		notifier = notify.NewNoOpNotifier()
	}
	ctx, cancel := context.WithCancel(context.Background())

	return &Desk{
		config:    cfg,
		assembler: deps.Assembler,
		builder:   deps.Builder,
		client:    deps.Client,
		store:     deps.Store,
		notifier:  notifier,
		hub:       deps.Hub,
		logger:    deps.Logger.With().Str("component", "desk").Str("topic", cfg.Topic).Logger(),
		state:     models.DraftEmpty,
		snapshot:  models.Snapshot{Topic: cfg.Topic, State: models.DraftEmpty},
		baseCtx:   ctx,
		cancel:    cancel,
	}
}

// Load fetches the contract book and spot for a pair. A zero expiry picks
// the nearest open one.
func (d *Desk) Load(ctx context.Context, pair string, expiry time.Time) error {
	book, err := sdk.LoadBook(ctx, d.client, pair, expiry)
	if err != nil {
		return err
	}
	spot, err := d.client.SpotPrice(ctx, pair)
	if err != nil {
		d.logger.Warn().Err(err).Str("pair", pair).Msg("Spot price unavailable")
		spot = decimal.Zero
	}
	d.SetBook(book, spot)
	return nil
}

// SetBook replaces the contract book and spot used for later cycles.
func (d *Desk) SetBook(book *models.ContractBook, spot decimal.Decimal) {
	d.mu.Lock()
	d.book, d.spot = book, spot
	d.mu.Unlock()
}

// Book returns the current contract book and spot.
func (d *Desk) Book() (*models.ContractBook, decimal.Decimal) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.book, d.spot
}

// State returns the draft state.
func (d *Desk) State() models.DraftState {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.state
}

// Snapshot returns the last published snapshot.
func (d *Desk) Snapshot() models.Snapshot {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.snapshot
}

// Generation returns the latest request generation.
func (d *Desk) Generation() uint64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.generation
}

// Update runs one resolution cycle for desc. When a newer Update starts
// before this one finishes the result is dropped and ErrStaleGeneration
// returned. Insufficient input is not an error: the desk goes Empty.
func (d *Desk) Update(ctx context.Context, desc strategy.Description) (models.Snapshot, error) {
	d.mu.Lock()
	switch {
	case d.closed:
		d.mu.Unlock()
		return models.Snapshot{}, apperrors.ErrDeskClosed
	case d.state == models.DraftSubmitted:
		d.mu.Unlock()
		return models.Snapshot{}, apperrors.ErrAlreadySubmitted
	case d.submitting:
		d.mu.Unlock()
		return models.Snapshot{}, apperrors.ErrSubmitInProgress
	case d.book == nil:
		d.mu.Unlock()
		return models.Snapshot{}, apperrors.Wrap(apperrors.ErrContractNotFound, "no contract book loaded")
	}
	d.generation++
	gen := d.generation
	if d.state == models.DraftPriced {
		d.state = models.DraftPartiallyConfigured
	}
	d.desc = desc
	book, spot := d.book, d.spot
	d.mu.Unlock()

	logger := logging.WithStrategy(d.logger, desc.Name()).With().Uint64("generation", gen).Logger()
	snap, err := d.resolve(ctx, gen, desc, book, spot)
	if err != nil {
		logger.Error().Err(err).Msg("Resolution cycle failed")
		return models.Snapshot{}, err
	}

	d.mu.Lock()
	if gen != d.generation {
		d.mu.Unlock()
		logger.Debug().Msg("Dropping superseded result")
		return models.Snapshot{}, apperrors.ErrStaleGeneration
	}
	if d.closed || d.submitting || d.state == models.DraftSubmitted {
		d.mu.Unlock()
		return models.Snapshot{}, apperrors.ErrStaleGeneration
	}
	d.state = snap.State
	d.snapshot = snap
	if snap.State != models.DraftEmpty {
		d.startRefreshLocked()
	}
	d.mu.Unlock()

	logger.Debug().Str("state", snap.State.String()).Msg("Desk updated")
	d.publish(snap)
	return snap, nil
}

func (d *Desk) resolve(ctx context.Context, gen uint64, desc strategy.Description, book *models.ContractBook, spot decimal.Decimal) (models.Snapshot, error) {
	snap := models.Snapshot{
		Topic:       d.config.Topic,
		Generation:  gen,
		Description: desc.Name(),
		State:       models.DraftEmpty,
		Timestamp:   time.Now(),
	}

	assembly, err := d.assembler.Assemble(ctx, book, desc)
	if apperrors.Is(err, apperrors.ErrInsufficientInput) {
		return snap, nil
	}
	if err != nil {
		return snap, err
	}
	if len(assembly.Priced) == 0 {
		return snap, nil
	}
	snap.Legs = assembly.Priced

	draft, err := d.builder.Build(assembly.Priced)
	if err != nil {
		return snap, apperrors.Wrap(err, "building order draft")
	}
	snap.Draft = &draft

	if !draft.Complete {
		snap.State = models.DraftPartiallyConfigured
		return snap, nil
	}
	snap.State = models.DraftPriced

	opts := d.config.Payoff
	if spot.IsPositive() {
		opts.Spot = &spot
	}

	var wg conc.WaitGroup
	var lockErr, feeErr error
	var lock decimal.Decimal
	var fees models.Fees
	est := draft
	wg.Go(func() {
		lock, lockErr = d.client.EstimateOrderLock(ctx, est)
	})
	wg.Go(func() {
		fees, feeErr = d.client.EstimateOrderFees(ctx, est)
	})

	points, payoffErr := payoff.Estimate(assembly.Priced, opts)
	wg.Wait()
	if lockErr == nil {
		draft.Lock = &lock
	}
	if feeErr == nil {
		draft.Fees = &fees
	}

	if payoffErr != nil {
		d.logger.Warn().Err(payoffErr).Msg("Payoff estimate failed")
	} else {
		summary := payoff.Summarize(points)
		snap.Payoff, snap.Summary = points, &summary
	}

	for _, err := range []error{lockErr, feeErr} {
		if err != nil {
			snap.EstimateWarning = true
			d.logger.Warn().Err(err).Str("client_order_id", draft.ClientOrderID).Msg("Order estimate unavailable")
		}
	}
	if snap.EstimateWarning {
		draft.Lock, draft.Fees = nil, nil
	}
	return snap, nil
}

// Submit sends the current draft to the trading API exactly once. Failures
// are reported and leave the draft in place; nothing is retried.
func (d *Desk) Submit(ctx context.Context) (models.SubmittedOrder, error) {
	d.mu.Lock()
	switch {
	case d.closed:
		d.mu.Unlock()
		return models.SubmittedOrder{}, apperrors.ErrDeskClosed
	case d.state == models.DraftSubmitted:
		d.mu.Unlock()
		return models.SubmittedOrder{}, apperrors.ErrAlreadySubmitted
	case d.submitting:
		d.mu.Unlock()
		return models.SubmittedOrder{}, apperrors.ErrSubmitInProgress
	case d.state != models.DraftPriced || d.snapshot.Draft == nil || !d.snapshot.Draft.Complete:
		d.mu.Unlock()
		return models.SubmittedOrder{}, apperrors.ErrDraftIncomplete
	case !d.snapshot.Draft.Estimated():
		d.mu.Unlock()
		return models.SubmittedOrder{}, apperrors.ErrEstimateUnavailable
	}
	d.submitting = true
	draft := *d.snapshot.Draft
	description := d.snapshot.Description
	book := d.book
	d.mu.Unlock()

	logger := logging.WithOrderID(logging.WithOperation(d.logger, "submit"), draft.ClientOrderID)

	receipt, err := d.client.NewOrder(ctx, draft, description)
	if err != nil {
		d.mu.Lock()
		d.submitting = false
		d.mu.Unlock()

		logging.LogOrder(logger, draft.ClientOrderID, description, draft.TotalNetPrice.String(), "FAILED")
		if nerr := d.notifier.SendError(ctx, err, "submit "+description); nerr != nil {
			logger.Warn().Err(nerr).Msg("Failed to send notification")
		}
		var oerr *apperrors.OrderError
		if apperrors.As(err, &oerr) {
			return models.SubmittedOrder{}, err
		}
		return models.SubmittedOrder{}, apperrors.NewOrderError(draft.ClientOrderID, "submit", "submission failed", err)
	}

	now := time.Now().UTC()
	submitted := models.SubmittedOrder{
		ClientOrderID: draft.ClientOrderID,
		OrderID:       receipt.OrderID,
		Description:   description,
		Legs:          draft.Legs,
		TotalNetPrice: draft.TotalNetPrice,
		Lock:          *draft.Lock,
		Fees:          draft.Fees.NumberValue,
		Status:        receipt.Status,
		SubmittedAt:   now,
		UpdatedAt:     now,
	}
	if submitted.Status == "" {
		submitted.Status = models.OrderStatusOpen
	}
	if book != nil {
		submitted.CurrencyPair, submitted.Expiry = book.CurrencyPair, book.Expiry
	}

	d.mu.Lock()
	d.submitting = false
	d.state = models.DraftSubmitted
	d.stopRefreshLocked()
	snap := d.snapshot
	snap.State = models.DraftSubmitted
	snap.Submitted = &submitted
	snap.Timestamp = now
	d.snapshot = snap
	d.mu.Unlock()

	logging.LogOrder(logger, submitted.ClientOrderID, description, submitted.TotalNetPrice.String(), string(submitted.Status))

	if d.store != nil {
		if err := d.store.SaveOrder(ctx, &submitted); err != nil {
			logger.Error().Err(err).Msg("Failed to journal order")
		}
	}
	if err := d.notifier.SendOrder(ctx, submitted); err != nil {
		logger.Warn().Err(err).Msg("Failed to send notification")
	}
	d.publish(snap)
	return submitted, nil
}

// HandleOrderUpdate applies a pushed status change to the journal and
// relays it as a notification.
func (d *Desk) HandleOrderUpdate(ctx context.Context, update models.OrderUpdate) {
	logger := logging.WithOrderID(d.logger, update.ClientOrderID)
	if d.store != nil {
		if err := d.store.UpdateOrderStatus(ctx, update.ClientOrderID, update.Status); err != nil {
			logger.Debug().Err(err).Msg("Order update not journaled")
		}
	}

	d.mu.Lock()
	if s := d.snapshot.Submitted; s != nil && s.ClientOrderID == update.ClientOrderID {
		updated := *s
		updated.Status = update.Status
		updated.UpdatedAt = update.Timestamp
		d.snapshot.Submitted = &updated
	}
	d.mu.Unlock()

	if err := d.notifier.SendOrderUpdate(ctx, update); err != nil {
		logger.Warn().Err(err).Msg("Failed to send notification")
	}
}

// Reset discards the draft and returns the desk to Empty. A submitted desk
// can be reset to start a new strategy.
func (d *Desk) Reset() {
	d.mu.Lock()
	d.generation++
	d.stopRefreshLocked()
	d.state = models.DraftEmpty
	d.desc = nil
	d.snapshot = models.Snapshot{Topic: d.config.Topic, Generation: d.generation, State: models.DraftEmpty, Timestamp: time.Now()}
	snap := d.snapshot
	d.mu.Unlock()
	d.publish(snap)
}

// Close stops the refresh timer. Later calls fail with ErrDeskClosed.
func (d *Desk) Close() error {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return nil
	}
	d.closed = true
	d.stopRefreshLocked()
	d.mu.Unlock()

	d.cancel()
	d.refreshWG.Wait()
	return nil
}

// Refreshing reports whether the refresh timer is running.
func (d *Desk) Refreshing() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.refreshStop != nil
}

func (d *Desk) startRefreshLocked() {
	if d.refreshStop != nil || d.config.RefreshInterval <= 0 {
		return
	}
	stop := make(chan struct{})
	d.refreshStop = stop
	d.refreshWG.Add(1)
	go d.refreshLoop(stop)
}

func (d *Desk) stopRefreshLocked() {
	if d.refreshStop != nil {
		close(d.refreshStop)
		d.refreshStop = nil
	}
}

func (d *Desk) refreshLoop(stop <-chan struct{}) {
	defer d.refreshWG.Done()
	ticker := time.NewTicker(d.config.RefreshInterval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-d.baseCtx.Done():
			return
		case <-ticker.C:
			d.mu.Lock()
			desc := d.desc
			skip := d.submitting || desc == nil ||
				(d.state != models.DraftPriced && d.state != models.DraftPartiallyConfigured)
			d.mu.Unlock()
			if skip {
				continue
			}

			if _, err := d.Update(d.baseCtx, desc); err != nil && !apperrors.Is(err, apperrors.ErrStaleGeneration) {
				d.logger.Debug().Err(err).Msg("Refresh skipped")
			}
		}
	}
}

func (d *Desk) publish(snap models.Snapshot) {
	if d.hub != nil {
		d.hub.Publish(snap)
	}
}
