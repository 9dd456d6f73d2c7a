// Package recalc coordinates route recalculation for a load. It owns the
// decision of when a mutation invalidates the cached route, debounces bursts
// of edits, discards stale in-flight results, and broadcasts consistent
// stop/financial state to every view observing the load.
package recalc

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	loaddomain "github.com/freightline/service-loads/internal/domain/load"
	"github.com/freightline/service-loads/internal/domain/routing"
)

// Config holds the coordinator tunables.
type Config struct {
	// Debounce is how long after the last location-affecting mutation a
	// resolution is dispatched.
	Debounce time.Duration
	// ResolveTimeout bounds a single resolver call.
	ResolveTimeout time.Duration
}

const (
	defaultDebounce       = 500 * time.Millisecond
	defaultResolveTimeout = 10 * time.Second
)

func (c Config) withDefaults() Config {
	if c.Debounce <= 0 {
		c.Debounce = defaultDebounce
	}
	if c.ResolveTimeout <= 0 {
		c.ResolveTimeout = defaultResolveTimeout
	}
	return c
}

// Update is the consistent view broadcast to subscribers after every change.
type Update struct {
	LoadID        uuid.UUID
	State         State
	Stops         []loaddomain.Stop
	Financials    loaddomain.FinancialSnapshot
	Resolution    *routing.Resolution
	FailureReason string
}

// Coordinator serializes all stop and financial mutations for one load and
// drives the resolve cycle. Every view surface for the load must share one
// Coordinator instance; the Registry enforces that.
type Coordinator struct {
	loadID   uuid.UUID
	cfg      Config
	resolver routing.Resolver
	logger   *zap.Logger

	mu             sync.Mutex
	state          State
	seq            loaddomain.StopSequence
	fin            loaddomain.FinancialSnapshot
	lastResolution *routing.Resolution
	failureReason  string
	token          uint64
	debouncer      *Debouncer
	subs           map[uint64]chan Update
	nextSubID      uint64

	// resolvedHook runs outside the lock after each resolve cycle lands
	// (success or failure). The application layer uses it to persist the
	// outcome and publish events.
	resolvedHook func(Update)
}

// NewCoordinator creates a Coordinator seeded with the load's current stop
// sequence and financial snapshot.
func NewCoordinator(
	loadID uuid.UUID,
	seq loaddomain.StopSequence,
	fin loaddomain.FinancialSnapshot,
	resolver routing.Resolver,
	cfg Config,
	logger *zap.Logger,
) *Coordinator {
	cfg = cfg.withDefaults()
	return &Coordinator{
		loadID:    loadID,
		cfg:       cfg,
		resolver:  resolver,
		logger:    logger,
		state:     StateIdle,
		seq:       seq,
		fin:       fin,
		debouncer: NewDebouncer(cfg.Debounce),
		subs:      make(map[uint64]chan Update),
	}
}

// SetResolvedHook registers the callback invoked after each resolve cycle
// lands. Must be called before the first mutation.
func (c *Coordinator) SetResolvedHook(hook func(Update)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.resolvedHook = hook
}

// Snapshot returns the coordinator's current consistent view.
func (c *Coordinator) Snapshot() Update {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.updateLocked()
}

// Sequence returns the current stop sequence.
func (c *Coordinator) Sequence() loaddomain.StopSequence {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.seq
}

// Subscribe registers an observer. The returned cancel function must be
// called when the observer goes away. Slow observers miss intermediate
// updates rather than blocking mutations.
func (c *Coordinator) Subscribe() (<-chan Update, func()) {
	c.mu.Lock()
	defer c.mu.Unlock()

	id := c.nextSubID
	c.nextSubID++
	ch := make(chan Update, 16)
	c.subs[id] = ch

	cancel := func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		if sub, ok := c.subs[id]; ok {
			delete(c.subs, id)
			close(sub)
		}
	}
	return ch, cancel
}

// InsertStop appends an intermediate stop and schedules a recalculation.
// The returned stop carries its assigned sequence number.
func (c *Coordinator) InsertStop(st loaddomain.Stop) (loaddomain.Stop, error) {
	c.mu.Lock()
	c.seq = c.seq.InsertIntermediate(st)
	inserted := c.seq.Intermediates()[len(c.seq.Intermediates())-1]
	c.scheduleRecalcLocked()
	c.mu.Unlock()
	return inserted, nil
}

// UpdateStop rewrites an intermediate stop's location details and schedules
// a recalculation.
func (c *Coordinator) UpdateStop(st loaddomain.Stop) error {
	c.mu.Lock()
	next, err := c.seq.UpdateIntermediate(st)
	if err != nil {
		c.mu.Unlock()
		return err
	}
	c.seq = next
	c.scheduleRecalcLocked()
	c.mu.Unlock()
	return nil
}

// RemoveStop removes an intermediate stop and schedules a recalculation.
func (c *Coordinator) RemoveStop(stopID string) error {
	c.mu.Lock()
	next, err := c.seq.RemoveIntermediate(stopID)
	if err != nil {
		c.mu.Unlock()
		return err
	}
	c.seq = next
	c.scheduleRecalcLocked()
	c.mu.Unlock()
	return nil
}

// ReorderStops permutes the intermediate subset and schedules a
// recalculation.
func (c *Coordinator) ReorderStops(orderedIDs []string) error {
	c.mu.Lock()
	next, err := c.seq.Reorder(orderedIDs)
	if err != nil {
		c.mu.Unlock()
		return err
	}
	c.seq = next
	c.scheduleRecalcLocked()
	c.mu.Unlock()
	return nil
}

// SetEndpoint rewrites the pickup or delivery address in the sequence and
// schedules a recalculation. Persisting the address on the load row is the
// caller's job.
func (c *Coordinator) SetEndpoint(role loaddomain.StopRole, addr loaddomain.Address) error {
	c.mu.Lock()
	next, err := c.seq.SetEndpointAddress(role, addr)
	if err != nil {
		c.mu.Unlock()
		return err
	}
	c.seq = next
	c.scheduleRecalcLocked()
	c.mu.Unlock()
	return nil
}

// OverrideMiles applies a direct user edit of the miles field. It never
// cancels an in-flight resolution: the manual flag in the snapshot guards
// against a stale in-flight result overwriting the edit regardless of
// arrival order.
func (c *Coordinator) OverrideMiles(miles float64) loaddomain.FinancialSnapshot {
	c.mu.Lock()
	c.fin = c.fin.WithMilesOverride(miles)
	fin := c.fin
	update := c.updateLocked()
	c.mu.Unlock()
	c.broadcast(update)
	return fin
}

// SetFinancials updates revenue and driver pay. Financial-only edits do not
// invalidate the route, so no recalculation is scheduled.
func (c *Coordinator) SetFinancials(revenueCents, driverPayCents int64) loaddomain.FinancialSnapshot {
	c.mu.Lock()
	c.fin = c.fin.WithRevenue(revenueCents).WithDriverPay(driverPayCents)
	fin := c.fin
	update := c.updateLocked()
	c.mu.Unlock()
	c.broadcast(update)
	return fin
}

// RefreshRoute is the explicit "recalculate" action: it returns the snapshot
// to calculated mode and dispatches a forced resolution immediately,
// bypassing the debounce window.
func (c *Coordinator) RefreshRoute() {
	c.mu.Lock()
	c.fin = c.fin.ResetToCalculated()
	c.debouncer.Stop()
	update := c.beginResolveLocked(true)
	c.mu.Unlock()
	c.broadcast(update)
}

// ApplyExternalResolution folds in a resolution reported by the map
// rendering surface. The manual-override guard applies exactly as for
// resolver-driven results.
func (c *Coordinator) ApplyExternalResolution(res routing.Resolution) {
	c.mu.Lock()
	if c.state == StatePending || c.state == StateResolving {
		// A local cycle for a newer stop sequence is either armed behind
		// the debounce window or already in flight; the externally reported
		// figure reflects an older route and must not cancel it.
		c.mu.Unlock()
		c.logger.Debug("ignoring external resolution for a superseded route",
			zap.String("load_id", c.loadID.String()),
			zap.String("state", c.state.String()))
		return
	}
	c.transitionLocked(StateResolved)
	c.lastResolution = &res
	c.failureReason = ""
	c.fin = c.fin.ApplyResolution(res)
	update := c.updateLocked()
	hook := c.resolvedHook
	c.mu.Unlock()

	c.broadcast(update)
	if hook != nil {
		hook(update)
	}
}

// --- internals ---

// scheduleRecalcLocked moves the coordinator to pending and (re)arms the
// debounce window. A mutation arriving while already pending restarts the
// window rather than stacking timers, so only the net state at expiry is
// ever resolved.
func (c *Coordinator) scheduleRecalcLocked() {
	if c.state != StatePending {
		c.transitionLocked(StatePending)
	}
	c.debouncer.Trigger(c.onDebounceExpiry)
	update := c.updateLocked()
	c.broadcastLocked(update)
}

func (c *Coordinator) onDebounceExpiry() {
	c.mu.Lock()
	if c.state != StatePending {
		c.mu.Unlock()
		return
	}
	update := c.beginResolveLocked(false)
	c.mu.Unlock()
	c.broadcast(update)
}

// beginResolveLocked starts a resolve cycle with a fresh request token. Any
// still-in-flight request from an earlier cycle becomes stale and its result
// will be discarded on arrival.
func (c *Coordinator) beginResolveLocked(force bool) Update {
	c.token++
	token := c.token
	c.transitionLocked(StateResolving)
	c.failureReason = ""
	locations := c.seq.Locations()

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), c.cfg.ResolveTimeout)
		defer cancel()
		res, err := c.resolver.Resolve(ctx, locations, routing.ResolveOptions{ForceRefresh: force})
		c.completeResolve(token, res, err)
	}()

	return c.updateLocked()
}

// completeResolve lands a resolver result. Results carrying a token older
// than the newest cycle are dropped: last request wins, no cancellation
// needed.
func (c *Coordinator) completeResolve(token uint64, res routing.Resolution, err error) {
	c.mu.Lock()
	if token != c.token {
		c.mu.Unlock()
		c.logger.Debug("discarding stale resolution",
			zap.String("load_id", c.loadID.String()),
			zap.Uint64("token", token),
		)
		return
	}

	if c.state == StatePending {
		// A mutation landed while this request was in flight, so the result
		// describes the pre-mutation sequence. The armed debounce window
		// will dispatch a resolve for the newer one.
		c.mu.Unlock()
		c.logger.Debug("discarding resolution superseded by a newer mutation",
			zap.String("load_id", c.loadID.String()),
			zap.Uint64("token", token),
		)
		return
	}

	if err != nil {
		// Keep the last-known-good resolution and financials; the failure
		// is surfaced as data, never thrown into the views.
		c.transitionLocked(StateFailed)
		c.failureReason = err.Error()
		c.logger.Warn("route resolution failed",
			zap.String("load_id", c.loadID.String()),
			zap.Error(err),
		)
	} else {
		c.transitionLocked(StateResolved)
		c.lastResolution = &res
		c.failureReason = ""
		c.fin = c.fin.ApplyResolution(res)
	}

	update := c.updateLocked()
	hook := c.resolvedHook
	c.mu.Unlock()

	c.broadcast(update)
	if hook != nil {
		hook(update)
	}
}

// transitionLocked moves the state machine through the validTransitions
// table. A transition the table rejects indicates a coordinator bug; it is
// logged and refused rather than corrupting the cycle.
func (c *Coordinator) transitionLocked(to State) bool {
	if !c.state.CanTransitionTo(to) {
		c.logger.Error("refusing invalid recalculation state transition",
			zap.String("load_id", c.loadID.String()),
			zap.String("from", c.state.String()),
			zap.String("to", to.String()),
		)
		return false
	}
	c.state = to
	return true
}

func (c *Coordinator) updateLocked() Update {
	return Update{
		LoadID:        c.loadID,
		State:         c.state,
		Stops:         c.seq.Stops(),
		Financials:    c.fin,
		Resolution:    c.lastResolution,
		FailureReason: c.failureReason,
	}
}

func (c *Coordinator) broadcast(update Update) {
	c.mu.Lock()
	c.broadcastLocked(update)
	c.mu.Unlock()
}

func (c *Coordinator) broadcastLocked(update Update) {
	for _, ch := range c.subs {
		select {
		case ch <- update:
		default:
		}
	}
}
