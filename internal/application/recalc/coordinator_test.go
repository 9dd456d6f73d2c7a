package recalc

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	loaddomain "github.com/freightline/service-loads/internal/domain/load"
	"github.com/freightline/service-loads/internal/domain/routing"
)

type resolveCall struct {
	locations []routing.Location
	opts      routing.ResolveOptions
}

// fakeResolver records calls and delegates to a per-test function.
type fakeResolver struct {
	mu        sync.Mutex
	calls     []resolveCall
	resolveFn func(ctx context.Context, locations []routing.Location, opts routing.ResolveOptions) (routing.Resolution, error)
}

func (f *fakeResolver) Resolve(ctx context.Context, locations []routing.Location, opts routing.ResolveOptions) (routing.Resolution, error) {
	f.mu.Lock()
	f.calls = append(f.calls, resolveCall{locations: locations, opts: opts})
	fn := f.resolveFn
	f.mu.Unlock()
	if fn == nil {
		return routing.Resolution{DistanceMiles: 925, DurationHours: 14.2, ResolvedAt: time.Now().UTC()}, nil
	}
	return fn(ctx, locations, opts)
}

func (f *fakeResolver) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func (f *fakeResolver) lastCall() resolveCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[len(f.calls)-1]
}

func newTestCoordinator(t *testing.T, resolver routing.Resolver) *Coordinator {
	t.Helper()
	return newTestCoordinatorDebounce(t, resolver, 10*time.Millisecond)
}

func newTestCoordinatorDebounce(t *testing.T, resolver routing.Resolver, debounce time.Duration) *Coordinator {
	t.Helper()
	ld, err := loaddomain.NewLoad(
		"Acme Logistics",
		loaddomain.Address{City: "Chicago", State: "IL"},
		nil,
		loaddomain.Address{City: "Dallas", State: "TX"},
		nil,
		200000,
		150000,
		"",
	)
	require.NoError(t, err)

	seq := loaddomain.BuildStopSequence(ld, nil)
	cfg := Config{Debounce: debounce, ResolveTimeout: time.Second}
	return NewCoordinator(ld.ID(), seq, ld.Financials(), resolver, cfg, zap.NewNop())
}

func waitForState(t *testing.T, c *Coordinator, want State) Update {
	t.Helper()
	var last Update
	require.Eventually(t, func() bool {
		last = c.Snapshot()
		return last.State == want
	}, 2*time.Second, 2*time.Millisecond, "coordinator never reached %s", want)
	return last
}

func TestCoordinator_MutationResolvesAfterDebounce(t *testing.T) {
	resolver := &fakeResolver{}
	c := newTestCoordinator(t, resolver)

	_, err := c.InsertStop(loaddomain.Stop{ID: "a", Address: loaddomain.Address{City: "Tulsa", State: "OK"}})
	require.NoError(t, err)
	assert.Equal(t, StatePending, c.Snapshot().State)

	update := waitForState(t, c, StateResolved)
	assert.Equal(t, 925.0, update.Financials.Miles)
	assert.Equal(t, loaddomain.MilesCalculated, update.Financials.MilesSource)
	require.NotNil(t, update.Resolution)
	assert.Equal(t, 925.0, update.Resolution.DistanceMiles)
}

func TestCoordinator_BurstCoalescesIntoOneResolve(t *testing.T) {
	resolver := &fakeResolver{}
	c := newTestCoordinator(t, resolver)

	// Add then remove within the debounce window: the resolver must see only
	// the net state, once.
	_, err := c.InsertStop(loaddomain.Stop{ID: "a", Address: loaddomain.Address{City: "Tulsa", State: "OK"}})
	require.NoError(t, err)
	inserted := c.Sequence().Intermediates()[0]
	_, err = c.InsertStop(loaddomain.Stop{ID: "b", Address: loaddomain.Address{City: "Amarillo", State: "TX"}})
	require.NoError(t, err)
	require.NoError(t, c.RemoveStop(inserted.ID))

	waitForState(t, c, StateResolved)

	assert.Equal(t, 1, resolver.callCount())
	locs := resolver.lastCall().locations
	require.Len(t, locs, 3)
	assert.Equal(t, "Amarillo", locs[1].City)
}

func TestCoordinator_StaleResultDiscarded(t *testing.T) {
	// Each in-flight request gets its own release channel so the test
	// controls which result lands first.
	staleRelease := make(chan struct{})
	freshRelease := make(chan struct{})
	var callNum int
	var callMu sync.Mutex
	resolver := &fakeResolver{}
	resolver.resolveFn = func(ctx context.Context, _ []routing.Location, _ routing.ResolveOptions) (routing.Resolution, error) {
		callMu.Lock()
		callNum++
		n := callNum
		callMu.Unlock()
		if n == 1 {
			<-staleRelease
			return routing.Resolution{DistanceMiles: 111, DurationHours: 2}, nil
		}
		<-freshRelease
		return routing.Resolution{DistanceMiles: 999, DurationHours: 15}, nil
	}
	c := newTestCoordinator(t, resolver)

	_, err := c.InsertStop(loaddomain.Stop{ID: "a", Address: loaddomain.Address{City: "Tulsa", State: "OK"}})
	require.NoError(t, err)
	waitForState(t, c, StateResolving)

	// A new mutation while the first request is in flight starts a newer
	// cycle; the first result must lose no matter when it arrives.
	_, err = c.InsertStop(loaddomain.Stop{ID: "b", Address: loaddomain.Address{City: "Amarillo", State: "TX"}})
	require.NoError(t, err)
	require.Eventually(t, func() bool { return resolver.callCount() == 2 }, 2*time.Second, 2*time.Millisecond)

	// Release the fresh response, then let the stale one land afterwards.
	close(freshRelease)
	update := waitForState(t, c, StateResolved)
	assert.Equal(t, 999.0, update.Financials.Miles)

	close(staleRelease)
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, 999.0, c.Snapshot().Financials.Miles)
	assert.Equal(t, StateResolved, c.Snapshot().State)
}

func TestCoordinator_FailureKeepsLastGood(t *testing.T) {
	resolver := &fakeResolver{}
	c := newTestCoordinator(t, resolver)

	_, err := c.InsertStop(loaddomain.Stop{ID: "a", Address: loaddomain.Address{City: "Tulsa", State: "OK"}})
	require.NoError(t, err)
	waitForState(t, c, StateResolved)

	resolver.mu.Lock()
	resolver.resolveFn = func(context.Context, []routing.Location, routing.ResolveOptions) (routing.Resolution, error) {
		return routing.Resolution{}, errors.New("gateway down")
	}
	resolver.mu.Unlock()

	require.NoError(t, c.RemoveStop("a"))
	update := waitForState(t, c, StateFailed)

	assert.Contains(t, update.FailureReason, "gateway down")
	// Last-known-good miles and resolution survive.
	assert.Equal(t, 925.0, update.Financials.Miles)
	require.NotNil(t, update.Resolution)
}

func TestCoordinator_OverrideSurvivesInFlightResolution(t *testing.T) {
	release := make(chan routing.Resolution, 1)
	resolver := &fakeResolver{
		resolveFn: func(ctx context.Context, _ []routing.Location, _ routing.ResolveOptions) (routing.Resolution, error) {
			select {
			case res := <-release:
				return res, nil
			case <-ctx.Done():
				return routing.Resolution{}, ctx.Err()
			}
		},
	}
	c := newTestCoordinator(t, resolver)

	_, err := c.InsertStop(loaddomain.Stop{ID: "a", Address: loaddomain.Address{City: "Tulsa", State: "OK"}})
	require.NoError(t, err)
	waitForState(t, c, StateResolving)

	fin := c.OverrideMiles(500)
	assert.Equal(t, loaddomain.MilesManual, fin.MilesSource)

	release <- routing.Resolution{DistanceMiles: 925, DurationHours: 14.2}
	update := waitForState(t, c, StateResolved)

	// The resolution landed but the manual value holds.
	assert.Equal(t, 500.0, update.Financials.Miles)
	assert.Equal(t, loaddomain.MilesManual, update.Financials.MilesSource)
	require.NotNil(t, update.Financials.LastCalculatedMiles)
	assert.Equal(t, 925.0, *update.Financials.LastCalculatedMiles)
}

func TestCoordinator_RefreshRouteForcesImmediateResolve(t *testing.T) {
	resolver := &fakeResolver{}
	c := newTestCoordinator(t, resolver)

	c.OverrideMiles(500)
	c.RefreshRoute()

	update := waitForState(t, c, StateResolved)
	assert.Equal(t, loaddomain.MilesCalculated, update.Financials.MilesSource)
	assert.Equal(t, 925.0, update.Financials.Miles)

	require.Equal(t, 1, resolver.callCount())
	assert.True(t, resolver.lastCall().opts.ForceRefresh, "refresh must bypass the cache")
}

func TestCoordinator_ExternalResolution(t *testing.T) {
	resolver := &fakeResolver{}
	c := newTestCoordinator(t, resolver)

	c.ApplyExternalResolution(routing.Resolution{DistanceMiles: 880, DurationHours: 13.5, ResolvedAt: time.Now().UTC()})

	update := c.Snapshot()
	assert.Equal(t, StateResolved, update.State)
	assert.Equal(t, 880.0, update.Financials.Miles)
	assert.Equal(t, 0, resolver.callCount(), "external resolution needs no gateway call")
}

func TestCoordinator_ExternalResolutionIgnoredWhileResolving(t *testing.T) {
	release := make(chan routing.Resolution, 1)
	resolver := &fakeResolver{
		resolveFn: func(ctx context.Context, _ []routing.Location, _ routing.ResolveOptions) (routing.Resolution, error) {
			select {
			case res := <-release:
				return res, nil
			case <-ctx.Done():
				return routing.Resolution{}, ctx.Err()
			}
		},
	}
	c := newTestCoordinator(t, resolver)

	_, err := c.InsertStop(loaddomain.Stop{ID: "a", Address: loaddomain.Address{City: "Tulsa", State: "OK"}})
	require.NoError(t, err)
	waitForState(t, c, StateResolving)

	c.ApplyExternalResolution(routing.Resolution{DistanceMiles: 111, DurationHours: 2})
	assert.Equal(t, StateResolving, c.Snapshot().State)

	release <- routing.Resolution{DistanceMiles: 925, DurationHours: 14.2}
	update := waitForState(t, c, StateResolved)
	assert.Equal(t, 925.0, update.Financials.Miles)
}

func TestCoordinator_ExternalResolutionIgnoredWhilePending(t *testing.T) {
	resolver := &fakeResolver{}
	c := newTestCoordinatorDebounce(t, resolver, 200*time.Millisecond)

	_, err := c.InsertStop(loaddomain.Stop{ID: "a", Address: loaddomain.Address{City: "Memphis", State: "TN"}})
	require.NoError(t, err)
	require.Equal(t, StatePending, c.Snapshot().State)

	// An external figure for the pre-mutation route arrives inside the
	// debounce window. It must neither land nor cancel the scheduled
	// resolve for the newer sequence.
	c.ApplyExternalResolution(routing.Resolution{DistanceMiles: 640, DurationHours: 10})
	snap := c.Snapshot()
	assert.Equal(t, StatePending, snap.State)
	assert.NotEqual(t, 640.0, snap.Financials.Miles)

	update := waitForState(t, c, StateResolved)
	require.Equal(t, 1, resolver.callCount())
	require.Len(t, resolver.lastCall().locations, 3)
	assert.Equal(t, 925.0, update.Financials.Miles)
}

func TestCoordinator_InFlightResultSupersededByMutation(t *testing.T) {
	release := make(chan struct{})
	var callNum int
	var callMu sync.Mutex
	resolver := &fakeResolver{}
	resolver.resolveFn = func(ctx context.Context, _ []routing.Location, _ routing.ResolveOptions) (routing.Resolution, error) {
		callMu.Lock()
		callNum++
		n := callNum
		callMu.Unlock()
		if n == 1 {
			<-release
			return routing.Resolution{DistanceMiles: 111, DurationHours: 2}, nil
		}
		return routing.Resolution{DistanceMiles: 999, DurationHours: 15}, nil
	}
	c := newTestCoordinatorDebounce(t, resolver, 200*time.Millisecond)

	_, err := c.InsertStop(loaddomain.Stop{ID: "a", Address: loaddomain.Address{City: "Tulsa", State: "OK"}})
	require.NoError(t, err)
	waitForState(t, c, StateResolving)

	// A second mutation re-arms the debounce while the first request is in
	// flight; its result now describes a sequence that no longer exists.
	_, err = c.InsertStop(loaddomain.Stop{ID: "b", Address: loaddomain.Address{City: "Amarillo", State: "TX"}})
	require.NoError(t, err)
	require.Equal(t, StatePending, c.Snapshot().State)

	// Releasing the outdated result while pending must not land it.
	close(release)
	time.Sleep(30 * time.Millisecond)
	snap := c.Snapshot()
	assert.Equal(t, StatePending, snap.State)
	assert.NotEqual(t, 111.0, snap.Financials.Miles)

	update := waitForState(t, c, StateResolved)
	assert.Equal(t, 999.0, update.Financials.Miles)
	require.Len(t, resolver.lastCall().locations, 4)
}

func TestCoordinator_SubscribersSeeUpdates(t *testing.T) {
	resolver := &fakeResolver{}
	c := newTestCoordinator(t, resolver)

	ch, cancel := c.Subscribe()
	defer cancel()

	_, err := c.InsertStop(loaddomain.Stop{ID: "a", Address: loaddomain.Address{City: "Tulsa", State: "OK"}})
	require.NoError(t, err)

	// First broadcast is the pending state with the new stop already in it.
	select {
	case update := <-ch:
		assert.Equal(t, StatePending, update.State)
		assert.Len(t, update.Stops, 3)
	case <-time.After(time.Second):
		t.Fatal("no update received")
	}
}

func TestRegistry_SharesOneCoordinatorPerLoad(t *testing.T) {
	resolver := &fakeResolver{}
	reg := NewRegistry(resolver, Config{Debounce: 10 * time.Millisecond}, zap.NewNop())

	ld, err := loaddomain.NewLoad(
		"Acme Logistics",
		loaddomain.Address{City: "Chicago", State: "IL"},
		nil,
		loaddomain.Address{City: "Dallas", State: "TX"},
		nil,
		200000,
		150000,
		"",
	)
	require.NoError(t, err)

	seedCalls := 0
	seed := func() (loaddomain.StopSequence, loaddomain.FinancialSnapshot, error) {
		seedCalls++
		return loaddomain.BuildStopSequence(ld, nil), ld.Financials(), nil
	}

	c1, err := reg.GetOrCreate(ld.ID(), seed)
	require.NoError(t, err)
	c2, err := reg.GetOrCreate(ld.ID(), seed)
	require.NoError(t, err)

	assert.Same(t, c1, c2)
	assert.Equal(t, 1, seedCalls)

	reg.Release(ld.ID())
	_, ok := reg.Get(ld.ID())
	assert.False(t, ok)
}
