//go:build integration

package main_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/freightline/service-loads/internal/application"
	loadEvents "github.com/freightline/service-loads/internal/events"
)

// TestMapRouteLoaded_UpdatesLoadFinancials verifies that when the map
// rendering service reports a drawn route on map.events, the loads service
// folds the distance into the load's financials, persists it, and publishes
// the updated figures.
func TestMapRouteLoaded_UpdatesLoadFinancials(t *testing.T) {
	infra := setupContainers(t)
	defer infra.Cleanup()

	gateway := newFakeGateway(t, 925, 14.2)
	stack := setupLoadStack(t, infra.DB, infra.KafkaBrokers, gateway.URL)
	defer stack.Cleanup()
	defer func() { _ = stack.Consumer.Close() }()

	loadID := uuid.New()
	seedLoad(t, infra.DB, loadID)

	// Start the consumer.
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = stack.Consumer.Start(ctx) }()
	time.Sleep(3 * time.Second) // Wait for consumer group join.

	// Publish the map service's route notification.
	evt := loadEvents.MapRouteLoadedEvent{
		LoadID:        loadID,
		DistanceMiles: 880,
		DurationHours: 13.5,
		Geometry:      "map-geometry",
		OccurredAt:    time.Now().UTC(),
	}
	publishTestEvent(t, infra.KafkaBrokers, loadEvents.TopicMapEvents,
		"service-maps", loadEvents.MapRouteLoaded, evt)

	// Assert: the load row picks up the reported miles.
	model := waitForLoadMiles(t, infra.DB, loadID, 880, 20*time.Second)
	assert.Equal(t, "calculated", model.MilesSource)
	require.NotNil(t, model.LastCalculatedMiles)
	assert.Equal(t, 880.0, *model.LastCalculatedMiles)

	// Assert: LoadFinancialsUpdated on load.events with the derived rate.
	ce := consumeOneEvent(t, infra.KafkaBrokers, loadEvents.TopicLoadEvents,
		loadEvents.LoadFinancialsUpdated, 20*time.Second)

	var updated loadEvents.LoadFinancialsUpdatedEvent
	require.NoError(t, ce.ParseData(&updated))
	assert.Equal(t, loadID, updated.LoadID)
	assert.Equal(t, 880.0, updated.Miles)
	require.NotNil(t, updated.RatePerMile)
	assert.InDelta(t, 2.27, *updated.RatePerMile, 0.01)
}

// TestAddStop_TriggersResolutionAndPersists verifies the full mutation cycle:
// adding a stop through the service debounces, calls the routing gateway, and
// persists both the stop row and the recalculated miles.
func TestAddStop_TriggersResolutionAndPersists(t *testing.T) {
	infra := setupContainers(t)
	defer infra.Cleanup()

	gateway := newFakeGateway(t, 1042, 16.1)
	stack := setupLoadStack(t, infra.DB, infra.KafkaBrokers, gateway.URL)
	defer stack.Cleanup()

	loadID := uuid.New()
	seedLoad(t, infra.DB, loadID)

	ctx := context.Background()
	stop, err := stack.Service.AddStop(ctx, loadID, application.StopInput{
		City:  "Tulsa",
		State: "OK",
	})
	require.NoError(t, err)
	assert.Equal(t, 1, stop.Sequence)

	// Debounce fires, the gateway resolves, the hook persists.
	model := waitForLoadMiles(t, infra.DB, loadID, 1042, 20*time.Second)
	assert.Equal(t, "calculated", model.MilesSource)

	// The stop row landed too.
	state, err := stack.Service.RouteState(ctx, loadID)
	require.NoError(t, err)
	require.Len(t, state.Stops, 3)
	assert.Equal(t, "Tulsa", state.Stops[1].Address.City)
	assert.Equal(t, "resolved", state.State)

	// RouteResolved published on route.events.
	ce := consumeOneEvent(t, infra.KafkaBrokers, loadEvents.TopicRouteEvents,
		loadEvents.RouteResolved, 20*time.Second)

	var resolved loadEvents.RouteResolvedEvent
	require.NoError(t, ce.ParseData(&resolved))
	assert.Equal(t, loadID, resolved.LoadID)
	assert.Equal(t, 1042.0, resolved.DistanceMiles)
	assert.Equal(t, 3, resolved.StopCount)
}
