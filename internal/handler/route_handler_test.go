package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/freightline/service-loads/internal/application"
	"github.com/freightline/service-loads/internal/application/recalc"
	"github.com/freightline/service-loads/internal/domain/facility"
	loaddomain "github.com/freightline/service-loads/internal/domain/load"
	"github.com/freightline/service-loads/internal/domain/routing"
	"github.com/freightline/service-loads/pkg/domain"
)

type fakeLoadRepo struct {
	load          *loaddomain.Load
	findByIDCalls int
}

func (f *fakeLoadRepo) FindByID(_ context.Context, id uuid.UUID) (*loaddomain.Load, error) {
	f.findByIDCalls++
	if f.load != nil && f.load.ID() == id {
		return f.load, nil
	}
	return nil, domain.NewNotFoundError("load", id.String())
}

func (f *fakeLoadRepo) FindByReference(_ context.Context, ref string) (*loaddomain.Load, error) {
	if f.load != nil && f.load.ReferenceNumber() == ref {
		return f.load, nil
	}
	return nil, domain.NewNotFoundError("load", ref)
}

func (f *fakeLoadRepo) List(context.Context, loaddomain.LoadStatus, int, int) ([]*loaddomain.Load, int64, error) {
	return nil, 0, nil
}

func (f *fakeLoadRepo) Save(context.Context, *loaddomain.Load) error   { return nil }
func (f *fakeLoadRepo) Update(context.Context, *loaddomain.Load) error { return nil }

type fakeStopRepo struct {
	saved []loaddomain.Stop
}

func (f *fakeStopRepo) ListByLoadID(context.Context, uuid.UUID) ([]loaddomain.Stop, error) {
	return nil, nil
}

func (f *fakeStopRepo) Save(_ context.Context, st loaddomain.Stop) error {
	f.saved = append(f.saved, st)
	return nil
}

func (f *fakeStopRepo) Update(context.Context, loaddomain.Stop) error        { return nil }
func (f *fakeStopRepo) Delete(context.Context, uuid.UUID, string) error      { return nil }
func (f *fakeStopRepo) UpdateSequences(context.Context, uuid.UUID, map[string]int) error {
	return nil
}

type fakeFacilityRepo struct{}

func (fakeFacilityRepo) FindByID(_ context.Context, id uuid.UUID) (*facility.Facility, error) {
	return nil, domain.NewNotFoundError("facility", id.String())
}

func (fakeFacilityRepo) ListActive(context.Context, int, int) ([]*facility.Facility, int64, error) {
	return nil, 0, nil
}

func (fakeFacilityRepo) Save(context.Context, *facility.Facility) error   { return nil }
func (fakeFacilityRepo) Update(context.Context, *facility.Facility) error { return nil }

type stubResolver struct{}

func (stubResolver) Resolve(context.Context, []routing.Location, routing.ResolveOptions) (routing.Resolution, error) {
	return routing.Resolution{DistanceMiles: 925, DurationHours: 14.2, ResolvedAt: time.Now().UTC()}, nil
}

type surfaceFixture struct {
	router *gin.Engine
	load   *loaddomain.Load
	loads  *fakeLoadRepo
	stops  *fakeStopRepo
}

// newSurfaceFixture wires the handlers against fake persistence with a
// debounce long enough that no resolve fires during the test.
func newSurfaceFixture(t *testing.T) *surfaceFixture {
	t.Helper()
	gin.SetMode(gin.TestMode)

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

	loads := &fakeLoadRepo{load: ld}
	stops := &fakeStopRepo{}
	registry := recalc.NewRegistry(stubResolver{}, recalc.Config{Debounce: time.Hour}, zap.NewNop())
	service := application.NewLoadService(loads, stops, fakeFacilityRepo{}, registry, nil, zap.NewNop())

	router := gin.New()
	NewLoadHandler(service).RegisterRoutes(&router.RouterGroup)
	NewRouteHandler(service).RegisterRoutes(&router.RouterGroup)

	return &surfaceFixture{router: router, load: ld, loads: loads, stops: stops}
}

func (fx *surfaceFixture) do(t *testing.T, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	fx.router.ServeHTTP(w, req)
	return w
}

func TestRouteSurfaces_ShareOneCoordinator(t *testing.T) {
	fx := newSurfaceFixture(t)
	id := fx.load.ID().String()

	// The wizard's route step adds a stop.
	w := fx.do(t, http.MethodPost, "/api/v1/wizard/"+id+"/route/stops",
		map[string]string{"city": "Tulsa", "state": "OK"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	require.Len(t, fx.stops.saved, 1)

	// The slide-over reads the coordinator the wizard just mutated.
	w = fx.do(t, http.MethodGet, "/api/v1/panel/"+id+"/route", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var envelope struct {
		Data application.RouteStateDTO `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &envelope))
	require.Len(t, envelope.Data.Stops, 3)
	assert.Equal(t, "Tulsa", envelope.Data.Stops[1].Address.City)
	assert.Equal(t, "pending", envelope.Data.State)

	// The detail page renders the same view.
	w = fx.do(t, http.MethodGet, "/api/v1/loads/"+id+"/route", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var detail struct {
		Data application.RouteStateDTO `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &detail))
	assert.Equal(t, envelope.Data.Stops, detail.Data.Stops)

	// All three surfaces seeded exactly one coordinator.
	assert.Equal(t, 1, fx.loads.findByIDCalls)
}

func TestGetLoadByReference(t *testing.T) {
	fx := newSurfaceFixture(t)

	w := fx.do(t, http.MethodGet, "/api/v1/loads/reference/"+fx.load.ReferenceNumber(), nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var envelope struct {
		Data application.LoadDTO `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &envelope))
	assert.Equal(t, fx.load.ID(), envelope.Data.ID)
	assert.Equal(t, fx.load.ReferenceNumber(), envelope.Data.ReferenceNumber)

	w = fx.do(t, http.MethodGet, "/api/v1/loads/reference/LD-ZZZZZZ", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}
