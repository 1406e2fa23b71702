package sizing

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/recsizing/config"
	"github.com/kilianp07/recsizing/core/assembler"
	"github.com/kilianp07/recsizing/core/datasource"
	"github.com/kilianp07/recsizing/core/inputs"
	"github.com/kilianp07/recsizing/core/model"
	"github.com/kilianp07/recsizing/core/orderid"
	"github.com/kilianp07/recsizing/core/reference"
	"github.com/kilianp07/recsizing/core/runner"
	"github.com/kilianp07/recsizing/core/solver/lpengine"
	"github.com/kilianp07/recsizing/core/store"
	"github.com/kilianp07/recsizing/infra/logger"
	"github.com/kilianp07/recsizing/internal/fixture"
)

func init() { gin.SetMode(gin.TestMode) }

type server struct {
	router *gin.Engine
	runner *runner.Runner
	store  *store.MemoryStore
}

func newServer(t *testing.T, ds datasource.Dataset) server {
	t.Helper()
	tbl, err := reference.Default()
	require.NoError(t, err)
	s := store.NewMemoryStore()
	r, err := runner.New(config.JobsConfig{}, runner.Deps{
		Store:   s,
		Source:  datasource.NewMemorySource(ds),
		Builder: inputs.NewBuilder(tbl),
		Engine:  lpengine.New(lpengine.Config{}),
		Logger:  logger.NopLogger{},
	})
	require.NoError(t, err)
	h := NewHandler(r, assembler.New(s, nil, logger.NopLogger{}), logger.NopLogger{})
	return server{router: NewRouter(h, logger.NopLogger{}), runner: r, store: s}
}

func (s server) do(method, path string, body any) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	s.router.ServeHTTP(rr, req)
	return rr
}

func plainBody(meters ...string) model.PlainPayload {
	p := model.PlainPayload{
		StartDatetime: fixture.Start,
		EndDatetime:   fixture.End(1),
		DatasetOrigin: model.OriginSEL,
		MeterIDs:      meters,
	}
	for _, id := range meters {
		p.SizingParamsByMeter = append(p.SizingParamsByMeter, fixture.Params(id))
	}
	return p
}

func decode[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &out), rr.Body.String())
	return out
}

func TestSubmitAndPoll(t *testing.T) {
	s := newServer(t, fixture.Dataset(1, "A", "B"))

	rr := s.do(http.MethodPost, "/sizing", plainBody("A", "B"))
	require.Equal(t, http.StatusAccepted, rr.Code, rr.Body.String())
	accepted := decode[OrderResponse](t, rr)
	assert.Equal(t, MsgAccepted, accepted.Message)
	assert.Len(t, accepted.OrderID, 45)

	s.runner.Wait()
	rr = s.do(http.MethodGet, "/get_sizing/"+accepted.OrderID, nil)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	res := decode[assembler.Response](t, rr)
	assert.Equal(t, accepted.OrderID, res.OrderID)
	assert.Equal(t, model.StatusOptimal, res.MILPStatus)
	assert.Len(t, res.MemberCosts, 2)
	assert.Len(t, res.MeterOperationOutputs, 2*96)
	assert.NotNil(t, res.MeterOperationOutputs[0].Instant)
}

func TestSubmitShared(t *testing.T) {
	s := newServer(t, fixture.Dataset(1, "A", "B", "S"))
	body := model.SharedPayload{
		PlainPayload:   plainBody("A", "B"),
		SharedMeterIDs: []string{"S"},
		Ownerships: []model.Ownership{
			{SharedMeterID: "S", MeterID: "A", Percentage: 60},
			{SharedMeterID: "S", MeterID: "B", Percentage: 40},
		},
		SizingParamsForSharedMeter: []model.SizingParams{fixture.Params("S")},
	}
	rr := s.do(http.MethodPost, "/sizing_with_shared_meter", body)
	require.Equal(t, http.StatusAccepted, rr.Code, rr.Body.String())
	id := decode[OrderResponse](t, rr).OrderID

	s.runner.Wait()
	rr = s.do(http.MethodGet, "/get_sizing/"+id, nil)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	res := decode[assembler.Response](t, rr)
	assert.Len(t, res.MeterInvestmentOutputs, 3)
}

func TestSubmitValidation(t *testing.T) {
	s := newServer(t, datasource.Dataset{})

	rr := s.do(http.MethodPost, "/sizing", map[string]any{"meter_ids": []string{"A"}})
	require.Equal(t, http.StatusBadRequest, rr.Code)
	errs := decode[ErrorResponse](t, rr)
	assert.Equal(t, MsgInvalidInput, errs.Message)
	assert.NotEmpty(t, errs.Errors)

	body := plainBody("A")
	body.EndDatetime = body.StartDatetime
	rr = s.do(http.MethodPost, "/sizing", body)
	require.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Contains(t, decode[ErrorResponse](t, rr).Errors[0], "end_datetime <= start_datetime")

	shared := model.SharedPayload{
		PlainPayload:   plainBody("A", "B"),
		SharedMeterIDs: []string{"S"},
		Ownerships: []model.Ownership{
			{SharedMeterID: "S", MeterID: "A", Percentage: 60},
			{SharedMeterID: "S", MeterID: "B", Percentage: 39.9},
		},
	}
	rr = s.do(http.MethodPost, "/sizing_with_shared_meter", shared)
	require.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Contains(t, rr.Body.String(), "must equal 100%")
}

func TestPollStates(t *testing.T) {
	s := newServer(t, datasource.Dataset{})
	ctx := context.Background()

	rr := s.do(http.MethodGet, "/get_sizing/unknown", nil)
	assert.Equal(t, http.StatusNotFound, rr.Code)
	assert.Equal(t, MsgNotFound, decode[OrderResponse](t, rr).Message)

	pending := strings.Repeat("p", orderid.Length)
	require.NoError(t, s.store.CreateOrder(ctx, pending, false))
	rr = s.do(http.MethodGet, "/get_sizing/"+pending, nil)
	assert.Equal(t, http.StatusAccepted, rr.Code)
	assert.Equal(t, OrderResponse{Message: MsgPending, OrderID: pending}, decode[OrderResponse](t, rr))

	cases := []struct {
		code   model.ErrorCode
		status int
	}{
		{model.CodeMissingEntities, http.StatusPreconditionFailed},
		{model.CodeMissingDataPoints, http.StatusUnprocessableEntity},
		{model.CodeInvalidInput, http.StatusBadRequest},
		{model.CodeSolverNotOptimal, http.StatusFailedDependency},
		{model.CodeInternal, http.StatusInternalServerError},
		{model.CodeSolverTimeout, http.StatusGatewayTimeout},
	}
	for _, tc := range cases {
		id := strings.Repeat("o", orderid.Length-len(tc.code)) + string(tc.code)
		require.NoError(t, s.store.CreateOrder(ctx, id, false))
		require.NoError(t, s.store.MarkError(ctx, id, tc.code, "failed "+string(tc.code)))
		rr := s.do(http.MethodGet, "/get_sizing/"+id, nil)
		assert.Equal(t, tc.status, rr.Code, string(tc.code))
		assert.Equal(t, "failed "+string(tc.code), decode[OrderResponse](t, rr).Message)
	}
}

type countingFinder struct{ calls int }

func (f *countingFinder) Lookup(context.Context, string) (assembler.Lookup, error) {
	f.calls++
	return assembler.Lookup{}, store.ErrOrderNotFound
}

func TestPollMalformedIDSkipsStore(t *testing.T) {
	f := &countingFinder{}
	router := NewRouter(NewHandler(nil, f, logger.NopLogger{}), logger.NopLogger{})
	for _, id := range []string{"short", strings.Repeat("a", orderid.Length+1), strings.Repeat("a", orderid.Length-1) + "."} {
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/get_sizing/"+id, nil))
		assert.Equal(t, http.StatusNotFound, rr.Code, id)
	}
	assert.Zero(t, f.calls)

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/get_sizing/"+strings.Repeat("a", orderid.Length), nil))
	assert.Equal(t, http.StatusNotFound, rr.Code)
	assert.Equal(t, 1, f.calls)
}

func TestMissingMeterIsPreconditionFailed(t *testing.T) {
	s := newServer(t, fixture.Dataset(1, "A"))
	rr := s.do(http.MethodPost, "/sizing", plainBody("A", "M1"))
	require.Equal(t, http.StatusAccepted, rr.Code)
	id := decode[OrderResponse](t, rr).OrderID
	s.runner.Wait()

	rr = s.do(http.MethodGet, "/get_sizing/"+id, nil)
	require.Equal(t, http.StatusPreconditionFailed, rr.Code)
	assert.Equal(t, `One or more meter IDs not found on registry system: ["M1"]`, decode[OrderResponse](t, rr).Message)
}

func TestExport(t *testing.T) {
	s := newServer(t, fixture.Dataset(1, "A"))
	rr := s.do(http.MethodPost, "/sizing", plainBody("A"))
	require.Equal(t, http.StatusAccepted, rr.Code)
	id := decode[OrderResponse](t, rr).OrderID
	s.runner.Wait()

	rr = s.do(http.MethodGet, "/get_sizing/"+id+"/export?format=csv", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Header().Get("Content-Type"), "text/csv")
	recs, err := csv.NewReader(rr.Body).ReadAll()
	require.NoError(t, err)
	assert.Len(t, recs, 1+96)
	assert.Equal(t, "2024-05-16T00:00:00Z", recs[1][1])

	rr = s.do(http.MethodGet, "/get_sizing/"+id+"/export?format=xlsx", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.True(t, bytes.HasPrefix(rr.Body.Bytes(), []byte("PK")))

	rr = s.do(http.MethodGet, "/get_sizing/"+id+"/export?format=pdf", nil)
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = s.do(http.MethodGet, "/get_sizing/unknown/export", nil)
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestHealthAndMetrics(t *testing.T) {
	s := newServer(t, datasource.Dataset{})
	rr := s.do(http.MethodGet, "/healthz", nil)
	assert.Equal(t, http.StatusOK, rr.Code)
	rr = s.do(http.MethodGet, "/metrics", nil)
	assert.Equal(t, http.StatusOK, rr.Code)
}

func TestServeShutsDownOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	cfg := config.ServerConfig{Address: "127.0.0.1:0"}
	cfg.SetDefaults()
	go func() { done <- Serve(ctx, cfg, http.NotFoundHandler(), logger.NopLogger{}) }()
	time.Sleep(50 * time.Millisecond)
	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop")
	}
}
