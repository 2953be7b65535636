package router

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/moonhyeonmin/aws-multi-region-dr-architecture/internal/config"
	"github.com/moonhyeonmin/aws-multi-region-dr-architecture/internal/handler"
	"github.com/moonhyeonmin/aws-multi-region-dr-architecture/internal/metrics"
	"github.com/moonhyeonmin/aws-multi-region-dr-architecture/internal/model"
	"github.com/moonhyeonmin/aws-multi-region-dr-architecture/internal/queue"
	"github.com/moonhyeonmin/aws-multi-region-dr-architecture/internal/repository/repotest"
)

type fakePublisher struct {
	mu     sync.Mutex
	events []queue.RecordCreatedEvent
	err    error
}

func (p *fakePublisher) PublishRecordCreated(_ context.Context, ev queue.RecordCreatedEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.events = append(p.events, ev)
	return nil
}

type testApp struct {
	e       *echo.Echo
	store   *repotest.MemStore
	metrics *metrics.Metrics
	h       *handler.Handler
}

func newApp(t *testing.T, region string, replica bool, events handler.EventPublisher) *testApp {
	t.Helper()
	store := repotest.NewMemStore()
	m := metrics.New()
	cfg := config.Config{Region: region, IsReplica: replica}
	h := handler.New(cfg, store, zap.NewNop(), m, events)
	h.Now = func() time.Time { return time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC) }
	return &testApp{e: New(h, nil), store: store, metrics: m, h: h}
}

func (a *testApp) do(method, path, body string, headers ...string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	rec := httptest.NewRecorder()
	a.e.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

func TestCreateThenListScenario(t *testing.T) {
	app := newApp(t, "us-east", false, nil)

	rec := app.do(http.MethodPost, "/api/data", `{"message":"ping"}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.JSONEq(t, `{"id":1,"message":"ping","region":"us-east","status":"created"}`, rec.Body.String())

	rec = app.do(http.MethodGet, "/api/data", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var list struct {
		Count  int            `json:"count"`
		Data   []model.Record `json:"data"`
		Region string         `json:"region"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	assert.Equal(t, 1, list.Count)
	assert.Equal(t, "us-east", list.Region)
	require.Len(t, list.Data, 1)
	assert.Equal(t, uint64(1), list.Data[0].ID)
	assert.Equal(t, "ping", list.Data[0].Message)
	assert.Equal(t, "us-east", list.Data[0].Region)
	require.NotNil(t, list.Data[0].CreatedAt)
	_, err := time.Parse(time.RFC3339, *list.Data[0].CreatedAt)
	assert.NoError(t, err)

	assert.Equal(t, app.store.Opened, app.store.Closed, "every session is released")
	assert.Equal(t, 1.0, testutil.ToFloat64(app.metrics.RecordsCreated.WithLabelValues("us-east")))
}

func TestCreateTruncatesLongMessage(t *testing.T) {
	app := newApp(t, "us-east", false, nil)
	long := strings.Repeat("x", 300)

	rec := app.do(http.MethodPost, "/api/data", `{"message":"`+long+`"}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, strings.Repeat("x", 255), decode(t, rec)["message"])

	recs := app.store.Records()
	require.Len(t, recs, 1)
	assert.Equal(t, strings.Repeat("x", 255), recs[0].Message)
}

func TestCreateOnReplicaIsForbidden(t *testing.T) {
	app := newApp(t, "us-west", true, nil)

	for _, body := range []string{`{"message":"x"}`, `{}`, `not json`, ""} {
		rec := app.do(http.MethodPost, "/api/data", body)
		assert.Equal(t, http.StatusForbidden, rec.Code)
		assert.JSONEq(t, `{"error":"Read replica - write operations not allowed"}`, rec.Body.String())
	}
	assert.Empty(t, app.store.Records())
	assert.Zero(t, app.store.Opened, "replica gate runs before any connection")
}

func TestCreateRequiresMessage(t *testing.T) {
	app := newApp(t, "us-east", false, nil)

	for _, body := range []string{"", `{}`, `{"msg":"hi"}`, `{"message":null}`, `{"message":""}`, `{"message":42}`, `{"message":`, `[]`} {
		rec := app.do(http.MethodPost, "/api/data", body)
		assert.Equal(t, http.StatusBadRequest, rec.Code, "body %q", body)
		assert.JSONEq(t, `{"error":"message field is required"}`, rec.Body.String())
	}
	assert.Empty(t, app.store.Records())
	assert.Zero(t, app.store.Opened)
}

func TestCreateRejectsTrailingData(t *testing.T) {
	app := newApp(t, "us-east", false, nil)

	for _, body := range []string{`{"message":"a"} trailing garbage`, `{"message":"a"}{"message":"b"}`, `{"message":"a"} 1`} {
		rec := app.do(http.MethodPost, "/api/data", body)
		assert.Equal(t, http.StatusBadRequest, rec.Code, "body %q", body)
	}
	assert.Empty(t, app.store.Records())
	assert.Zero(t, app.store.Opened)

	rec := app.do(http.MethodPost, "/api/data", "{\"message\":\"a\"}\n")
	assert.Equal(t, http.StatusCreated, rec.Code, "trailing whitespace is fine")
}

func TestCreateStorageFailures(t *testing.T) {
	app := newApp(t, "us-east", false, nil)

	app.store.OpenErr = errors.New("dial tcp: i/o timeout")
	rec := app.do(http.MethodPost, "/api/data", `{"message":"ping"}`)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.JSONEq(t, `{"error":"Database connection failed"}`, rec.Body.String())
	assert.Equal(t, 1.0, testutil.ToFloat64(app.metrics.DBConnectFailures))

	app.store.OpenErr = nil
	app.store.InsertErr = errors.New("insert record: Error 1290: read-only")
	rec = app.do(http.MethodPost, "/api/data", `{"message":"ping"}`)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.JSONEq(t, `{"error":"insert record: Error 1290: read-only"}`, rec.Body.String())
	assert.Equal(t, app.store.Opened, app.store.Closed)
}

func TestListReturnsNewestHundred(t *testing.T) {
	app := newApp(t, "us-east", false, nil)
	for i := 0; i < 150; i++ {
		require.Equal(t, http.StatusCreated, app.do(http.MethodPost, "/api/data", `{"message":"m"}`).Code)
	}

	rec := app.do(http.MethodGet, "/api/data", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var list struct {
		Count int            `json:"count"`
		Data  []model.Record `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	assert.Equal(t, 100, list.Count)
	require.Len(t, list.Data, 100)
	assert.Equal(t, uint64(150), list.Data[0].ID)
	assert.Equal(t, uint64(51), list.Data[99].ID)
	for i := 1; i < len(list.Data); i++ {
		assert.GreaterOrEqual(t, *list.Data[i-1].CreatedAt, *list.Data[i].CreatedAt)
	}
}

func TestListEmptyIsArray(t *testing.T) {
	app := newApp(t, "eu-central", true, nil)
	rec := app.do(http.MethodGet, "/api/data", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"count":0,"data":[],"region":"eu-central"}`, rec.Body.String())
}

func TestListStorageFailures(t *testing.T) {
	app := newApp(t, "us-east", false, nil)

	app.store.OpenErr = errors.New("refused")
	rec := app.do(http.MethodGet, "/api/data", "")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.JSONEq(t, `{"error":"Database connection failed"}`, rec.Body.String())

	app.store.OpenErr = nil
	app.store.ListErr = errors.New("list records: Table 'testdb.test_data' doesn't exist")
	rec = app.do(http.MethodGet, "/api/data", "")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "list records: Table 'testdb.test_data' doesn't exist", decode(t, rec)["error"])
	assert.Equal(t, app.store.Opened, app.store.Closed)
}

func TestHealth(t *testing.T) {
	app := newApp(t, "us-east", false, nil)

	rec := app.do(http.MethodGet, "/health", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"healthy","region":"us-east","is_replica":false,"timestamp":"2024-06-01T12:00:00Z"}`, rec.Body.String())

	app.store.PingErr = errors.New("Lost connection to MySQL server during query")
	rec = app.do(http.MethodGet, "/health", "")
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, "unhealthy", body["status"])
	assert.Equal(t, "us-east", body["region"])
	assert.Equal(t, "Lost connection to MySQL server during query", body["error"])

	app.store.OpenErr = errors.New("refused")
	rec = app.do(http.MethodGet, "/health", "")
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
	body = decode(t, rec)
	assert.Equal(t, "us-east", body["region"])
	assert.Equal(t, "Database connection failed", body["error"])
	assert.NotContains(t, body, "is_replica")

	assert.Equal(t, app.store.Opened, app.store.Closed)
}

func TestReplicationStatusOnPrimary(t *testing.T) {
	app := newApp(t, "us-east", false, nil)
	app.store.OpenErr = errors.New("must not be reached")

	rec := app.do(http.MethodGet, "/api/replication-status", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.JSONEq(t, `{"error":"This endpoint is only available on replica instances"}`, rec.Body.String())
	assert.Zero(t, testutil.ToFloat64(app.metrics.DBConnectFailures))
}

func TestReplicationStatusOnReplica(t *testing.T) {
	app := newApp(t, "us-west", true, nil)
	yes, host := "Yes", "primary.us-east"
	lag := int64(0)
	app.store.Status = &model.ReplicationStatus{IORunning: &yes, SQLRunning: &yes, SecondsBehindMaster: &lag, MasterHost: &host}

	rec := app.do(http.MethodGet, "/api/replication-status", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{
		"is_replica": true,
		"slave_io_running": "Yes",
		"slave_sql_running": "Yes",
		"seconds_behind_master": 0,
		"master_host": "primary.us-east",
		"region": "us-west"
	}`, rec.Body.String())
}

func TestReplicationStatusVariants(t *testing.T) {
	app := newApp(t, "us-west", true, nil)

	rec := app.do(http.MethodGet, "/api/replication-status", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"is_replica":true,"status":"No replication status found","region":"us-west"}`, rec.Body.String())

	app.store.StatusErr = errors.New("replication status: Access denied")
	rec = app.do(http.MethodGet, "/api/replication-status", "")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.JSONEq(t, `{"error":"replication status: Access denied"}`, rec.Body.String())

	app.store.OpenErr = errors.New("refused")
	rec = app.do(http.MethodGet, "/api/replication-status", "")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.JSONEq(t, `{"error":"Database connection failed"}`, rec.Body.String())

	assert.Equal(t, app.store.Opened, app.store.Closed)
}

func TestIndex(t *testing.T) {
	app := newApp(t, "ap-northeast-2", true, nil)

	rec := app.do(http.MethodGet, "/", "", echo.HeaderAccept, echo.MIMEApplicationJSON)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"region":"ap-northeast-2","is_replica":true,"db_status":"connected"}`, rec.Body.String())

	rec = app.do(http.MethodGet, "/", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get(echo.HeaderContentType), "text/html")
	assert.Contains(t, rec.Body.String(), "Region: ap-northeast-2")
	assert.Contains(t, rec.Body.String(), "Read replica")

	app.store.OpenErr = errors.New("refused")
	rec = app.do(http.MethodGet, "/", "", echo.HeaderAccept, echo.MIMEApplicationJSON)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "disconnected", decode(t, rec)["db_status"])
	assert.Equal(t, app.store.Opened, app.store.Closed)
}

func TestCreatePublishesEvent(t *testing.T) {
	pub := &fakePublisher{}
	app := newApp(t, "us-east", false, pub)

	require.Equal(t, http.StatusCreated, app.do(http.MethodPost, "/api/data", `{"message":"ping"}`).Code)
	require.Len(t, pub.events, 1)
	assert.Equal(t, queue.RecordCreatedEvent{ID: 1, Message: "ping", Region: "us-east", PublishedAt: "2024-06-01T12:00:00Z"}, pub.events[0])
}

func TestCreateSurvivesPublishFailure(t *testing.T) {
	pub := &fakePublisher{err: errors.New("broker down")}
	app := newApp(t, "us-east", false, pub)

	rec := app.do(http.MethodPost, "/api/data", `{"message":"ping"}`)
	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.Len(t, app.store.Records(), 1)
	assert.Equal(t, 1.0, testutil.ToFloat64(app.metrics.EventPublishErrors))
}

func TestMetricsEndpoint(t *testing.T) {
	app := newApp(t, "us-east", false, nil)
	app.do(http.MethodPost, "/api/data", `{"message":"ping"}`)

	rec := app.do(http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `records_created_total{region="us-east"} 1`)
	assert.Contains(t, rec.Body.String(), `http_requests_total{method="POST",route="/api/data",status="201"} 1`)
}

func TestRequestIDHeader(t *testing.T) {
	app := newApp(t, "us-east", false, nil)
	rec := app.do(http.MethodGet, "/health", "")
	assert.Len(t, rec.Header().Get(echo.HeaderXRequestID), 36)
}

func TestLimiterAppliesToAPIOnly(t *testing.T) {
	store := repotest.NewMemStore()
	h := handler.New(config.Config{Region: "us-east"}, store, zap.NewNop(), metrics.New(), nil)
	deny := func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			return c.JSON(http.StatusTooManyRequests, echo.Map{"error": "too_many_requests"})
		}
	}
	e := New(h, deny)

	for path, want := range map[string]int{"/health": 200, "/api/data": 429, "/api/replication-status": 429} {
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		assert.Equal(t, want, rec.Code, path)
	}
}

func TestPanicIsCountedAndLoggedAsError(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	m := metrics.New()
	h := handler.New(config.Config{Region: "us-east"}, repotest.NewMemStore(), zap.New(core), m, nil)
	e := New(h, nil)
	e.GET("/panic", func(c echo.Context) error { panic("boom") })

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/panic", nil))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.HTTPRequests.WithLabelValues("GET", "/panic", "500")))
	assert.Equal(t, 1, logs.FilterMessage("panic recovered").Len())

	reqLogs := logs.FilterMessage("request").AllUntimed()
	require.Len(t, reqLogs, 1)
	assert.Equal(t, zapcore.ErrorLevel, reqLogs[0].Level)
	assert.Equal(t, 500, int(reqLogs[0].ContextMap()["status"].(int64)))
	assert.Contains(t, reqLogs[0].ContextMap(), "error")
}
