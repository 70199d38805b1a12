package handler

import (
	"bufio"
	"encoding/json"
	"errors"
	"mime"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/alicebob/miniredis/v2"
	"github.com/go-sql-driver/mysql"
	"github.com/stretchr/testify/require"
	"github.com/xeipuuv/gojsonschema"
	"github.com/zeromicro/go-zero/rest/httpx"
	"github.com/zeromicro/go-zero/rest/pathvar"

	"liquidations-api/internal/cache"
	"liquidations-api/internal/config"
	"liquidations-api/internal/errorx"
	"liquidations-api/internal/svc"
	"liquidations-api/pkg/confkit"
)

const (
	hourMs  = int64(3_600_000)
	startMs = int64(1609459200000)
	endMs   = int64(1609462800000)
)

var orderColumns = []string{
	"symbol", "side", "order_type", "time_in_force", "original_quantity", "price",
	"average_price", "order_status", "order_last_filled_quantity",
	"order_filled_accumulated_quantity", "order_trade_time",
}

func TestMain(m *testing.M) {
	httpx.SetErrorHandlerCtx(errorx.Handler)
	os.Exit(m.Run())
}

type testEnv struct {
	svcCtx *svc.ServiceContext
	mock   sqlmock.Sqlmock
	redis  *miniredis.Miniredis
}

func testConfig() config.Config {
	var c config.Config
	c.DataSource.Driver = "mysql"
	c.Query.TimeoutSeconds = 5
	c.Query.LongTimeoutSeconds = 5
	c.Liquidations.Table = "binance_liqs"
	c.Liquidations.Notional = "computed"
	c.Liquidations.Aggregation = "database"
	return c
}

func newEnv(t *testing.T) *testEnv {
	t.Helper()
	return newEnvWith(t, false)
}

func newEnvWith(t *testing.T, monitorPings bool) *testEnv {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(monitorPings))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	mr := miniredis.RunT(t)
	store := cache.NewStore(cache.Options{Addr: mr.Addr(), RetryInterval: time.Hour})
	t.Cleanup(func() { _ = store.Close() })

	svcCtx, err := svc.NewWithDB(testConfig(), db, store, cache.DefaultPolicy())
	require.NoError(t, err)
	return &testEnv{svcCtx: svcCtx, mock: mock, redis: mr}
}

func serve(h http.HandlerFunc, method, target string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, nil)
	rec := httptest.NewRecorder()
	h(rec, req)
	return rec
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) errorx.Body {
	t.Helper()
	var body errorx.Body
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body), rec.Body.String())
	return body
}

func requireSchema(t *testing.T, schemaFile string, raw []byte) {
	t.Helper()
	schema := gojsonschema.NewReferenceLoader("file://" + confkit.MustProjectPath("schemas/"+schemaFile))
	result, err := gojsonschema.Validate(schema, gojsonschema.NewBytesLoader(raw))
	require.NoError(t, err)
	require.True(t, result.Valid(), "%v", result.Errors())
}

func TestSymbolsHandlerServesAndCaches(t *testing.T) {
	env := newEnv(t)
	env.mock.ExpectQuery("SELECT DISTINCT symbol").
		WithArgs("[0-9]+$").
		WillReturnRows(sqlmock.NewRows([]string{"symbol"}).AddRow("BTCUSDT").AddRow("ETHUSDT"))

	h := GetSymbolsHandler(env.svcCtx)
	for i := 0; i < 2; i++ {
		rec := serve(h, http.MethodGet, "/api/symbols")
		require.Equal(t, http.StatusOK, rec.Code)
		require.JSONEq(t, `["BTCUSDT","ETHUSDT"]`, rec.Body.String())
	}
	require.NoError(t, env.mock.ExpectationsWereMet())
	require.True(t, env.redis.Exists(cache.SymbolsKey()))
}

func TestSymbolsHandlerEmptyIsNotAnError(t *testing.T) {
	env := newEnv(t)
	env.mock.ExpectQuery("SELECT DISTINCT symbol").WillReturnRows(sqlmock.NewRows([]string{"symbol"}))

	rec := serve(GetSymbolsHandler(env.svcCtx), http.MethodGet, "/api/symbols")
	require.Equal(t, http.StatusOK, rec.Code)
	require.JSONEq(t, `[]`, rec.Body.String())
}

func expectBuckets(mock sqlmock.Sqlmock) {
	mock.ExpectQuery("SELECT symbol,").
		WillReturnRows(sqlmock.NewRows([]string{"symbol", "start_timestamp", "end_timestamp", "side", "cumulated_usd_size"}).
			AddRow("BTCUSDT", startMs, startMs+hourMs, "buy", 100.0).
			AddRow("BTCUSDT", startMs, startMs+hourMs, "sell", 250.5))
}

func TestLiquidationsHandlerReturnsBuckets(t *testing.T) {
	env := newEnv(t)
	expectBuckets(env.mock)

	rec := serve(GetLiquidationsHandler(env.svcCtx), http.MethodGet,
		"/api/liquidations?symbol=BTCUSDT&timeframe=1h&start_timestamp=1609459200000&end_timestamp=1609462800000")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	requireSchema(t, "liquidations.schema.json", rec.Body.Bytes())

	var got []map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	require.Len(t, got, 2)
	for _, b := range got {
		require.IsType(t, float64(0), b["cumulated_usd_size"])
	}
	require.Equal(t, "buy", got[0]["side"])
	require.Equal(t, "2021-01-01T00:00:00Z", got[0]["timestamp_iso"])
	require.True(t, env.redis.Exists(cache.LiquidationsKey("btcusdt", "1h", startMs, endMs)))
}

func TestLiquidationsHandlerValidation(t *testing.T) {
	env := newEnv(t)
	h := GetLiquidationsHandler(env.svcCtx)

	cases := map[string]string{
		"/api/liquidations?symbol=BTCUSDT&timeframe=1x&start_timestamp=1&end_timestamp=2":  "InvalidTimeframe",
		"/api/liquidations?symbol=BTCUSDT&timeframe=1h&start_timestamp=abc&end_timestamp=2": "InvalidTimestamp",
		"/api/liquidations?symbol=BTCUSDT&timeframe=1h&start_timestamp=-1&end_timestamp=2":  "NonNegativeRequired",
		"/api/liquidations?symbol=BTCUSDT&timeframe=1h&start_timestamp=5&end_timestamp=2":   "RangeOrderInvalid",
		"/api/liquidations?timeframe=1h&start_timestamp=1&end_timestamp=2":                  "MissingSymbol",
	}
	for target, kind := range cases {
		rec := serve(h, http.MethodGet, target)
		require.Equal(t, http.StatusBadRequest, rec.Code, target)
		require.Equal(t, kind, decodeError(t, rec).Error, target)
	}
	require.NoError(t, env.mock.ExpectationsWereMet())
}

func TestLiquidationsHandlerEmptyIsNotFoundAndUncached(t *testing.T) {
	env := newEnv(t)
	env.mock.ExpectQuery("SELECT symbol,").
		WillReturnRows(sqlmock.NewRows([]string{"symbol", "start_timestamp", "end_timestamp", "side", "cumulated_usd_size"}))

	rec := serve(GetLiquidationsHandler(env.svcCtx), http.MethodGet,
		"/api/liquidations?symbol=BTCUSDT&timeframe=1h&start_timestamp=1609459200000&end_timestamp=1609462800000")
	require.Equal(t, http.StatusNotFound, rec.Code)
	body := decodeError(t, rec)
	require.Equal(t, errorx.KindNotFound, body.Error)
	require.Equal(t, "No data found for the given parameters", body.Detail)
	require.Empty(t, env.redis.Keys())
}

func TestLiquidationsHandlerSucceedsWhenCacheIsDown(t *testing.T) {
	env := newEnv(t)
	env.redis.Close()
	expectBuckets(env.mock)

	rec := serve(GetLiquidationsHandler(env.svcCtx), http.MethodGet,
		"/api/liquidations?symbol=BTCUSDT&timeframe=1h&start_timestamp=1609459200000&end_timestamp=1609462800000")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	require.NoError(t, env.mock.ExpectationsWereMet())
}

func TestLiquidationsHandlerMapsDataSourceErrors(t *testing.T) {
	env := newEnv(t)
	env.mock.ExpectQuery("SELECT symbol,").WillReturnError(&mysql.MySQLError{Number: 2003, Message: "can't connect"})

	rec := serve(GetLiquidationsHandler(env.svcCtx), http.MethodGet,
		"/api/liquidations?symbol=BTCUSDT&timeframe=1h&start_timestamp=1&end_timestamp=2")
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
	require.Equal(t, "DataSourceUnavailable", decodeError(t, rec).Error)
}

func TestOrdersHandlerModeValidation(t *testing.T) {
	env := newEnv(t)
	h := GetOrdersHandler(env.svcCtx)

	cases := map[string]string{
		"/api/liquidation-orders?symbol=BTCUSDT&start_timestamp=1&end_timestamp=2&limit=5": "MixedModeNotAllowed",
		"/api/liquidation-orders?symbol=BTCUSDT&start_timestamp=1":                         "IncompleteTimestampPair",
		"/api/liquidation-orders?symbol=BTCUSDT":                                           "NoModeSelected",
		"/api/liquidation-orders?symbol=BTCUSDT&limit=0":                                   "InvalidPagination",
		"/api/liquidation-orders?symbol=BTCUSDT&limit=1001":                                "InvalidPagination",
		"/api/liquidation-orders?symbol=BTCUSDT&start_timestamp=1&end_timestamp=2&page=0":  "InvalidPagination",
	}
	for target, kind := range cases {
		rec := serve(h, http.MethodGet, target)
		require.Equal(t, http.StatusBadRequest, rec.Code, target)
		require.Equal(t, kind, decodeError(t, rec).Error, target)
	}
	require.NoError(t, env.mock.ExpectationsWereMet())
}

func TestOrdersHandlerRangeModePage(t *testing.T) {
	env := newEnv(t)
	env.mock.ExpectQuery("FROM binance_liqs").
		WithArgs("btcusdt", int64(1), int64(100), 2, 2).
		WillReturnRows(sqlmock.NewRows(orderColumns).
			AddRow("BTCUSDT", "SELL", "LIMIT", "IOC", 1.5, 100.0, 101.0, "FILLED", 1.5, 1.5, int64(90)).
			AddRow("BTCUSDT", "BUY", nil, nil, nil, nil, nil, nil, nil, nil, int64(80)))

	rec := serve(GetOrdersHandler(env.svcCtx), http.MethodGet,
		"/api/liquidation-orders?symbol=BTCUSDT&start_timestamp=1&end_timestamp=100&page=2&page_size=2")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	requireSchema(t, "orders_page.schema.json", rec.Body.Bytes())

	var page struct {
		Data       []map[string]any `json:"data"`
		Pagination map[string]any   `json:"pagination"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &page))
	require.Len(t, page.Data, 2)
	require.Nil(t, page.Data[1]["price"])
	require.Contains(t, page.Data[1], "price")
	require.Equal(t, true, page.Pagination["has_more"])
	require.EqualValues(t, 2, page.Pagination["total_returned"])
}

func TestOrdersHandlerLimitModeIsBareArray(t *testing.T) {
	env := newEnv(t)
	env.mock.ExpectQuery("FROM binance_liqs").
		WithArgs("btcusdt", 5).
		WillReturnRows(sqlmock.NewRows(orderColumns).
			AddRow("BTCUSDT", "SELL", "LIMIT", "IOC", 1.0, 10.0, 10.0, "FILLED", 1.0, 1.0, int64(5)))

	rec := serve(GetOrdersHandler(env.svcCtx), http.MethodGet, "/api/liquidation-orders?symbol=BTCUSDT&limit=5")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var orders []map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &orders))
	require.Len(t, orders, 1)
	requireSchema(t, "order.schema.json", mustMarshal(t, orders[0]))
}

func TestOrdersHandlerEmptyIsNotFound(t *testing.T) {
	env := newEnv(t)
	env.mock.ExpectQuery("FROM binance_liqs").WillReturnRows(sqlmock.NewRows(orderColumns))

	rec := serve(GetOrdersHandler(env.svcCtx), http.MethodGet, "/api/liquidation-orders?symbol=BTCUSDT&limit=5")
	require.Equal(t, http.StatusNotFound, rec.Code)
	require.Equal(t, "No liquidation orders found for the given criteria", decodeError(t, rec).Detail)
}

func TestStreamOrdersHandler(t *testing.T) {
	env := newEnv(t)
	env.mock.ExpectQuery("FROM binance_liqs").
		WithArgs("btcusdt", int64(1), int64(100), 3, 0).
		WillReturnRows(sqlmock.NewRows(orderColumns).
			AddRow("BTCUSDT", "SELL", nil, nil, nil, nil, nil, nil, nil, nil, int64(30)).
			AddRow("BTCUSDT", "SELL", nil, nil, nil, nil, nil, nil, nil, nil, int64(20)).
			AddRow("BTCUSDT", "BUY", nil, nil, nil, nil, nil, nil, nil, nil, int64(10)))
	env.mock.ExpectQuery("FROM binance_liqs").
		WithArgs("btcusdt", int64(1), int64(100), 3, 2).
		WillReturnRows(sqlmock.NewRows(orderColumns).
			AddRow("BTCUSDT", "BUY", nil, nil, nil, nil, nil, nil, nil, nil, int64(10)))

	rec := serve(StreamOrdersHandler(env.svcCtx), http.MethodGet,
		"/api/liquidation-orders/stream?symbol=BTCUSDT&start_timestamp=1&end_timestamp=100&batch_size=2")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "application/x-ndjson", rec.Header().Get("Content-Type"))
	require.Equal(t, "attachment; filename=liquidation_orders_BTCUSDT_1_100.jsonl", rec.Header().Get("Content-Disposition"))

	lines := 0
	sc := bufio.NewScanner(strings.NewReader(rec.Body.String()))
	for sc.Scan() {
		requireSchema(t, "order.schema.json", sc.Bytes())
		lines++
	}
	require.Equal(t, 3, lines)
	require.NoError(t, env.mock.ExpectationsWereMet())
}

func TestStreamOrdersHandlerQuotesFileName(t *testing.T) {
	env := newEnv(t)
	env.mock.ExpectQuery("FROM binance_liqs").WillReturnRows(sqlmock.NewRows(orderColumns))

	rec := serve(StreamOrdersHandler(env.svcCtx), http.MethodGet,
		"/api/liquidation-orders/stream?symbol=BTCUSDT&start_timestamp=2021-01-01%2000:00&end_timestamp=2021-01-02%2000:00")
	require.Equal(t, http.StatusOK, rec.Code)

	header := rec.Header().Get("Content-Disposition")
	require.Equal(t, `attachment; filename="liquidation_orders_BTCUSDT_2021-01-01 00:00_2021-01-02 00:00.jsonl"`, header)
	_, params, err := mime.ParseMediaType(header)
	require.NoError(t, err)
	require.Equal(t, "liquidation_orders_BTCUSDT_2021-01-01 00:00_2021-01-02 00:00.jsonl", params["filename"])
}

func TestStreamOrdersHandlerErrorsInBand(t *testing.T) {
	env := newEnv(t)
	env.mock.ExpectQuery("FROM binance_liqs").WillReturnError(errors.New("connection reset by peer"))

	rec := serve(StreamOrdersHandler(env.svcCtx), http.MethodGet,
		"/api/liquidation-orders/stream?symbol=BTCUSDT&start_timestamp=1&end_timestamp=100")
	require.Equal(t, http.StatusOK, rec.Code)

	var line map[string]string
	require.NoError(t, json.Unmarshal([]byte(strings.TrimSpace(rec.Body.String())), &line))
	require.True(t, strings.HasPrefix(line["error"], "Streaming error: "), line["error"])
}

func TestStreamOrdersHandlerValidatesBeforeStreaming(t *testing.T) {
	env := newEnv(t)
	rec := serve(StreamOrdersHandler(env.svcCtx), http.MethodGet,
		"/api/liquidation-orders/stream?symbol=BTCUSDT&start_timestamp=10&end_timestamp=1")
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Equal(t, "RangeOrderInvalid", decodeError(t, rec).Error)
}

func TestHealthHandler(t *testing.T) {
	env := newEnvWith(t, true)
	env.mock.ExpectPing()

	rec := serve(HealthHandler(env.svcCtx), http.MethodGet, "/health")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	require.Contains(t, rec.Body.String(), `"status":"healthy"`)

	env.redis.Close()
	env.mock.ExpectPing()
	rec = serve(HealthHandler(env.svcCtx), http.MethodGet, "/health")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), `"status":"degraded"`)

	env.mock.ExpectPing().WillReturnError(errors.New("dial tcp: connection refused"))
	rec = serve(HealthHandler(env.svcCtx), http.MethodGet, "/health")
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
	require.Contains(t, rec.Body.String(), `"status":"unhealthy"`)
}

func TestCacheAdminHandlers(t *testing.T) {
	env := newEnv(t)
	require.NoError(t, env.redis.Set("liq:BTCUSDT:1h:1:2", "[]"))
	require.NoError(t, env.redis.Set("orders:BTCUSDT:latest:5", "[]"))
	require.NoError(t, env.redis.Set("liq:ETHUSDT:1h:1:2", "[]"))
	require.NoError(t, env.redis.Set(cache.SymbolsKey(), "[]"))

	req := httptest.NewRequest(http.MethodPost, "/api/cache/invalidate/symbol/btcusdt", nil)
	req = pathvar.WithVars(req, map[string]string{"symbol": "btcusdt"})
	rec := httptest.NewRecorder()
	CacheInvalidateSymbolHandler(env.svcCtx)(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), `"deleted_keys":2`)
	require.True(t, env.redis.Exists("liq:ETHUSDT:1h:1:2"))

	rec = serve(CacheInvalidateSymbolsHandler(env.svcCtx), http.MethodPost, "/api/cache/invalidate/symbols")
	require.Contains(t, rec.Body.String(), `"success":true`)
	require.False(t, env.redis.Exists(cache.SymbolsKey()))

	rec = serve(CacheClearHandler(env.svcCtx), http.MethodPost, "/api/cache/clear")
	require.Contains(t, rec.Body.String(), `"pattern":"*"`)
	require.Contains(t, rec.Body.String(), `"deleted_keys":1`)
	require.Empty(t, env.redis.Keys())

	rec = serve(CacheStatsHandler(env.svcCtx), http.MethodGet, "/api/cache/stats")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), `"cache_stats"`)
}

func TestCacheWarmHandlerReturnsJobID(t *testing.T) {
	env := newEnv(t)

	rec := serve(CacheWarmHandler(env.svcCtx), http.MethodPost, "/api/cache/warm")
	require.Equal(t, http.StatusAccepted, rec.Code)

	var resp map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.NotEmpty(t, resp["job_id"])
	require.Contains(t, []any{"initiated", "running"}, resp["status"])
}

func TestCompressionMiddleware(t *testing.T) {
	mw, err := CompressionMiddleware()
	require.NoError(t, err)

	big := strings.Repeat("x", 2*compressMinSize)
	h := mw(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(big))
	})
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Accept-Encoding", "gzip")
	rec := httptest.NewRecorder()
	h(rec, req)
	require.Equal(t, "gzip", rec.Header().Get("Content-Encoding"))

	small := mw(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("ok"))
	})
	rec = httptest.NewRecorder()
	small(rec, req)
	require.Empty(t, rec.Header().Get("Content-Encoding"))
	require.Equal(t, "ok", rec.Body.String())
}

func mustMarshal(t *testing.T, v any) []byte {
	t.Helper()
	raw, err := json.Marshal(v)
	require.NoError(t, err)
	return raw
}
