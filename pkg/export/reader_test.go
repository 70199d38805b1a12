package export

import (
	"mime"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

const orderSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "required": ["symbol", "side", "order_trade_time"],
  "properties": {
    "symbol": {"type": "string"},
    "side": {"type": "string"},
    "order_trade_time": {"type": "integer"}
  }
}`

func TestReaderSummarize(t *testing.T) {
	dir := t.TempDir()
	schemaPath := filepath.Join(dir, "order.schema.json")
	require.NoError(t, os.WriteFile(schemaPath, []byte(orderSchema), 0o600))
	validator, err := NewSchemaValidator(schemaPath)
	require.NoError(t, err)

	body := `{"symbol":"BTCUSDT","side":"SELL","average_price":100,"order_filled_accumulated_quantity":2,"order_trade_time":30}
{"symbol":"BTCUSDT","side":"BUY","average_price":null,"order_filled_accumulated_quantity":1,"order_trade_time":10}
{"symbol":"BTCUSDT","side":"BUY"}
not json

{"error":"Streaming error: executor: orders_by_symbol_time_stream timed out after 2m0s"}
`
	path := filepath.Join(dir, FileName("BTCUSDT", "1", "2"))
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))

	sum, err := NewReader(dir, validator).Summarize(path)
	require.NoError(t, err)
	require.Equal(t, 2, sum.Records)
	require.Equal(t, 2, sum.Invalid)
	require.Equal(t, map[string]int{"BUY": 1, "SELL": 1}, sum.Sides)
	require.EqualValues(t, 10, sum.FirstTradeMs)
	require.EqualValues(t, 30, sum.LastTradeMs)
	require.Equal(t, 200.0, sum.NotionalUSD)
	require.Contains(t, sum.StreamError, "timed out")
}

func TestReaderLatest(t *testing.T) {
	dir := t.TempDir()
	write := func(name, body string) {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(body), 0o600))
	}
	write(FileName("BTCUSDT", "1", "2"), `{"symbol":"BTCUSDT","side":"BUY","order_trade_time":1}`+"\n")
	write(FileName("ETHUSDT", "1", "2"), `{"symbol":"ETHUSDT","side":"BUY","order_trade_time":1}`+"\n")
	write("notes.txt", "ignored")

	r := NewReader(dir, nil)
	sums, err := r.Latest(1)
	require.NoError(t, err)
	require.Len(t, sums, 1)
	require.Equal(t, 1, sums[0].Symbols["ETHUSDT"])

	sums, err = r.Latest(5)
	require.NoError(t, err)
	require.Len(t, sums, 2)
}

func TestSchemaValidator(t *testing.T) {
	dir := t.TempDir()
	schemaPath := filepath.Join(dir, "schema.json")
	require.NoError(t, os.WriteFile(schemaPath, []byte(orderSchema), 0o600))

	validator, err := NewSchemaValidator(schemaPath)
	require.NoError(t, err)
	require.NoError(t, validator.ValidateBytes([]byte(`{"symbol":"X","side":"BUY","order_trade_time":1}`)))
	require.Error(t, validator.ValidateBytes([]byte(`{"symbol":1}`)))

	_, err = NewSchemaValidator(" ")
	require.Error(t, err)
}

func TestContentDisposition(t *testing.T) {
	require.Equal(t, "attachment; filename=liquidation_orders_BTCUSDT_1_2.jsonl",
		ContentDisposition(FileName("BTCUSDT", "1", "2")))

	for _, name := range []string{
		FileName("BTCUSDT", "2021-01-01 00:00", "2021-01-02 00:00"),
		FileName("BTC;USDT", "1", "2"),
		FileName(`BTC"USDT`, "1", "2"),
		FileName("BTCÜSDT", "1", "2"),
	} {
		header := ContentDisposition(name)
		disposition, params, err := mime.ParseMediaType(header)
		require.NoError(t, err, header)
		require.Equal(t, "attachment", disposition)
		require.Equal(t, name, params["filename"], header)
	}
}
