package export

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"mime"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

const (
	filePrefix = "liquidation_orders_"
	fileSuffix = ".jsonl"
)

// FileName is the attachment name used for an export of symbol between the
// raw start and end parameters.
func FileName(symbol, start, end string) string {
	return fmt.Sprintf("%s%s_%s_%s%s", filePrefix, symbol, start, end, fileSuffix)
}

// ContentDisposition is the attachment header for name, quoted or
// RFC 2231 encoded as the raw parameters require.
func ContentDisposition(name string) string {
	if v := mime.FormatMediaType("attachment", map[string]string{"filename": name}); v != "" {
		return v
	}
	return "attachment"
}

// FileSummary describes one export file.
type FileSummary struct {
	Path         string         `json:"path"`
	Records      int            `json:"records"`
	Invalid      int            `json:"invalid"`
	StreamError  string         `json:"stream_error,omitempty"`
	Symbols      map[string]int `json:"symbols"`
	Sides        map[string]int `json:"sides"`
	FirstTradeMs int64          `json:"first_trade_ms,omitempty"`
	LastTradeMs  int64          `json:"last_trade_ms,omitempty"`
	NotionalUSD  float64        `json:"notional_usd"`
}

// Reader loads export files from disk.
type Reader struct {
	dir       string
	validator *SchemaValidator
}

// NewReader returns a reader rooted at dir (defaults to ./exports). A nil
// validator skips per-record schema checks.
func NewReader(dir string, validator *SchemaValidator) *Reader {
	if strings.TrimSpace(dir) == "" {
		dir = "exports"
	}
	return &Reader{dir: dir, validator: validator}
}

// List returns export file paths ordered by name. If limit > 0, only the last
// N files are returned.
func (r *Reader) List(limit int) ([]string, error) {
	entries, err := os.ReadDir(r.dir)
	if err != nil {
		return nil, fmt.Errorf("export: list dir %s: %w", r.dir, err)
	}
	files := make([]string, 0, len(entries))
	for _, ent := range entries {
		if ent.IsDir() {
			continue
		}
		name := ent.Name()
		if !strings.HasPrefix(name, filePrefix) || !strings.HasSuffix(name, fileSuffix) {
			continue
		}
		files = append(files, filepath.Join(r.dir, name))
	}
	sort.Strings(files)
	if limit > 0 && len(files) > limit {
		files = files[len(files)-limit:]
	}
	return files, nil
}

type exportLine struct {
	Error          string   `json:"error"`
	Symbol         string   `json:"symbol"`
	Side           string   `json:"side"`
	AveragePrice   *float64 `json:"average_price"`
	FilledQuantity *float64 `json:"order_filled_accumulated_quantity"`
	OrderTradeTime *int64   `json:"order_trade_time"`
}

// Summarize scans one export file. Lines that are not JSON objects, or that
// fail the schema, are counted as invalid. An in-band error record is
// reported in StreamError.
func (r *Reader) Summarize(path string) (*FileSummary, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("export: open %s: %w", path, err)
	}
	defer f.Close()

	sum := &FileSummary{Path: path, Symbols: map[string]int{}, Sides: map[string]int{}}
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for sc.Scan() {
		raw := sc.Bytes()
		if len(bytes.TrimSpace(raw)) == 0 {
			continue
		}
		var line exportLine
		if err := json.Unmarshal(raw, &line); err != nil {
			sum.Invalid++
			continue
		}
		if line.Error != "" {
			sum.StreamError = line.Error
			continue
		}
		if err := r.validator.ValidateBytes(raw); err != nil {
			sum.Invalid++
			continue
		}
		sum.Records++
		sum.Symbols[line.Symbol]++
		sum.Sides[line.Side]++
		if line.AveragePrice != nil && line.FilledQuantity != nil {
			sum.NotionalUSD += *line.AveragePrice * *line.FilledQuantity
		}
		if line.OrderTradeTime != nil {
			ts := *line.OrderTradeTime
			if sum.FirstTradeMs == 0 || ts < sum.FirstTradeMs {
				sum.FirstTradeMs = ts
			}
			if ts > sum.LastTradeMs {
				sum.LastTradeMs = ts
			}
		}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("export: read %s: %w", path, err)
	}
	return sum, nil
}

// Latest summarizes the most recent N export files (ascending order).
func (r *Reader) Latest(limit int) ([]*FileSummary, error) {
	files, err := r.List(limit)
	if err != nil {
		return nil, err
	}
	out := make([]*FileSummary, 0, len(files))
	for _, path := range files {
		sum, err := r.Summarize(path)
		if err != nil {
			return nil, err
		}
		out = append(out, sum)
	}
	return out, nil
}
