package export

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
)

const (
	MaxBatchSize     = 5000
	DefaultBatchSize = 1000
)

// Summary describes a finished stream. Err is set when the stream ended
// early; by then an in-band error line has already been written when possible.
type Summary struct {
	Records int
	Batches int
	Err     error
}

// FetchFunc returns up to limit records starting at offset, ordered so that
// consecutive offsets never overlap.
type FetchFunc[T any] func(ctx context.Context, limit, offset int) ([]T, error)

// Stream writes every record produced by fetch to w as one JSON object per
// line, calling flush after each batch. Each fetch asks for one record more
// than batchSize so the final batch is recognized without an extra empty
// round trip; the look-ahead record is emitted by the next batch.
//
// Stream never returns an error to the caller after output has begun. A fetch
// failure is written as {"error":"Streaming error: ..."} and ends the stream.
func Stream[T any](ctx context.Context, w io.Writer, batchSize int, fetch FetchFunc[T], flush func()) Summary {
	batchSize = ClampBatchSize(batchSize)
	var sum Summary
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)

	for offset := 0; ; offset += batchSize {
		if err := ctx.Err(); err != nil {
			sum.Err = err
			return sum
		}
		records, err := fetch(ctx, batchSize+1, offset)
		sum.Batches++
		if err != nil {
			sum.Err = err
			writeErrorLine(w, err)
			if flush != nil {
				flush()
			}
			return sum
		}

		more := len(records) > batchSize
		if more {
			records = records[:batchSize]
		}
		buf.Reset()
		for i := range records {
			if err := enc.Encode(records[i]); err != nil {
				sum.Err = fmt.Errorf("export: encode record: %w", err)
				writeErrorLine(w, sum.Err)
				return sum
			}
		}
		if buf.Len() > 0 {
			if _, err := w.Write(buf.Bytes()); err != nil {
				sum.Err = fmt.Errorf("export: write batch: %w", err)
				return sum
			}
		}
		sum.Records += len(records)
		if flush != nil {
			flush()
		}
		if !more {
			return sum
		}
	}
}

// ClampBatchSize bounds n to 1..MaxBatchSize, using DefaultBatchSize for
// non-positive values.
func ClampBatchSize(n int) int {
	switch {
	case n <= 0:
		return DefaultBatchSize
	case n > MaxBatchSize:
		return MaxBatchSize
	default:
		return n
	}
}

type errorLine struct {
	Error string `json:"error"`
}

func writeErrorLine(w io.Writer, err error) {
	line, _ := json.Marshal(errorLine{Error: "Streaming error: " + err.Error()})
	_, _ = w.Write(append(line, '\n'))
}
