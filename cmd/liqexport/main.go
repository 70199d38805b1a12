package main

import (
	"bufio"
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strings"

	"github.com/zeromicro/go-zero/core/conf"

	"liquidations-api/internal/config"
	"liquidations-api/internal/svc"
	"liquidations-api/internal/types"
	"liquidations-api/pkg/confkit"
	"liquidations-api/pkg/export"
	"liquidations-api/pkg/params"
)

func main() {
	var (
		configFile = flag.String("f", "etc/liquidations-api.yaml", "the config file")
		symbol     = flag.String("symbol", "", "Symbol to export")
		start      = flag.String("start", "", "Start timestamp (Unix ms or ISO-8601)")
		end        = flag.String("end", "", "End timestamp (Unix ms or ISO-8601)")
		batch      = flag.Int("batch", export.DefaultBatchSize, "Rows per fetch (1..5000)")
		outDir     = flag.String("out-dir", "exports", "Directory for export files")
		summary    = flag.Bool("summary", false, "Summarize existing exports instead of exporting")
		limit      = flag.Int("limit", 5, "Number of recent exports to summarize")
		schemaPath = flag.String("schema", "schemas/order.schema.json", "Order JSON schema used by -summary")
	)
	flag.Parse()
	confkit.LoadDotenvOnce()

	if *summary {
		os.Exit(summarize(*outDir, *schemaPath, *limit))
	}

	sym, err := params.NormalizeSymbol(*symbol)
	if err != nil {
		log.Fatalf("invalid symbol: %v", err)
	}
	tr, err := params.ParseRange(*start, *end)
	if err != nil {
		log.Fatalf("invalid range: %v", err)
	}

	var c config.Config
	conf.MustLoad(*configFile, &c, conf.UseEnv())
	if err := c.Validate(); err != nil {
		log.Fatalf("config: %v", err)
	}
	svcCtx, err := svc.NewServiceContext(c)
	if err != nil {
		log.Fatalf("init: %v", err)
	}
	defer svcCtx.Close()

	if err := os.MkdirAll(*outDir, 0o755); err != nil {
		log.Fatalf("create %s: %v", *outDir, err)
	}
	path := filepath.Join(*outDir, export.FileName(strings.TrimSpace(*symbol), *start, *end))
	f, err := os.Create(path)
	if err != nil {
		log.Fatalf("create export: %v", err)
	}
	defer f.Close()
	w := bufio.NewWriter(f)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	sum := export.Stream(ctx, w, *batch,
		func(ctx context.Context, limit, offset int) ([]types.Order, error) {
			rows, err := svcCtx.Liquidations.OrdersBatch(ctx, sym, tr, limit, offset)
			if err != nil {
				return nil, err
			}
			return types.NewOrders(rows), nil
		},
		func() { _ = w.Flush() })
	if err := w.Flush(); err != nil {
		log.Fatalf("write export: %v", err)
	}

	log.Printf("export %s: records=%d batches=%d", path, sum.Records, sum.Batches)
	if sum.Err != nil {
		log.Printf("[FAIL] export ended early: %v", sum.Err)
		os.Exit(1)
	}
}

func summarize(dir, schemaPath string, limit int) int {
	var validator *export.SchemaValidator
	if strings.TrimSpace(schemaPath) != "" {
		v, err := export.NewSchemaValidator(schemaPath)
		if err != nil {
			log.Printf("schema disabled: %v", err)
		} else {
			validator = v
		}
	}

	sums, err := export.NewReader(dir, validator).Latest(limit)
	if err != nil {
		log.Printf("load exports: %v", err)
		return 1
	}
	if len(sums) == 0 {
		log.Println("no exports found")
		return 0
	}

	failed := 0
	for _, s := range sums {
		status := "[OK]  "
		if s.Invalid > 0 || s.StreamError != "" {
			status = "[FAIL]"
			failed++
		}
		log.Printf("%s %s records=%d invalid=%d notional_usd=%.2f first=%d last=%d sides=%v",
			status, filepath.Base(s.Path), s.Records, s.Invalid, s.NotionalUSD, s.FirstTradeMs, s.LastTradeMs, s.Sides)
		if s.StreamError != "" {
			log.Printf("       stream error: %s", s.StreamError)
		}
	}
	log.Printf("export summary complete: %d files, %d with problems", len(sums), failed)
	if failed > 0 {
		return 1
	}
	return 0
}
