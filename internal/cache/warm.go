package cache

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/zeromicro/go-zero/core/logx"
	"github.com/zeromicro/go-zero/core/threading"
	"golang.org/x/time/rate"
)

// WarmTarget is one entry to pre-populate. Load must produce the same value
// the serving path would cache under Key.
type WarmTarget struct {
	Key  string
	Kind Kind
	Load func(ctx context.Context) (any, error)
}

// WarmResult summarizes one warm run.
type WarmResult struct {
	JobID    string        `json:"job_id"`
	Warmed   int           `json:"warmed"`
	Skipped  int           `json:"skipped"`
	Failed   int           `json:"failed"`
	Duration time.Duration `json:"duration_ns"`
}

// Warmer fills the cache in the background at a bounded rate.
type Warmer struct {
	store   *Store
	ttl     TTLSet
	limiter *rate.Limiter
	timeout time.Duration

	mu      sync.Mutex
	running string
	last    *WarmResult
}

// NewWarmer returns a warmer issuing at most perSecond loads per second.
func NewWarmer(store *Store, ttl TTLSet, perSecond float64, timeout time.Duration) *Warmer {
	if perSecond <= 0 {
		perSecond = defaultWarmRate
	}
	if timeout <= 0 {
		timeout = 10 * time.Minute
	}
	return &Warmer{
		store:   store,
		ttl:     ttl,
		limiter: rate.NewLimiter(rate.Limit(perSecond), 1),
		timeout: timeout,
	}
}

// Start launches a warm run and returns its job id. When a run is already in
// progress its id is returned with started=false.
func (w *Warmer) Start(targets func(context.Context) []WarmTarget) (jobID string, started bool) {
	w.mu.Lock()
	if w.running != "" {
		id := w.running
		w.mu.Unlock()
		return id, false
	}
	jobID = uuid.NewString()
	w.running = jobID
	w.mu.Unlock()

	threading.GoSafe(func() {
		ctx, cancel := context.WithTimeout(context.Background(), w.timeout)
		defer cancel()
		ctx = logx.ContextWithFields(ctx, logx.Field("warm_job", jobID))

		res := w.Run(ctx, targets(ctx))
		res.JobID = jobID

		w.mu.Lock()
		w.running = ""
		w.last = &res
		w.mu.Unlock()
	})
	return jobID, true
}

// Last returns the result of the most recent finished run.
func (w *Warmer) Last() (WarmResult, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.last == nil {
		return WarmResult{}, false
	}
	return *w.last, true
}

// Run warms targets synchronously. Keys already present are skipped and load
// failures are logged and counted.
func (w *Warmer) Run(ctx context.Context, targets []WarmTarget) WarmResult {
	started := time.Now()
	var res WarmResult
	logger := logx.WithContext(ctx)

	for _, t := range targets {
		if w.store.Exists(ctx, t.Key) {
			res.Skipped++
			continue
		}
		if err := w.limiter.Wait(ctx); err != nil {
			logger.Errorf("cache: warm aborted err=%v", err)
			break
		}
		v, err := t.Load(ctx)
		if err != nil {
			res.Failed++
			logger.Infof("cache: warm skip key=%s err=%v", t.Key, err)
			continue
		}
		raw, err := json.Marshal(v)
		if err != nil {
			res.Failed++
			logger.Errorf("cache: warm encode key=%s err=%v", t.Key, err)
			continue
		}
		if w.store.Set(ctx, t.Key, raw, w.ttl.For(t.Kind)) {
			res.Warmed++
		} else {
			res.Failed++
		}
	}
	res.Duration = time.Since(started)
	logger.Infof("cache: warm done warmed=%d skipped=%d failed=%d took=%s",
		res.Warmed, res.Skipped, res.Failed, res.Duration)
	return res
}
