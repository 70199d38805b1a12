package cache

import (
	"bufio"
	"context"
	"math"
	"strings"

	"github.com/redis/go-redis/v9"
)

// Stats is the cache statistics payload. Server fields come from Redis INFO;
// Local counts lookups made by this process.
type Stats struct {
	Available              bool        `json:"available"`
	State                  string      `json:"state"`
	Error                  string      `json:"error,omitempty"`
	ConnectedClients       int64       `json:"connected_clients"`
	UsedMemory             int64       `json:"used_memory"`
	UsedMemoryHuman        string      `json:"used_memory_human"`
	KeyspaceHits           int64       `json:"keyspace_hits"`
	KeyspaceMisses         int64       `json:"keyspace_misses"`
	TotalCommandsProcessed int64       `json:"total_commands_processed"`
	HitRate                float64     `json:"hit_rate"`
	Local                  LocalCounts `json:"local"`
}

type LocalCounts struct {
	Hits    int64   `json:"hits"`
	Misses  int64   `json:"misses"`
	Errors  int64   `json:"errors"`
	HitRate float64 `json:"hit_rate"`
}

// Stats reads server statistics. It never fails; an unreachable backend is
// reported with Available=false.
func (s *Store) Stats(ctx context.Context) Stats {
	local := s.Local()

	client := s.conn(ctx)
	if client == nil {
		state := s.State()
		msg := "Cache not available"
		if state == StateDisabled {
			msg = "Cache disabled"
		}
		return Stats{Available: false, State: state.String(), Error: msg, Local: local}
	}

	var info string
	ok := s.do(ctx, "info", func(c *redis.Client) error {
		var err error
		info, err = c.Info(ctx).Result()
		return err
	})
	if !ok {
		return Stats{Available: false, State: s.State().String(), Error: "Cache not available", Local: local}
	}

	fields := parseInfo(info)
	stats := Stats{
		Available:              true,
		State:                  StateAvailable.String(),
		ConnectedClients:       parseInt(fields["connected_clients"]),
		UsedMemory:             parseInt(fields["used_memory"]),
		UsedMemoryHuman:        fields["used_memory_human"],
		KeyspaceHits:           parseInt(fields["keyspace_hits"]),
		KeyspaceMisses:         parseInt(fields["keyspace_misses"]),
		TotalCommandsProcessed: parseInt(fields["total_commands_processed"]),
		Local:                  local,
	}
	if stats.UsedMemoryHuman == "" {
		stats.UsedMemoryHuman = "0B"
	}
	stats.HitRate = hitRate(stats.KeyspaceHits, stats.KeyspaceMisses)
	return stats
}

// Local returns the lookup counters of this process.
func (s *Store) Local() LocalCounts {
	if s == nil {
		return LocalCounts{}
	}
	local := LocalCounts{
		Hits:   s.hits.Load(),
		Misses: s.misses.Load(),
		Errors: s.errs.Load(),
	}
	local.HitRate = hitRate(local.Hits, local.Misses)
	return local
}

// parseInfo flattens the "key:value" lines of an INFO reply.
func parseInfo(info string) map[string]string {
	out := make(map[string]string)
	sc := bufio.NewScanner(strings.NewReader(info))
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		k, v, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}
		out[k] = v
	}
	return out
}

// hitRate is hits/(hits+misses) as a percentage rounded to two places.
func hitRate(hits, misses int64) float64 {
	total := hits + misses
	if total <= 0 {
		return 0
	}
	return math.Round(float64(hits)/float64(total)*100*100) / 100
}
