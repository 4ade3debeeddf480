package health

import (
	"context"
	"encoding/json"
	"runtime"
	"strconv"
	"time"

	"brickshare-backend/internal/middleware"

	"github.com/redis/go-redis/v9"
)

// KeyLastSweep holds the JSON summary of the most recent sweep run.
const KeyLastSweep = "health:global:last_sweep"

// DBPinger is optional for health check. If nil, database is reported as disconnected.
type DBPinger interface {
	Ping() error
}

// Prober reports whether an optional dependency (the event broker) is usable.
type Prober interface {
	Ping(ctx context.Context) error
}

type CollectResult struct {
	Status       string               `json:"status"`
	Runtime      RuntimeInfo          `json:"runtime"`
	Traffic      TrafficInfo          `json:"traffic"`
	Dependencies map[string]DepStatus `json:"dependencies"`
	LastSweep    interface{}          `json:"lastSweep"`
}

type RuntimeInfo struct {
	UptimeSeconds int64      `json:"uptimeSeconds"`
	Memory        MemoryInfo `json:"memory"`
	Goroutines    int        `json:"goroutines"`
	Platform      string     `json:"platform"`
	GoVersion     string     `json:"goVersion"`
}

type MemoryInfo struct {
	RSS      int `json:"rss"`
	HeapUsed int `json:"heapUsed"`
}

type TrafficInfo struct {
	TotalRequests   int         `json:"totalRequests"`
	SuccessCount    int         `json:"successCount"`
	FailedCount     int         `json:"failedCount"`
	SuccessRate     string      `json:"successRate"`
	AvgResponseTime interface{} `json:"avgResponseTime"`
	LastRequest     interface{} `json:"lastRequest"`
}

type DepStatus struct {
	Status string      `json:"status"`
	PingMs interface{} `json:"pingMs"`
}

// Collector gathers health data. Redis, DB and Broker are each optional.
type Collector struct {
	Rdb    *redis.Client
	DB     DBPinger
	Broker Prober
}

// CollectHealth gathers health data from Redis, optional DB and the optional broker.
// Overall status is "ok" when the database is reachable and every configured
// dependency answers.
func (c *Collector) CollectHealth(ctx context.Context) CollectResult {
	result := CollectResult{
		Dependencies: make(map[string]DepStatus),
	}

	dbStatus := "disconnected"
	var dbPingMs *int64
	if c.DB != nil {
		start := time.Now()
		if err := c.DB.Ping(); err == nil {
			ms := time.Since(start).Milliseconds()
			dbPingMs = &ms
			dbStatus = "connected"
		} else {
			dbStatus = "error"
		}
	}
	result.Dependencies["database"] = DepStatus{Status: dbStatus, PingMs: dbPingMs}

	redisStatus := "disabled"
	var redisPingMs *int64
	stats := TrafficInfo{AvgResponseTime: 0, SuccessRate: "100"}
	startTimeMs := time.Now().UnixMilli()

	if c.Rdb != nil {
		redisStatus = "error"
		start := time.Now()
		if err := c.Rdb.Ping(ctx).Err(); err == nil {
			ms := time.Since(start).Milliseconds()
			redisPingMs = &ms
			redisStatus = "connected"
			startTimeMs = c.readTraffic(ctx, &stats, startTimeMs)
			if raw, _ := c.Rdb.Get(ctx, KeyLastSweep).Result(); raw != "" {
				var last map[string]interface{}
				if json.Unmarshal([]byte(raw), &last) == nil {
					result.LastSweep = last
				}
			}
		}
	}
	result.Dependencies["redis"] = DepStatus{Status: redisStatus, PingMs: redisPingMs}

	brokerStatus := "disabled"
	var brokerPingMs *int64
	if c.Broker != nil {
		start := time.Now()
		if err := c.Broker.Ping(ctx); err == nil {
			ms := time.Since(start).Milliseconds()
			brokerPingMs = &ms
			brokerStatus = "connected"
		} else {
			brokerStatus = "error"
		}
	}
	result.Dependencies["broker"] = DepStatus{Status: brokerStatus, PingMs: brokerPingMs}

	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	uptimeSec := (time.Now().UnixMilli() - startTimeMs) / 1000
	if uptimeSec < 0 {
		uptimeSec = 0
	}
	result.Runtime = RuntimeInfo{
		UptimeSeconds: uptimeSec,
		Memory:        MemoryInfo{RSS: int(m.Sys / 1024 / 1024), HeapUsed: int(m.HeapInuse / 1024 / 1024)},
		Goroutines:    runtime.NumGoroutine(),
		Platform:      runtime.GOOS + " (" + runtime.GOARCH + ")",
		GoVersion:     runtime.Version(),
	}
	result.Traffic = stats

	result.Status = "ok"
	if dbStatus != "connected" || redisStatus == "error" || brokerStatus == "error" {
		result.Status = "issue"
	}
	return result
}

func (c *Collector) readTraffic(ctx context.Context, stats *TrafficInfo, startTimeMs int64) int64 {
	rdb := c.Rdb
	totalReq, _ := rdb.Get(ctx, middleware.KeyReqTotal).Result()
	totalErr, _ := rdb.Get(ctx, middleware.KeyReqErrors).Result()
	totalTime, _ := rdb.Get(ctx, middleware.KeyResTime).Result()
	resCount, _ := rdb.Get(ctx, middleware.KeyResCount).Result()
	startTimeStr, _ := rdb.Get(ctx, middleware.KeyStartTime).Result()
	lastReqStr, _ := rdb.Get(ctx, middleware.KeyLastReq).Result()

	if startTimeStr != "" {
		if t, err := strconv.ParseInt(startTimeStr, 10, 64); err == nil {
			startTimeMs = t
		}
	} else {
		rdb.Set(ctx, middleware.KeyStartTime, startTimeMs, 0)
	}

	stats.TotalRequests, _ = strconv.Atoi(totalReq)
	stats.FailedCount, _ = strconv.Atoi(totalErr)
	stats.SuccessCount = stats.TotalRequests - stats.FailedCount
	if stats.TotalRequests > 0 {
		stats.SuccessRate = strconv.FormatFloat(float64(stats.SuccessCount)/float64(stats.TotalRequests)*100, 'f', 1, 64)
	}
	timeSum, _ := strconv.ParseFloat(totalTime, 64)
	countSum, _ := strconv.Atoi(resCount)
	if countSum > 0 {
		stats.AvgResponseTime = strconv.FormatFloat(timeSum/float64(countSum), 'f', 2, 64)
	}
	if lastReqStr != "" {
		var lastReq map[string]interface{}
		_ = json.Unmarshal([]byte(lastReqStr), &lastReq)
		stats.LastRequest = lastReq
	}
	return startTimeMs
}

// RecordSweep stores a sweep summary for the dashboard. No-op without Redis.
func RecordSweep(ctx context.Context, rdb *redis.Client, summary interface{}) error {
	if rdb == nil {
		return nil
	}
	b, err := json.Marshal(summary)
	if err != nil {
		return err
	}
	return rdb.Set(ctx, KeyLastSweep, b, 0).Err()
}
