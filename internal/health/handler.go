// Package health exposes the service liveness endpoint.
package health

import (
	"context"
	"net/http"
	"runtime"
	"time"

	"github.com/keystone-id/keystone/internal/platform/httpx"
)

// Pinger checks the backing database connection. pgxpool.Pool satisfies it.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Response is the health payload.
type Response struct {
	Status      string      `json:"status"`
	Timestamp   string      `json:"timestamp"`
	Uptime      float64     `json:"uptime"`
	MemoryUsage MemoryUsage `json:"memoryUsage"`
	Database    Database    `json:"database"`
}

// MemoryUsage reports process memory in megabytes.
type MemoryUsage struct {
	HeapUsed  uint64 `json:"heapUsed"`
	HeapTotal uint64 `json:"heapTotal"`
	Sys       uint64 `json:"sys"`
	NumGC     uint32 `json:"numGC"`
}

// Database reports the store check outcome.
type Database struct {
	Status  string `json:"status"`
	Latency int64  `json:"latency"`
}

// Handler serves GET /health.
type Handler struct {
	db        Pinger
	respond   *httpx.Responder
	startedAt time.Time
}

// NewHandler builds a Handler instance.
func NewHandler(db Pinger, respond *httpx.Responder) *Handler {
	return &Handler{db: db, respond: respond, startedAt: time.Now()}
}

// Check pings the database and reports uptime and memory statistics. A
// failing database check yields 503 with the same payload shape.
func (h *Handler) Check(w http.ResponseWriter, r *http.Request) {
	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)

	resp := Response{
		Status:    "ok",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Uptime:    time.Since(h.startedAt).Seconds(),
		MemoryUsage: MemoryUsage{
			HeapUsed:  mem.HeapAlloc / 1024 / 1024,
			HeapTotal: mem.HeapSys / 1024 / 1024,
			Sys:       mem.Sys / 1024 / 1024,
			NumGC:     mem.NumGC,
		},
		Database: Database{Status: "up"},
	}

	start := time.Now()
	if err := h.db.Ping(r.Context()); err != nil {
		resp.Status = "error"
		resp.Database = Database{Status: "down", Latency: 0}
		h.respond.JSON(w, http.StatusServiceUnavailable, resp)
		return
	}
	resp.Database.Latency = time.Since(start).Milliseconds()

	h.respond.JSON(w, http.StatusOK, resp)
}
