package handler

import (
	"bufio"
	"context"
	"fmt"
	"net/http"
	"os"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

const healthTimeout = 2 * time.Second

// Pinger is a dependency the health check can probe.
type Pinger func(ctx context.Context) error

// SystemHandler reports process health and dependency reachability.
type SystemHandler struct {
	checks    map[string]Pinger
	startTime time.Time
	log       zerolog.Logger
}

// NewSystemHandler creates a SystemHandler probing the named checks.
func NewSystemHandler(checks map[string]Pinger, log zerolog.Logger) *SystemHandler {
	return &SystemHandler{
		checks:    checks,
		startTime: time.Now(),
		log:       log.With().Str("component", "system_handler").Logger(),
	}
}

type healthReport struct {
	Status    string            `json:"status"`
	Uptime    string            `json:"uptime"`
	Checks    map[string]string `json:"checks"`
	Timestamp int64             `json:"timestamp"`

	// Go Application
	Goroutines  int    `json:"goroutines"`
	HeapAlloc   uint64 `json:"heap_alloc"`
	AppRSSBytes uint64 `json:"app_rss_bytes,omitempty"`
	GoVersion   string `json:"go_version"`
}

// Health godoc
// GET /health
// Returns 200 when every dependency answers, 503 otherwise.
func (h *SystemHandler) Health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), healthTimeout)
	defer cancel()

	results := make(map[string]string, len(h.checks))
	errs := make([]error, len(h.checks))
	names := make([]string, 0, len(h.checks))
	for name := range h.checks {
		names = append(names, name)
	}

	var g errgroup.Group
	for i, name := range names {
		ping := h.checks[name]
		g.Go(func() error {
			errs[i] = ping(ctx)
			return nil
		})
	}
	g.Wait()

	healthy := true
	for i, name := range names {
		if errs[i] != nil {
			healthy = false
			results[name] = errs[i].Error()
			h.log.Warn().Err(errs[i]).Str("check", name).Msg("Health check failed")
			continue
		}
		results[name] = "ok"
	}

	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)
	rss, _ := readProcessRSS()

	report := healthReport{
		Status:      "ok",
		Uptime:      formatDuration(time.Since(h.startTime)),
		Checks:      results,
		Timestamp:   time.Now().Unix(),
		Goroutines:  runtime.NumGoroutine(),
		HeapAlloc:   ms.HeapAlloc,
		AppRSSBytes: rss,
		GoVersion:   runtime.Version(),
	}
	status := http.StatusOK
	if !healthy {
		report.Status = "degraded"
		status = http.StatusServiceUnavailable
	}
	c.JSON(status, report)
}

// readProcessRSS reads VmRSS from /proc/self/status.
func readProcessRSS() (uint64, error) {
	f, err := os.Open("/proc/self/status")
	if err != nil {
		return 0, err
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := scanner.Text()
		if strings.HasPrefix(line, "VmRSS:") {
			// Format: "VmRSS:     16384 kB"
			fields := strings.Fields(line)
			if len(fields) < 2 {
				break
			}
			val, _ := strconv.ParseUint(fields[1], 10, 64)
			return val * 1024, nil
		}
	}
	return 0, fmt.Errorf("VmRSS not found")
}

func formatDuration(d time.Duration) string {
	days := int(d.Hours()) / 24
	hours := int(d.Hours()) % 24
	minutes := int(d.Minutes()) % 60
	seconds := int(d.Seconds()) % 60

	if days > 0 {
		return fmt.Sprintf("%dd %dh %dm %ds", days, hours, minutes, seconds)
	}
	if hours > 0 {
		return fmt.Sprintf("%dh %dm %ds", hours, minutes, seconds)
	}
	return fmt.Sprintf("%dm %ds", minutes, seconds)
}
