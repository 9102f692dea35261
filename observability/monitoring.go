package observability

import (
	"log/slog"
	"os"
	"sync/atomic"
	"time"

	"github.com/shirou/gopsutil/process"
)

// Stats is the health snapshot exposed by the server.
type Stats struct {
	Uptime        string  `json:"uptime"`
	MessagesSent  uint64  `json:"messages_sent"`
	MessagesRead  uint64  `json:"messages_read"`
	Deletions     uint64  `json:"deletions"`
	Searches      uint64  `json:"searches"`
	RSSMb         float64 `json:"rss_mb"`
	CPUPercent    float64 `json:"cpu_percent"`
}

// Monitor aggregates operation counters and process self-stats.
// Counters are atomic: every request handler increments them concurrently.
type Monitor struct {
	log       *slog.Logger
	startedAt time.Time
	proc      *process.Process

	sent     uint64
	read     uint64
	deleted  uint64
	searches uint64
}

func NewMonitor(log *slog.Logger) *Monitor {
	proc, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		log.Warn("process stats unavailable", "error", err)
	}
	return &Monitor{log: log, startedAt: time.Now(), proc: proc}
}

func (m *Monitor) IncrSent() {
	atomic.AddUint64(&m.sent, 1)
}

func (m *Monitor) AddRead(n int) {
	if n > 0 {
		atomic.AddUint64(&m.read, uint64(n))
	}
}

func (m *Monitor) IncrDeleted() {
	atomic.AddUint64(&m.deleted, 1)
}

func (m *Monitor) IncrSearches() {
	atomic.AddUint64(&m.searches, 1)
}

// Snapshot returns current counters plus RSS/CPU of this process.
func (m *Monitor) Snapshot() Stats {
	stats := Stats{
		Uptime:       time.Since(m.startedAt).Round(time.Second).String(),
		MessagesSent: atomic.LoadUint64(&m.sent),
		MessagesRead: atomic.LoadUint64(&m.read),
		Deletions:    atomic.LoadUint64(&m.deleted),
		Searches:     atomic.LoadUint64(&m.searches),
	}
	if m.proc == nil {
		return stats
	}
	if mem, err := m.proc.MemoryInfo(); err == nil {
		stats.RSSMb = float64(mem.RSS) / 1024 / 1024
	}
	if cpu, err := m.proc.CPUPercent(); err == nil {
		stats.CPUPercent = cpu
	}
	return stats
}
