// Package diag provides the hub's runtime diagnostics: periodic memory
// stat logging and an on-demand goroutine dump, the latter wired to
// SIGQUIT by cmd/prodhub so a hung driver or deadlocked tick loop can be
// inspected without killing the process.
package diag

import (
	"fmt"
	"os"
	"runtime"
	"sync"
	"time"

	"github.com/mousetraptech/productionhub/internal/logging"
)

// REVISION: diag-v1-goroutine-dump
const revision = "diag-v1-goroutine-dump"

var log = logging.New("diag")

func init() {
	log.Debugf("REVISION: %s loaded", revision)
}

// Monitor periodically logs memory/goroutine stats and can dump every
// goroutine's stack on demand.
type Monitor struct {
	interval time.Duration

	stopCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// NewMonitor constructs a Monitor. interval <= 0 defaults to 30s.
func NewMonitor(interval time.Duration) *Monitor {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	return &Monitor{interval: interval, stopCh: make(chan struct{})}
}

// Start begins periodic logging on its own goroutine.
func (m *Monitor) Start() {
	m.wg.Add(1)
	go m.loop()
}

// Stop halts periodic logging and waits for the loop to exit.
func (m *Monitor) Stop() {
	m.stopOnce.Do(func() { close(m.stopCh) })
	m.wg.Wait()
}

func (m *Monitor) loop() {
	defer m.wg.Done()
	m.logStats("startup")

	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()
	for {
		select {
		case <-m.stopCh:
			m.logStats("shutdown")
			return
		case <-ticker.C:
			m.logStats("periodic")
		}
	}
}

func (m *Monitor) logStats(reason string) {
	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)
	log.Infof("memory[%s]: heap=%.1fMB sys=%.1fMB goroutines=%d",
		reason,
		float64(ms.HeapAlloc)/(1024*1024),
		float64(ms.Sys)/(1024*1024),
		runtime.NumGoroutine())
}

// DumpGoroutineStacks writes every goroutine's stack to stderr. Call this
// from a SIGQUIT handler when a driver or the tick loop appears hung.
func (m *Monitor) DumpGoroutineStacks() {
	log.Infof("dumping all goroutine stacks (count=%d)", runtime.NumGoroutine())
	buf := make([]byte, 1<<20)
	for {
		n := runtime.Stack(buf, true)
		if n < len(buf) {
			fmt.Fprintf(os.Stderr, "\n=== GOROUTINE DUMP ===\n%s\n=== END GOROUTINE DUMP ===\n", buf[:n])
			return
		}
		buf = make([]byte, len(buf)*2)
		if len(buf) > 64<<20 {
			fmt.Fprintf(os.Stderr, "\n=== GOROUTINE DUMP (truncated) ===\n%s\n=== END GOROUTINE DUMP ===\n", buf)
			return
		}
	}
}
