package diag

import (
	"testing"
	"time"
)

func TestStartStopDoesNotHang(t *testing.T) {
	m := NewMonitor(10 * time.Millisecond)
	m.Start()
	time.Sleep(35 * time.Millisecond)
	m.Stop()
}

func TestDumpGoroutineStacksDoesNotPanic(t *testing.T) {
	m := NewMonitor(time.Minute)
	m.DumpGoroutineStacks()
}
