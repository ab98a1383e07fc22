// Package prof wraps the runtime profilers behind a per-run recorder.
package prof

import (
	"os"
	"runtime"
	"runtime/pprof"
	"runtime/trace"
)

// Recorder owns the profile files of one CLI run. The zero value is ready
// to use; Stop is safe without a matching Start.
type Recorder struct {
	cpuFile   *os.File
	traceFile *os.File
}

// StartCPU enables CPU profiling and writes samples to the provided path.
func (r *Recorder) StartCPU(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := pprof.StartCPUProfile(f); err != nil {
		_ = f.Close()
		return err
	}
	r.cpuFile = f
	return nil
}

// StopCPU stops an active CPU profile and closes the underlying file.
func (r *Recorder) StopCPU() {
	if r.cpuFile == nil {
		return
	}
	pprof.StopCPUProfile()
	_ = r.cpuFile.Close()
	r.cpuFile = nil
}

// WriteMem captures a heap profile to the supplied file path.
func (r *Recorder) WriteMem(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	runtime.GC()
	if err := pprof.WriteHeapProfile(f); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

// StartTrace writes runtime trace data to the provided path.
func (r *Recorder) StartTrace(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := trace.Start(f); err != nil {
		_ = f.Close()
		return err
	}
	r.traceFile = f
	return nil
}

// StopTrace ends an active runtime trace and closes the file.
func (r *Recorder) StopTrace() {
	trace.Stop()
	if r.traceFile != nil {
		_ = r.traceFile.Close()
		r.traceFile = nil
	}
}
