package tools

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/arcmem/arcmem/std/arc"
	"github.com/arcmem/arcmem/std/log"
	"github.com/arcmem/arcmem/std/trace"
	"github.com/arcmem/arcmem/std/utils/toolutils"
)

// Env holds what the configuration opened: the logger and trace sinks.
type Env struct {
	Config *Config
	Log    *log.Logger

	Memory *trace.MemoryTracer
	Badger *trace.BadgerTracer
	tracer arc.Tracer

	logFile *os.File
}

// Open creates the logger and tracer described by c. stderr receives
// log output when no log file is configured.
func (c *Config) Open(stderr io.Writer) (env *Env, err error) {
	env = &Env{Config: c}

	out := stderr
	if c.Core.LogFile != "" {
		env.logFile, err = os.Create(c.Core.LogFile)
		if err != nil {
			return nil, err
		}
		out = env.logFile
	}
	if c.Core.LogJson {
		env.Log = log.NewJson(out)
	} else {
		env.Log = log.NewText(out)
	}
	env.Log.SetLevel(c.Level())

	switch c.Trace.Backend {
	case TraceMemory:
		env.Memory = trace.NewMemoryTracer()
		env.tracer = env.Memory
	case TraceLog:
		env.tracer = trace.LogTracer{Logger: env.Log}
		if !env.Log.Enabled(log.LevelTrace) {
			env.Log.Warn(env, "Trace backend is log but the log level hides TRACE lines")
		}
	case TraceBadger:
		env.Badger, err = trace.NewBadgerTracer(c.Trace.Path)
		if err != nil {
			env.Close()
			return nil, err
		}
		env.tracer = env.Badger
	}

	return env, nil
}

func (e *Env) String() string {
	return "arcmem"
}

// ArcOptions returns registry options wired to the logger and tracer.
func (e *Env) ArcOptions() arc.Options {
	return arc.Options{
		Synchronized: e.Config.Registry.Synchronized,
		Stripes:      e.Config.Registry.Stripes,
		Tracer:       e.tracer,
		Logger:       e.Log,
	}
}

// WriteSummary prints the number of traced events per kind, for the
// memory backend.
func (e *Env) WriteSummary(w io.Writer) {
	if e.Memory == nil {
		return
	}
	counts := map[arc.EventKind]int{}
	for _, ev := range e.Memory.Events() {
		counts[ev.Kind]++
	}
	p := toolutils.StatusPrinter{Out: w, Padding: 14}
	for k := arc.EventAlloc; k <= arc.EventFatal; k++ {
		if counts[k] > 0 {
			p.Print(k.String(), counts[k])
		}
	}
}

// Close flushes the trace and closes the log file.
func (e *Env) Close() error {
	var errs []error
	if e.Badger != nil {
		if err := e.Badger.Close(); err != nil {
			errs = append(errs, fmt.Errorf("trace: %w", err))
		}
		e.Badger = nil
	}
	if e.logFile != nil {
		errs = append(errs, e.logFile.Close())
		e.logFile = nil
	}
	return errors.Join(errs...)
}
