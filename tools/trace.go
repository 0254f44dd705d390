package tools

import (
	"fmt"
	"io"

	"github.com/arcmem/arcmem/std/arc"
	"github.com/arcmem/arcmem/std/trace"
)

func dumpTrace(w io.Writer, path string, kindNames []string) error {
	kinds := make([]arc.EventKind, 0, len(kindNames))
	for _, name := range kindNames {
		k, ok := arc.ParseEventKind(name)
		if !ok {
			return fmt.Errorf("unknown event kind %q", name)
		}
		kinds = append(kinds, k)
	}

	db, err := trace.NewBadgerTracer(path)
	if err != nil {
		return err
	}
	defer db.Close()

	events, err := db.Events(kinds...)
	if err != nil {
		return err
	}
	for _, ev := range events {
		fmt.Fprintf(w, "%6d %-12s %-6s %-20q strong=%d weak=%d\n",
			ev.Seq, ev.Kind, ev.ID, ev.Label, ev.Strong, ev.Weak)
	}
	return nil
}
