package emit

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sync"
)

// LogEmitter writes events to a writer, either as human-readable lines or
// as JSONL for machine consumption.
//
// Text mode:
//
//	[step_complete] run=run-001 step=3 name=generate_code meta={"duration_ms":420}
//
// JSON mode:
//
//	{"run_id":"run-001","step":3,"step_name":"generate_code","msg":"step_complete","meta":{"duration_ms":420}}
type LogEmitter struct {
	mu       sync.Mutex
	writer   io.Writer
	jsonMode bool
}

// NewLogEmitter creates a LogEmitter. A nil writer defaults to os.Stdout.
func NewLogEmitter(writer io.Writer, jsonMode bool) *LogEmitter {
	if writer == nil {
		writer = os.Stdout
	}
	return &LogEmitter{writer: writer, jsonMode: jsonMode}
}

// Emit implements Emitter.
func (l *LogEmitter) Emit(event Event) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.jsonMode {
		l.emitJSON(event)
		return
	}
	l.emitText(event)
}

func (l *LogEmitter) emitJSON(event Event) {
	data, err := json.Marshal(struct {
		RunID    string         `json:"run_id"`
		Step     int            `json:"step"`
		StepName string         `json:"step_name"`
		Msg      string         `json:"msg"`
		Meta     map[string]any `json:"meta,omitempty"`
	}{event.RunID, event.Step, event.StepName, event.Msg, event.Meta})
	if err != nil {
		fmt.Fprintf(l.writer, "{\"error\":\"failed to marshal event: %v\"}\n", err)
		return
	}
	fmt.Fprintf(l.writer, "%s\n", data)
}

func (l *LogEmitter) emitText(event Event) {
	fmt.Fprintf(l.writer, "[%s] run=%s step=%d name=%s", event.Msg, event.RunID, event.Step, event.StepName)
	if len(event.Meta) > 0 {
		if metaJSON, err := json.Marshal(event.Meta); err == nil {
			fmt.Fprintf(l.writer, " meta=%s", metaJSON)
		}
	}
	fmt.Fprintln(l.writer)
}
