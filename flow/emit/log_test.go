package emit

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
)

func TestLogEmitterText(t *testing.T) {
	var buf bytes.Buffer
	e := NewLogEmitter(&buf, false)

	e.Emit(Event{
		ExecutionID: "e1", WorkflowID: "wf-1", NodeID: "fetch", Level: 1,
		Msg: "node_end", Meta: map[string]any{"status": "success"},
	})
	e.Emit(Event{ExecutionID: "e1", WorkflowID: "wf-1", Level: -1, Msg: "workflow_end"})

	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	if len(lines) != 2 {
		t.Fatalf("lines = %d: %q", len(lines), buf.String())
	}
	if !strings.HasPrefix(lines[0], "[node_end] execution=e1 workflow=wf-1 level=1 node=fetch") {
		t.Errorf("line = %q", lines[0])
	}
	if !strings.Contains(lines[0], `meta={"status":"success"}`) {
		t.Errorf("meta missing: %q", lines[0])
	}
	if strings.Contains(lines[1], "node=") || strings.Contains(lines[1], "meta=") {
		t.Errorf("empty fields rendered: %q", lines[1])
	}
}

func TestLogEmitterJSON(t *testing.T) {
	var buf bytes.Buffer
	e := NewLogEmitter(&buf, true)

	e.Emit(Event{ExecutionID: "e1", WorkflowID: "wf-1", Level: 0, Msg: "workflow_start"})

	var decoded map[string]any
	if err := json.Unmarshal(buf.Bytes(), &decoded); err != nil {
		t.Fatalf("not one JSON object per line: %v", err)
	}
	if decoded["executionId"] != "e1" || decoded["msg"] != "workflow_start" {
		t.Errorf("decoded = %v", decoded)
	}
	if _, ok := decoded["nodeId"]; ok {
		t.Error("empty nodeId serialized")
	}
}
