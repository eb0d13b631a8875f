package mcplog

import (
	"bufio"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
)

func readEntries(t *testing.T, path string) []CallEntry {
	t.Helper()
	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer f.Close()

	var got []CallEntry
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := scanner.Text()
		if line == "" {
			continue
		}
		var e CallEntry
		if err := json.Unmarshal([]byte(line), &e); err != nil {
			t.Fatalf("torn or invalid line %d %q: %v", len(got)+1, line, err)
		}
		got = append(got, e)
	}
	return got
}

func TestSanitizeParams(t *testing.T) {
	tests := []struct {
		name     string
		input    map[string]any
		wantKeys []string
		wantSkip []string
	}{
		{name: "nil map returns empty", input: nil},
		{
			name:     "short string passes through",
			input:    map[string]any{"path": "app.models.User"},
			wantKeys: []string{"path"},
		},
		{
			name:     "long string replaced with _len key",
			input:    map[string]any{"pattern": string(make([]byte, 200))},
			wantKeys: []string{"pattern_len"},
			wantSkip: []string{"pattern"},
		},
		{
			name:     "bool and number pass through",
			input:    map[string]any{"all": true, "limit": float64(10)},
			wantKeys: []string{"all", "limit"},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			out := SanitizeParams(tc.input)
			for _, k := range tc.wantKeys {
				if _, ok := out[k]; !ok {
					t.Errorf("expected key %q in output", k)
				}
			}
			for _, k := range tc.wantSkip {
				if _, ok := out[k]; ok {
					t.Errorf("unexpected key %q in output", k)
				}
			}
		})
	}
}

func TestNewCallEntry(t *testing.T) {
	start := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	Now = func() time.Time { return start.Add(12 * time.Millisecond) }
	defer func() { Now = time.Now }()

	result := mcp.NewToolResultText(`{"results":[]}`)
	e := NewCallEntry("lookup_by_name", map[string]any{"name": "save"}, start, result, nil)

	if e.Ts != "2026-01-02T03:04:05Z" {
		t.Errorf("ts=%q", e.Ts)
	}
	if e.DurationMs != 12 {
		t.Errorf("duration_ms=%d, want 12", e.DurationMs)
	}
	if e.ResponseBytes == 0 || e.TokensEst != e.ResponseBytes/4 {
		t.Errorf("response_bytes=%d tokens_est=%d", e.ResponseBytes, e.TokensEst)
	}
	if e.ToolError || e.Error != nil {
		t.Errorf("unexpected error markers: %+v", e)
	}

	failed := NewCallEntry("lookup_by_path", nil, start, mcp.NewToolResultError("no symbol"), nil)
	if !failed.ToolError {
		t.Errorf("tool error result not flagged")
	}

	broken := NewCallEntry("index_stats", nil, start, nil, errors.New("boom"))
	if broken.Error == nil || *broken.Error != "boom" || broken.ResponseBytes != 0 {
		t.Errorf("protocol error not recorded: %+v", broken)
	}
}

func TestLoggerWriteAndRead(t *testing.T) {
	path := filepath.Join(t.TempDir(), "calls.jsonl")

	logger, err := NewLogger(path)
	if err != nil {
		t.Fatalf("NewLogger: %v", err)
	}

	entries := []CallEntry{
		{Tool: "lookup_by_path", Params: map[string]any{"path": "app.User"}, DurationMs: 1},
		{Tool: "search_symbols", Params: map[string]any{"pattern": "*.save"}, DurationMs: 7},
		{Tool: "index_stats", Params: map[string]any{}, DurationMs: 2},
	}
	for _, e := range entries {
		if err := logger.Write(e); err != nil {
			t.Fatalf("Write: %v", err)
		}
	}
	if err := logger.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	got := readEntries(t, path)
	if len(got) != len(entries) {
		t.Fatalf("got %d lines, want %d", len(got), len(entries))
	}
	for i, e := range entries {
		if got[i].Tool != e.Tool || got[i].DurationMs != e.DurationMs {
			t.Errorf("line %d: got %+v, want %+v", i, got[i], e)
		}
	}
}

func TestLoggerConcurrency(t *testing.T) {
	path := filepath.Join(t.TempDir(), "concurrent.jsonl")
	logger, err := NewLogger(path)
	if err != nil {
		t.Fatalf("NewLogger: %v", err)
	}

	const goroutines = 50
	const writesEach = 10

	var wg sync.WaitGroup
	for range goroutines {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range writesEach {
				_ = logger.Write(CallEntry{Tool: "lookup_by_decorator"})
			}
		}()
	}
	wg.Wait()
	if err := logger.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	if got := len(readEntries(t, path)); got != goroutines*writesEach {
		t.Errorf("got %d lines, want %d", got, goroutines*writesEach)
	}
}

func TestNewLoggerCreatesDirectory(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".symdex", "logs", "mcp.jsonl")

	logger, err := NewLogger(path)
	if err != nil {
		t.Fatalf("NewLogger: %v", err)
	}
	defer logger.Close()

	if _, err := os.Stat(path); err != nil {
		t.Errorf("log file not created: %v", err)
	}
}

func TestNewLoggerEmptyPath(t *testing.T) {
	logger, err := NewLogger("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if logger != nil {
		t.Errorf("expected nil logger for empty path")
	}
}
