package logging

import (
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"
)

func writeLoggingConfig(t *testing.T, root, body string) {
	t.Helper()
	if err := os.MkdirAll(root, 0755); err != nil {
		t.Fatalf("failed to create data root: %v", err)
	}
	if err := os.WriteFile(filepath.Join(root, "config.yaml"), []byte(body), 0644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}
}

func readCategoryLog(t *testing.T, root string, cat Category) string {
	t.Helper()
	pattern := filepath.Join(root, "logs", "*_"+string(cat)+".log")
	matches, err := filepath.Glob(pattern)
	if err != nil {
		t.Fatalf("glob failed: %v", err)
	}
	if len(matches) == 0 {
		return ""
	}
	data, err := os.ReadFile(matches[0])
	if err != nil {
		t.Fatalf("failed to read log: %v", err)
	}
	return string(data)
}

func TestHeartbeatLogsWithoutDebugMode(t *testing.T) {
	root := t.TempDir()
	defer CloseAll()

	// No config file at all: production mode
	if err := Initialize(root); err != nil {
		t.Fatalf("Initialize failed: %v", err)
	}

	Heartbeat("pulse 1 level=standard memories=0")
	Store("should not appear")
	CloseAll()

	hb := readCategoryLog(t, root, CategoryHeartbeat)
	if !strings.Contains(hb, "pulse 1") {
		t.Errorf("heartbeat log missing pulse line, got: %q", hb)
	}
	if got := readCategoryLog(t, root, CategoryStore); got != "" {
		t.Errorf("store category should be silent in production mode, got: %q", got)
	}
}

func TestRequestLogAlwaysOn(t *testing.T) {
	root := t.TempDir()
	defer CloseAll()

	if err := Initialize(root); err != nil {
		t.Fatalf("Initialize failed: %v", err)
	}

	WithRequestID(CategoryRequest, "req-123").Info("command=%s duration=%s", "status", "1ms")
	CloseAll()

	req := readCategoryLog(t, root, CategoryRequest)
	if !strings.Contains(req, "[req:req-123]") {
		t.Errorf("request log missing correlation id, got: %q", req)
	}
	if !strings.Contains(req, "command=status") {
		t.Errorf("request log missing command, got: %q", req)
	}
}

func TestDebugModeEnablesCategories(t *testing.T) {
	root := t.TempDir()
	defer CloseAll()

	writeLoggingConfig(t, root, "logging:\n  debug_mode: true\n  level: debug\n")
	if err := Initialize(root); err != nil {
		t.Fatalf("Initialize failed: %v", err)
	}

	cats := []Category{
		CategoryBoot, CategorySocket, CategoryDispatch, CategoryStore,
		CategoryBridge, CategoryScheduler, CategoryEvolution, CategoryVoice,
		CategoryCorrespondent, CategoryGeneral,
	}
	for _, cat := range cats {
		Get(cat).Info("hello from %s", cat)
	}
	CloseAll()

	for _, cat := range cats {
		content := readCategoryLog(t, root, cat)
		if !strings.Contains(content, "hello from "+string(cat)) {
			t.Errorf("category %s did not log, got: %q", cat, content)
		}
	}
}

func TestCategoryFilter(t *testing.T) {
	root := t.TempDir()
	defer CloseAll()

	writeLoggingConfig(t, root, `logging:
  debug_mode: true
  level: debug
  categories:
    store: false
    bridge: true
`)
	if err := Initialize(root); err != nil {
		t.Fatalf("Initialize failed: %v", err)
	}

	if IsCategoryEnabled(CategoryStore) {
		t.Error("store should be disabled by category filter")
	}
	if !IsCategoryEnabled(CategoryBridge) {
		t.Error("bridge should be enabled")
	}
	// Heartbeat ignores the filter entirely
	if !IsCategoryEnabled(CategoryHeartbeat) {
		t.Error("heartbeat must stay enabled")
	}
}

func TestTimerLogsDuration(t *testing.T) {
	root := t.TempDir()
	defer CloseAll()

	writeLoggingConfig(t, root, "logging:\n  debug_mode: true\n  level: debug\n")
	if err := Initialize(root); err != nil {
		t.Fatalf("Initialize failed: %v", err)
	}

	timer := StartTimer(CategoryStore, "RecordConversation")
	time.Sleep(5 * time.Millisecond)
	elapsed := timer.Stop()
	if elapsed < 5*time.Millisecond {
		t.Errorf("elapsed too small: %v", elapsed)
	}
	CloseAll()

	content := readCategoryLog(t, root, CategoryStore)
	if !strings.Contains(content, "RecordConversation completed in") {
		t.Errorf("timer line missing, got: %q", content)
	}
}

func TestConcurrentGetIsSafe(t *testing.T) {
	root := t.TempDir()
	defer CloseAll()

	writeLoggingConfig(t, root, "logging:\n  debug_mode: true\n  level: debug\n")
	if err := Initialize(root); err != nil {
		t.Fatalf("Initialize failed: %v", err)
	}

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			Get(CategoryBridge).Info("writer %d", n)
		}(i)
	}
	wg.Wait()
	CloseAll()

	content := readCategoryLog(t, root, CategoryBridge)
	if content == "" {
		t.Error("expected concurrent writes to land in the bridge log")
	}
}
