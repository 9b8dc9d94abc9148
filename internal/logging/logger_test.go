package logging

import (
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
)

func resetState(t *testing.T) {
	t.Helper()
	CloseAll()
	setLogsDir("")
	Configure(Options{})
	t.Cleanup(func() {
		CloseAll()
		setLogsDir("")
		Configure(Options{})
	})
}

// TestAllCategoriesLog tests that all categories create log files when debug mode is on
func TestAllCategoriesLog(t *testing.T) {
	resetState(t)
	tempDir := t.TempDir()

	if err := Initialize(tempDir, Options{DebugMode: true, Level: "debug"}); err != nil {
		t.Fatalf("Failed to initialize logging: %v", err)
	}
	if !IsDebugMode() {
		t.Error("Expected debug mode to be enabled")
	}

	categories := []Category{
		CategoryBoot,
		CategoryConfig,
		CategorySections,
		CategoryCache,
		CategoryManifest,
		CategoryNetwork,
		CategoryStore,
		CategoryPipeline,
	}

	for _, cat := range categories {
		if !IsCategoryEnabled(cat) {
			t.Errorf("Category %s should be enabled", cat)
		}
		logger := Get(cat)
		logger.Info("Test info message for %s", cat)
		logger.Debug("Test debug message for %s", cat)
		logger.Warn("Test warn message for %s", cat)
		logger.Error("Test error message for %s", cat)
	}

	Config("Convenience config log")
	Sections("Convenience sections log")
	Cache("Convenience cache log")
	Manifest("Convenience manifest log")
	Network("Convenience network log")
	Store("Convenience store log")
	Pipeline("Convenience pipeline log")

	CloseAll()

	logsPath := filepath.Join(tempDir, ".payloadforge", "logs")
	entries, err := os.ReadDir(logsPath)
	if err != nil {
		t.Fatalf("Failed to read logs dir: %v", err)
	}

	for _, cat := range categories {
		found := false
		for _, entry := range entries {
			if strings.HasSuffix(entry.Name(), "_"+string(cat)+".log") {
				found = true
				content, err := os.ReadFile(filepath.Join(logsPath, entry.Name()))
				if err != nil {
					t.Errorf("Failed to read log file for %s: %v", cat, err)
					continue
				}
				if !strings.Contains(string(content), "Test warn message for "+string(cat)) {
					t.Errorf("Log file for %s missing warn entry:\n%s", cat, content)
				}
				break
			}
		}
		if !found {
			t.Errorf("No log file found for category: %s", cat)
		}
	}
}

// TestDebugModeDisabled tests that no logs are created when debug mode is off
func TestDebugModeDisabled(t *testing.T) {
	resetState(t)
	tempDir := t.TempDir()

	if err := Initialize(tempDir, Options{DebugMode: false}); err != nil {
		t.Fatalf("Failed to initialize logging: %v", err)
	}
	if IsDebugMode() {
		t.Error("Expected debug mode to be disabled")
	}

	Cache("should not be written")
	Get(CategorySections).Error("should not be written either")
	CloseAll()

	if _, err := os.Stat(filepath.Join(tempDir, ".payloadforge", "logs")); !os.IsNotExist(err) {
		t.Errorf("logs directory should not exist in production mode, stat err=%v", err)
	}
}

func TestCategoryFilter(t *testing.T) {
	resetState(t)
	tempDir := t.TempDir()

	err := Initialize(tempDir, Options{
		DebugMode:  true,
		Categories: map[string]bool{"network": false},
	})
	if err != nil {
		t.Fatalf("Failed to initialize logging: %v", err)
	}

	if IsCategoryEnabled(CategoryNetwork) {
		t.Error("network category should be disabled")
	}
	if !IsCategoryEnabled(CategoryCache) {
		t.Error("categories missing from the filter default to enabled")
	}
}

func TestLevelFiltering(t *testing.T) {
	resetState(t)
	tempDir := t.TempDir()

	if err := Initialize(tempDir, Options{DebugMode: true, Level: "warn", JSONFormat: true}); err != nil {
		t.Fatalf("Failed to initialize logging: %v", err)
	}

	Get(CategoryStore).Info("info line")
	Get(CategoryStore).Warn("warn line")
	CloseAll()

	matches, _ := filepath.Glob(filepath.Join(tempDir, ".payloadforge", "logs", "*_store.log"))
	if len(matches) != 1 {
		t.Fatalf("expected one store log, got %v", matches)
	}
	content, err := os.ReadFile(matches[0])
	if err != nil {
		t.Fatal(err)
	}
	if strings.Contains(string(content), "info line") {
		t.Error("info entry should be filtered at warn level")
	}
	if !strings.Contains(string(content), `"msg":"warn line"`) {
		t.Errorf("expected JSON warn entry, got:\n%s", content)
	}
}

// TestConcurrentInitializeAndGet exercises the workspace swap against
// loggers being fetched from other goroutines; run with -race.
func TestConcurrentInitializeAndGet(t *testing.T) {
	resetState(t)
	dirs := []string{t.TempDir(), t.TempDir()}

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(2)
		go func(i int) {
			defer wg.Done()
			if err := Initialize(dirs[i%2], Options{DebugMode: true}); err != nil {
				t.Errorf("Initialize: %v", err)
			}
		}(i)
		go func() {
			defer wg.Done()
			for j := 0; j < 20; j++ {
				Get(CategoryCache).Info("line %d", j)
			}
		}()
	}
	wg.Wait()
}

func TestDebugModeEnabledAfterInitialize(t *testing.T) {
	resetState(t)
	tempDir := t.TempDir()

	if err := Initialize(tempDir, Options{DebugMode: false}); err != nil {
		t.Fatalf("Failed to initialize logging: %v", err)
	}
	Configure(Options{DebugMode: true})
	Manifest("written once debug mode is on")
	CloseAll()

	matches, _ := filepath.Glob(filepath.Join(tempDir, ".payloadforge", "logs", "*_manifest.log"))
	if len(matches) != 1 {
		t.Fatalf("expected one manifest log, got %v", matches)
	}
}

func TestInitializeRequiresWorkspace(t *testing.T) {
	resetState(t)
	if err := Initialize("", Options{}); err == nil {
		t.Error("expected error for empty workspace")
	}
}

func TestTimer(t *testing.T) {
	resetState(t)
	timer := StartTimer(CategoryCache, "resolve")
	if elapsed := timer.Stop(); elapsed < 0 {
		t.Errorf("negative elapsed time %v", elapsed)
	}
}
