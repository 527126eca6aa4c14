package main

import (
	"bytes"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/nao1215/blurguard/internal/config"
	"github.com/nao1215/blurguard/internal/model"
)

const testPage = `<!DOCTYPE html><html><head></head><body>` +
	`<p id="contact">Write to admin@example.com</p>` +
	`<p id="host">Server at 192.168.0.10</p>` +
	`</body></html>`

// writeFile writes content to name under dir and returns the path.
func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()

	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatalf("failed to write %s: %v", path, err)
	}
	return path
}

// jsonSummary is the part of a JSON report the tests look at.
type jsonSummary struct {
	Summary struct {
		Units     int            `json:"units"`
		Documents int            `json:"documents"`
		ByKind    map[string]int `json:"by_kind"`
	} `json:"summary"`
}

func readSummary(t *testing.T, path string) jsonSummary {
	t.Helper()

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("failed to read report: %v", err)
	}
	var s jsonSummary
	if err := json.Unmarshal(data, &s); err != nil {
		t.Fatalf("failed to decode report %q: %v", data, err)
	}
	return s
}

// TestNewRenderCmd tests the render command creation.
func TestNewRenderCmd(t *testing.T) {
	t.Parallel()

	cmd := NewRenderCmd()

	flags := []struct {
		name      string
		shorthand string
	}{
		{name: "output-dir", shorthand: "d"},
		{name: "no-stylesheet"},
		{name: "hide-emails"},
		{name: "hide-ips"},
		{name: "db-dir"},
		{name: "no-store"},
		{name: "script", shorthand: "s"},
		{name: "rescan-interval"},
		{name: "timeout", shorthand: "t"},
		{name: "batch", shorthand: "b"},
		{name: "config", shorthand: "c"},
		{name: "json", shorthand: "j"},
		{name: "markdown", shorthand: "m"},
		{name: "report-file", shorthand: "o"},
	}
	for _, tt := range flags {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			flag := cmd.Flags().Lookup(tt.name)
			if flag == nil {
				t.Fatalf("expected %s flag", tt.name)
			}
			if flag.Shorthand != tt.shorthand {
				t.Errorf("expected shorthand %q, got %q", tt.shorthand, flag.Shorthand)
			}
		})
	}
}

// TestBuildConfig tests configuration building from flags.
func TestBuildConfig(t *testing.T) {
	t.Parallel()

	t.Run("builds config with default values", func(t *testing.T) {
		t.Parallel()
		cmd := NewRenderCmd()
		cfg, err := buildConfig(cmd, []string{"page.html"})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		if len(cfg.Inputs) != 1 || cfg.Inputs[0] != "page.html" {
			t.Errorf("expected inputs [page.html], got %v", cfg.Inputs)
		}
		if cfg.HideEmails != nil || cfg.HideIps != nil {
			t.Error("expected no settings override")
		}
		if cfg.RescanInterval != config.DefaultRescanInterval {
			t.Errorf("expected rescan interval %v, got %v", config.DefaultRescanInterval, cfg.RescanInterval)
		}
		if cfg.BatchSize != config.DefaultBatchSize {
			t.Errorf("expected batch size %d, got %d", config.DefaultBatchSize, cfg.BatchSize)
		}
	})

	t.Run("given settings flags override", func(t *testing.T) {
		t.Parallel()
		cmd := NewRenderCmd()
		if err := cmd.ParseFlags([]string{"--hide-ips=false"}); err != nil {
			t.Fatalf("failed to parse flags: %v", err)
		}
		cfg, err := buildConfig(cmd, []string{"page.html"})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if cfg.HideIps == nil || *cfg.HideIps {
			t.Errorf("expected hideIps override false, got %v", cfg.HideIps)
		}
		if cfg.HideEmails != nil {
			t.Error("expected no hideEmails override")
		}
	})

	t.Run("builds config with custom values", func(t *testing.T) {
		t.Parallel()
		cmd := NewRenderCmd()
		err := cmd.ParseFlags([]string{
			"-d", "out", "--no-stylesheet", "--rescan-interval", "0",
			"-t", "5s", "-b", "2", "-j", "-o", "report.json", "--no-store",
		})
		if err != nil {
			t.Fatalf("failed to parse flags: %v", err)
		}
		cfg, err := buildConfig(cmd, []string{"a.html", "b.html"})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		if cfg.OutputDir != "out" || !cfg.NoStylesheet || !cfg.NoStore {
			t.Errorf("unexpected output settings: %+v", cfg)
		}
		if cfg.RescanInterval != 0 || cfg.Timeout != 5*time.Second || cfg.BatchSize != 2 {
			t.Errorf("unexpected session settings: %+v", cfg)
		}
		if !cfg.JSONReport || cfg.ReportFile != "report.json" {
			t.Errorf("unexpected report settings: %+v", cfg)
		}
	})

	t.Run("inspect has no output flags", func(t *testing.T) {
		t.Parallel()
		cmd := NewInspectCmd()
		cfg, err := buildConfig(cmd, []string{"page.html"})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if cfg.OutputDir != "" || cfg.NoStylesheet {
			t.Errorf("unexpected output settings: %+v", cfg)
		}
	})

	t.Run("loads config file when specified", func(t *testing.T) {
		t.Parallel()
		configFile := writeFile(t, t.TempDir(), ".blurguard", `defaults:
  hideIps: false
documents:
  "admin-*.html":
    stylesheet: false
`)

		cmd := NewRenderCmd()
		if err := cmd.ParseFlags([]string{"--config", configFile}); err != nil {
			t.Fatalf("failed to parse flags: %v", err)
		}
		cfg, err := buildConfig(cmd, []string{"page.html"})
		if err != nil {
			t.Fatalf("buildConfig() error = %v", err)
		}
		if cfg.DocumentConfigs == nil {
			t.Fatal("expected DocumentConfigs to be loaded")
		}
		if cfg.ConfigFilePath != configFile {
			t.Errorf("expected ConfigFilePath %q, got %q", configFile, cfg.ConfigFilePath)
		}
		if len(cfg.DocumentConfigs.Documents) != 1 {
			t.Errorf("expected 1 document pattern, got %d", len(cfg.DocumentConfigs.Documents))
		}
	})

	t.Run("returns error for missing explicit config file", func(t *testing.T) {
		t.Parallel()
		cmd := NewRenderCmd()
		missing := filepath.Join(t.TempDir(), "missing.yaml")
		if err := cmd.ParseFlags([]string{"--config", missing}); err != nil {
			t.Fatalf("failed to parse flags: %v", err)
		}
		if _, err := buildConfig(cmd, []string{"page.html"}); err == nil {
			t.Error("expected error for missing config file")
		}
	})

	t.Run("returns error for invalid config file", func(t *testing.T) {
		t.Parallel()
		configFile := writeFile(t, t.TempDir(), ".blurguard", "invalid: yaml: content: [")

		cmd := NewRenderCmd()
		if err := cmd.ParseFlags([]string{"--config", configFile}); err != nil {
			t.Fatalf("failed to parse flags: %v", err)
		}
		if _, err := buildConfig(cmd, []string{"page.html"}); err == nil {
			t.Error("expected error for invalid config file")
		}
	})
}

// TestGetVerboseFlag tests reading the persistent verbose flag.
func TestGetVerboseFlag(t *testing.T) {
	t.Parallel()

	t.Run("false without parent", func(t *testing.T) {
		t.Parallel()
		if getVerboseFlag(NewRenderCmd()) {
			t.Error("expected false")
		}
	})

	t.Run("reads parent flag", func(t *testing.T) {
		t.Parallel()
		root := NewRootCmd()
		if err := root.PersistentFlags().Set("verbose", "true"); err != nil {
			t.Fatalf("failed to set flag: %v", err)
		}
		render, _, err := root.Find([]string{"render"})
		if err != nil {
			t.Fatalf("failed to find render: %v", err)
		}
		if !getVerboseFlag(render) {
			t.Error("expected true from parent verbose flag")
		}
	})
}

func TestBuildJobs(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	script := writeFile(t, dir, "session.yaml", `steps:
  - action: reconcile
`)
	other := writeFile(t, dir, "other.yaml", `steps:
  - action: wait
    duration: 1ms
  - action: reconcile
`)
	off, on := false, true

	cfg := config.NewConfig()
	cfg.Inputs = []string{"news.html", "admin/users.html", "plain.html"}
	cfg.HideEmails = &on
	cfg.ScriptPath = script
	cfg.DocumentConfigs = &config.File{
		Defaults: config.DocumentConfig{HideEmails: &off},
		Documents: map[string]config.DocumentConfig{
			"admin/*": {HideIps: &off, Script: other, Stylesheet: &off},
		},
	}

	jobs, err := buildJobs(cfg)
	if err != nil {
		t.Fatalf("buildJobs() error = %v", err)
	}
	if len(jobs) != 3 {
		t.Fatalf("got %d jobs, want 3", len(jobs))
	}

	for _, job := range jobs {
		// The command-line flag wins over the file.
		if job.HideEmails == nil || !*job.HideEmails {
			t.Errorf("%s: expected hideEmails true", job.Path)
		}
	}

	admin := jobs[1]
	if admin.HideIps == nil || *admin.HideIps {
		t.Errorf("admin: expected hideIps false, got %v", admin.HideIps)
	}
	if !admin.NoStylesheet {
		t.Error("admin: expected stylesheet disabled")
	}
	if admin.Script == nil || len(admin.Script.Steps) != 2 {
		t.Error("admin: expected the document script")
	}

	if jobs[0].HideIps != nil || jobs[0].NoStylesheet {
		t.Error("news: expected no overrides")
	}
	if jobs[0].Script == nil || len(jobs[0].Script.Steps) != 1 {
		t.Error("news: expected the --script script")
	}
	if jobs[0].Script != jobs[2].Script {
		t.Error("expected one script loaded once per path")
	}

	t.Run("missing script fails", func(t *testing.T) {
		t.Parallel()
		cfg := config.NewConfig()
		cfg.Inputs = []string{"page.html"}
		cfg.ScriptPath = filepath.Join(t.TempDir(), "missing.yaml")
		if _, err := buildJobs(cfg); err == nil {
			t.Error("expected error")
		}
	})
}

func TestRunRenderCmd(t *testing.T) {
	t.Parallel()

	t.Run("renders to output dir with JSON report", func(t *testing.T) {
		t.Parallel()
		dir := t.TempDir()
		input := writeFile(t, dir, "page.html", testPage)
		outDir := filepath.Join(dir, "out")
		reportFile := filepath.Join(dir, "reports", "report.json")

		_, err := runRoot(t, "render", "--no-store", "--rescan-interval", "0",
			"-d", outDir, "-j", "-o", reportFile, input)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		rendered, err := os.ReadFile(filepath.Join(outDir, "page.html"))
		if err != nil {
			t.Fatalf("failed to read rendered document: %v", err)
		}
		for _, want := range []string{`data-kind="email"`, `data-type="ip"`, "sb-wrapper", "<style"} {
			if !strings.Contains(string(rendered), want) {
				t.Errorf("expected rendered document to contain %q", want)
			}
		}

		s := readSummary(t, reportFile)
		if s.Summary.Units != 2 {
			t.Errorf("got %d units, want 2", s.Summary.Units)
		}
	})

	t.Run("single document goes to stdout", func(t *testing.T) {
		t.Parallel()
		input := writeFile(t, t.TempDir(), "page.html", testPage)

		var stdout, stderr bytes.Buffer
		cmd := NewRootCmd()
		cmd.SetOut(&stdout)
		cmd.SetErr(&stderr)
		cmd.SetArgs([]string{"render", "--no-store", "--no-stylesheet", "--rescan-interval", "0", input})
		if err := cmd.Execute(); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		if !strings.Contains(stdout.String(), "sb-wrapper") {
			t.Errorf("expected rendered document on stdout, got %q", stdout.String())
		}
		if strings.Contains(stdout.String(), "<style") {
			t.Error("expected no stylesheet")
		}
		if !strings.Contains(stderr.String(), "page.html") {
			t.Errorf("expected report on stderr, got %q", stderr.String())
		}
	})

	t.Run("settings override hides nothing", func(t *testing.T) {
		t.Parallel()
		dir := t.TempDir()
		input := writeFile(t, dir, "page.html", testPage)
		outDir := filepath.Join(dir, "out")

		_, err := runRoot(t, "render", "--no-store", "--rescan-interval", "0",
			"--hide-emails=false", "--hide-ips=false", "-d", outDir, input)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		rendered, err := os.ReadFile(filepath.Join(outDir, "page.html"))
		if err != nil {
			t.Fatalf("failed to read rendered document: %v", err)
		}
		if strings.Contains(string(rendered), "sb-wrapper") {
			t.Error("expected no concealment units")
		}
	})

	t.Run("reads stored settings", func(t *testing.T) {
		t.Parallel()
		dir := t.TempDir()
		dbDir := filepath.Join(dir, "db")
		input := writeFile(t, dir, "page.html", testPage)
		outDir := filepath.Join(dir, "out")
		reportFile := filepath.Join(dir, "report.json")

		if _, err := runRoot(t, "settings", "set", "--hide-emails=false", "--db-dir", dbDir); err != nil {
			t.Fatalf("settings set: %v", err)
		}
		_, err := runRoot(t, "render", "--db-dir", dbDir, "--rescan-interval", "0",
			"-d", outDir, "-j", "-o", reportFile, input)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		s := readSummary(t, reportFile)
		if s.Summary.ByKind["email"] != 0 {
			t.Errorf("expected no email units, got %d", s.Summary.ByKind["email"])
		}
		if s.Summary.Units != 1 {
			t.Errorf("got %d units, want 1", s.Summary.Units)
		}
	})

	t.Run("batch writes every document", func(t *testing.T) {
		t.Parallel()
		dir := t.TempDir()
		a := writeFile(t, dir, "a.html", testPage)
		b := writeFile(t, dir, "b.html", `<p>only text</p>`)
		outDir := filepath.Join(dir, "out")
		reportFile := filepath.Join(dir, "report.json")

		_, err := runRoot(t, "render", "--no-store", "--rescan-interval", "0",
			"-b", "2", "-d", outDir, "-j", "-o", reportFile, a, b)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		for _, name := range []string{"a.html", "b.html"} {
			if _, err := os.Stat(filepath.Join(outDir, name)); err != nil {
				t.Errorf("expected %s: %v", name, err)
			}
		}
		s := readSummary(t, reportFile)
		if s.Summary.Documents != 2 || s.Summary.Units != 2 {
			t.Errorf("unexpected batch summary %+v", s.Summary)
		}
	})

	t.Run("replay script conceals appended content", func(t *testing.T) {
		t.Parallel()
		dir := t.TempDir()
		input := writeFile(t, dir, "page.html", `<html><body><div id="log"></div></body></html>`)
		script := writeFile(t, dir, "session.yaml", `steps:
  - action: append
    target: "#log"
    html: "<p>late@example.com</p>"
`)
		outDir := filepath.Join(dir, "out")

		_, err := runRoot(t, "render", "--no-store", "--rescan-interval", "0",
			"-s", script, "-d", outDir, input)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		rendered, err := os.ReadFile(filepath.Join(outDir, "page.html"))
		if err != nil {
			t.Fatalf("failed to read rendered document: %v", err)
		}
		if !strings.Contains(string(rendered), `data-kind="email"`) {
			t.Errorf("expected appended email to be concealed: %s", rendered)
		}
	})

	t.Run("missing input fails", func(t *testing.T) {
		t.Parallel()
		dir := t.TempDir()

		_, err := runRoot(t, "render", "--no-store", "-d", filepath.Join(dir, "out"),
			filepath.Join(dir, "missing.html"))
		if err == nil {
			t.Fatal("expected error")
		}
		if !strings.Contains(err.Error(), "1 of 1 document(s) failed") {
			t.Errorf("unexpected error: %v", err)
		}
	})

	t.Run("conflicting formats", func(t *testing.T) {
		t.Parallel()
		_, err := runRoot(t, "render", "--no-store", "-j", "-m", "page.html")
		if err == nil {
			t.Fatal("expected error")
		}
		if !strings.Contains(err.Error(), "configuration error") {
			t.Errorf("unexpected error: %v", err)
		}
	})

	t.Run("no inputs", func(t *testing.T) {
		t.Parallel()
		if _, err := runRoot(t, "render", "--no-store"); err == nil {
			t.Error("expected error")
		}
	})
}

func TestRunInspectCmd(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	a := writeFile(t, dir, "a.html", testPage)
	b := writeFile(t, dir, "b.html", testPage)

	out, err := runRoot(t, "inspect", "--no-store", "--rescan-interval", "0", "-j", a, b)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var s jsonSummary
	if err := json.Unmarshal([]byte(out), &s); err != nil {
		t.Fatalf("failed to decode %q: %v", out, err)
	}
	if s.Summary.Documents != 2 || s.Summary.Units != 4 {
		t.Errorf("unexpected summary %+v", s.Summary)
	}
	if strings.Contains(out, "admin@example.com") {
		t.Error("report must not carry concealed values")
	}
	if _, err := os.Stat(filepath.Join(dir, "out")); err == nil {
		t.Error("inspect must not write documents")
	}
}

func TestOutputReport(t *testing.T) {
	t.Parallel()

	newReport := func(path string) *model.DocumentReport {
		r := model.NewDocumentReport(path)
		r.TextNodes = 3
		return r
	}

	tests := []struct {
		name     string
		modify   func(*config.Config)
		reports  int
		contains string
	}{
		{name: "simple", modify: func(*config.Config) {}, reports: 1, contains: "page-0.html"},
		{name: "json", modify: func(c *config.Config) { c.JSONReport = true }, reports: 1, contains: `"summary"`},
		{name: "markdown", modify: func(c *config.Config) { c.MarkdownReport = true }, reports: 1, contains: "# blurguard Report"},
		{name: "markdown batch", modify: func(c *config.Config) { c.MarkdownReport = true }, reports: 2, contains: "# blurguard Batch Report"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			cfg := config.NewConfig()
			tt.modify(cfg)

			reports := make([]*model.DocumentReport, tt.reports)
			for i := range reports {
				reports[i] = newReport("page-" + string(rune('0'+i)) + ".html")
			}

			var buf bytes.Buffer
			if err := outputReport(cfg, &buf, reports); err != nil {
				t.Fatalf("outputReport() error = %v", err)
			}
			if !strings.Contains(buf.String(), tt.contains) {
				t.Errorf("expected output to contain %q, got %q", tt.contains, buf.String())
			}
		})
	}

	t.Run("writes report file with owner-only permissions", func(t *testing.T) {
		t.Parallel()
		cfg := config.NewConfig()
		cfg.ReportFile = filepath.Join(t.TempDir(), "nested", "report.txt")

		if err := outputReport(cfg, io.Discard, []*model.DocumentReport{newReport("page.html")}); err != nil {
			t.Fatalf("outputReport() error = %v", err)
		}
		info, err := os.Stat(cfg.ReportFile)
		if err != nil {
			t.Fatalf("failed to stat report: %v", err)
		}
		if info.Size() == 0 {
			t.Error("expected a non-empty report")
		}
		if perm := info.Mode().Perm(); perm != 0600 {
			t.Errorf("expected permissions 0600, got %o", perm)
		}
	})
}

func TestSetupLogger(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	logger := setupLogger(&buf, false)
	logger.Info("hidden")
	logger.Warn("shown")
	if strings.Contains(buf.String(), "hidden") {
		t.Error("expected info to be filtered without verbose")
	}
	if !strings.Contains(buf.String(), "shown") {
		t.Error("expected warnings to be logged")
	}

	buf.Reset()
	setupLogger(&buf, true).Debug("detail")
	if !strings.Contains(buf.String(), "detail") {
		t.Error("expected debug output with verbose")
	}

}
