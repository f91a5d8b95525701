// Package health implements the startup verification probes and the
// liveness/readiness HTTP surface (C10): each probe checks one aspect of
// the runtime environment and reports a human-readable problem plus a
// remediation hint, modeled on the original's startup_checks module.
package health

import (
	"context"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/agentmail/agentmail/internal/archive"
	"github.com/agentmail/agentmail/internal/store"
)

// ProbeConfig is the subset of server configuration the startup probes
// need. It's a narrow, health-package-owned type rather than a dependency
// on internal/config, so the probes can be unit tested without a config
// loader in the loop.
type ProbeConfig struct {
	HTTPHost                string
	HTTPPort                int
	HTTPPath                string
	StorageRoot             string
	DatabasePath            string
	IntegrityCheckOnStartup bool
	BearerToken             string
	JWTEnabled              bool
	JWTJWKSURL              string
}

// ProbeResult is the outcome of one startup probe.
type ProbeResult struct {
	Name    string
	Ok      bool
	Problem string
	Fix     string
}

func (r ProbeResult) String() string {
	if r.Ok {
		return fmt.Sprintf("[%s] ok", r.Name)
	}
	return fmt.Sprintf("[%s] Problem: %s\n        Fix: %s", r.Name, r.Problem, r.Fix)
}

func ok(name string) ProbeResult { return ProbeResult{Name: name, Ok: true} }

func fail(name, problem, fix string) ProbeResult {
	return ProbeResult{Name: name, Problem: problem, Fix: fix}
}

// Report is the aggregate result of every startup probe.
type Report struct {
	Results []ProbeResult
}

// Failures returns every probe that did not pass.
func (r Report) Failures() []ProbeResult {
	var out []ProbeResult
	for _, res := range r.Results {
		if !res.Ok {
			out = append(out, res)
		}
	}
	return out
}

// IsOK reports whether every probe passed.
func (r Report) IsOK() bool { return len(r.Failures()) == 0 }

// FormatErrors renders a human-readable block for terminal output, empty
// when every probe passed.
func (r Report) FormatErrors() string {
	failures := r.Failures()
	if len(failures) == 0 {
		return ""
	}
	var b strings.Builder
	b.WriteString("\n  Startup failed — the following checks did not pass:\n\n")
	for i, f := range failures {
		fmt.Fprintf(&b, "  %d. [%s] %s\n", i+1, f.Name, f.Problem)
		fmt.Fprintf(&b, "     Fix: %s\n\n", f.Fix)
	}
	return b.String()
}

func probeHTTPPath(cfg ProbeConfig) ProbeResult {
	path := cfg.HTTPPath
	if path == "" || !strings.HasPrefix(path, "/") {
		return fail("http-path", fmt.Sprintf("HTTP path %q must start with '/'", path),
			"Set the HTTP path to a value like '/mcp/' or '/api/'")
	}
	if !strings.HasSuffix(path, "/") {
		return fail("http-path", fmt.Sprintf("HTTP path %q should end with '/'", path),
			fmt.Sprintf("Set HTTP path to %q (append trailing slash)", path+"/"))
	}
	return ok("http-path")
}

func probeAuth(cfg ProbeConfig) ProbeResult {
	if cfg.BearerToken != "" && len(cfg.BearerToken) < 8 {
		return fail("auth", "bearer token is set but very short (< 8 chars)",
			"Use a longer token for security, or unset it to disable auth")
	}
	if cfg.JWTEnabled && cfg.JWTJWKSURL == "" {
		return fail("auth", "JWT authentication is enabled but no JWKS URL is set",
			"Set the JWKS URL to your identity provider's JWKS endpoint")
	}
	return ok("auth")
}

func probeDatabase(cfg ProbeConfig) ProbeResult {
	if cfg.DatabasePath == "" {
		return fail("database", "database path is empty", "Set a SQLite file path or ':memory:'")
	}
	if cfg.DatabasePath == ":memory:" || strings.Contains(cfg.DatabasePath, "mode=memory") {
		return ok("database")
	}
	parent := filepath.Dir(cfg.DatabasePath)
	if parent != "" && parent != "." {
		if _, err := os.Stat(parent); err != nil {
			return fail("database", fmt.Sprintf("database parent directory does not exist: %s", parent),
				fmt.Sprintf("Create it: mkdir -p %s", parent))
		}
	}
	return ok("database")
}

// probeIntegrity runs PRAGMA quick_check against an already-open store.
// Skipped when disabled or when st is nil (in-memory/test configurations).
func probeIntegrity(ctx context.Context, cfg ProbeConfig, st *store.Store) ProbeResult {
	if !cfg.IntegrityCheckOnStartup || st == nil {
		return ok("integrity")
	}
	if err := st.QuickCheck(ctx); err != nil {
		return fail("integrity", fmt.Sprintf("SQLite corruption detected: %v", err),
			"Back up the database, then try VACUUM INTO to recover")
	}
	return ok("integrity")
}

func probeStorageRoot(cfg ProbeConfig) ProbeResult {
	root := cfg.StorageRoot
	if root == "" {
		return fail("storage", "storage root is empty", "Set a storage root directory")
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return fail("storage", fmt.Sprintf("cannot create storage directory %s: %v", root, err),
			fmt.Sprintf("Create the directory manually: mkdir -p %s", root))
	}
	probePath := filepath.Join(root, ".am_startup_probe")
	if err := os.WriteFile(probePath, []byte("ok"), 0o644); err != nil {
		return fail("storage", fmt.Sprintf("storage directory %s is not writable: %v", root, err),
			fmt.Sprintf("Check permissions: chmod u+w %s", root))
	}
	_ = os.Remove(probePath)
	return ok("storage")
}

func probePort(cfg ProbeConfig) ProbeResult {
	addr := net.JoinHostPort(cfg.HTTPHost, strconv.Itoa(cfg.HTTPPort))
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fail("port", fmt.Sprintf("cannot bind to %s: %v", addr, err),
			fmt.Sprintf("Stop the other process using port %d, or choose a different port", cfg.HTTPPort))
	}
	_ = ln.Close()
	return ok("port")
}

// probeConsistency runs one pass of the archive consistency sampler at
// startup; like the original, this is advisory only and never fails.
func probeConsistency(ctx context.Context, sampler *archive.Sampler) ProbeResult {
	if sampler == nil {
		return ok("consistency")
	}
	_ = sampler.Run(ctx)
	return ok("consistency")
}

// RunStartupProbes runs every probe and returns the aggregate report. st
// and sampler may be nil (skips the integrity and consistency checks
// respectively) for callers that haven't opened a store yet.
func RunStartupProbes(ctx context.Context, cfg ProbeConfig, st *store.Store, sampler *archive.Sampler) Report {
	return Report{Results: []ProbeResult{
		probeHTTPPath(cfg),
		probeAuth(cfg),
		probeDatabase(cfg),
		probeIntegrity(ctx, cfg, st),
		probeStorageRoot(cfg),
		probePort(cfg),
		probeConsistency(ctx, sampler),
	}}
}
