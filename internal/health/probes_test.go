package health

import (
	"context"
	"net"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/stretchr/testify/require"
)

func freePort(t *testing.T) int {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()
	_, portStr, err := net.SplitHostPort(ln.Addr().String())
	require.NoError(t, err)
	port, err := strconv.Atoi(portStr)
	require.NoError(t, err)
	return port
}

func baseConfig(t *testing.T) ProbeConfig {
	t.Helper()
	return ProbeConfig{
		HTTPHost: "127.0.0.1", HTTPPort: freePort(t), HTTPPath: "/mcp/",
		StorageRoot: t.TempDir(), DatabasePath: filepath.Join(t.TempDir(), "agentmail.db"),
	}
}

func TestRunStartupProbesAllPass(t *testing.T) {
	report := RunStartupProbes(context.Background(), baseConfig(t), nil, nil)
	require.True(t, report.IsOK(), report.FormatErrors())
	require.Len(t, report.Results, 7)
}

func TestProbeHTTPPathRejectsMissingSlashes(t *testing.T) {
	cfg := baseConfig(t)
	cfg.HTTPPath = "mcp"
	r := probeHTTPPath(cfg)
	require.False(t, r.Ok)
}

func TestProbeAuthRejectsShortToken(t *testing.T) {
	cfg := baseConfig(t)
	cfg.BearerToken = "short"
	r := probeAuth(cfg)
	require.False(t, r.Ok)
}

func TestProbeAuthRejectsJWTWithoutJWKS(t *testing.T) {
	cfg := baseConfig(t)
	cfg.JWTEnabled = true
	r := probeAuth(cfg)
	require.False(t, r.Ok)
}

func TestProbeDatabaseRejectsMissingParent(t *testing.T) {
	cfg := baseConfig(t)
	cfg.DatabasePath = filepath.Join(t.TempDir(), "does-not-exist", "agentmail.db")
	r := probeDatabase(cfg)
	require.False(t, r.Ok)
}

func TestProbeStorageRootCreatesDirectory(t *testing.T) {
	cfg := baseConfig(t)
	cfg.StorageRoot = filepath.Join(t.TempDir(), "fresh")
	r := probeStorageRoot(cfg)
	require.True(t, r.Ok)
}

func TestReportFormatErrors(t *testing.T) {
	report := Report{Results: []ProbeResult{
		ok("ok-probe"),
		fail("port", "Port 8765 is in use", "Use a different port"),
	}}
	require.False(t, report.IsOK())
	errs := report.FormatErrors()
	require.Contains(t, errs, "Port 8765 is in use")
	require.Contains(t, errs, "Use a different port")
}
