package integration

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dreamware/zonectl/internal/cluster"
	"github.com/dreamware/zonectl/internal/topology"
)

const (
	coordListen = "127.0.0.1:18090"
	coordURL    = "http://" + coordListen
	repoRoot    = "../.."
)

var exampleConfig = filepath.Join(repoRoot, "configs", "topology.example.yaml")

// TestSystem runs a real coordinator process and drives it with the zonectl
// binary.
type TestSystem struct {
	t          *testing.T
	binDir     string
	coord      *exec.Cmd
	httpClient *http.Client
}

func NewTestSystem(t *testing.T) *TestSystem {
	return &TestSystem{
		t:          t,
		binDir:     t.TempDir(),
		httpClient: &http.Client{Timeout: 5 * time.Second},
	}
}

// Start builds both binaries and launches the coordinator with shard
// probing disabled, since the example shards are not reachable.
func (ts *TestSystem) Start() error {
	for _, name := range []string{"coordinator", "zonectl"} {
		ts.t.Logf("Building %s binary...", name)
		cmd := exec.Command("go", "build", "-o", filepath.Join(ts.binDir, name), "./cmd/"+name)
		cmd.Dir = repoRoot
		if out, err := cmd.CombinedOutput(); err != nil {
			return fmt.Errorf("failed to build %s: %w\n%s", name, err, out)
		}
	}

	ts.coord = exec.Command(filepath.Join(ts.binDir, "coordinator"))
	ts.coord.Env = append(os.Environ(),
		"COORDINATOR_ADDR="+coordListen,
		"COORDINATOR_PROBE_SHARDS=false",
		"COORDINATOR_LOG_LEVEL=warn",
	)
	ts.coord.Stdout = os.Stdout
	ts.coord.Stderr = os.Stderr
	if err := ts.coord.Start(); err != nil {
		return fmt.Errorf("failed to start coordinator: %w", err)
	}
	return ts.waitForService(coordURL + "/health")
}

func (ts *TestSystem) Stop() {
	if ts.coord != nil && ts.coord.Process != nil {
		ts.t.Log("Stopping coordinator...")
		_ = ts.coord.Process.Kill()
		_ = ts.coord.Wait()
	}
}

func (ts *TestSystem) waitForService(url string) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	for {
		select {
		case <-ctx.Done():
			return fmt.Errorf("timeout waiting for %s", url)
		default:
			resp, err := ts.httpClient.Get(url)
			if err == nil {
				resp.Body.Close()
				if resp.StatusCode == http.StatusOK {
					return nil
				}
			}
			time.Sleep(100 * time.Millisecond)
		}
	}
}

// Zonectl runs the zonectl binary and returns its exit code and output.
func (ts *TestSystem) Zonectl(args ...string) (int, string, string) {
	var stdout, stderr bytes.Buffer
	cmd := exec.Command(filepath.Join(ts.binDir, "zonectl"), args...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	err := cmd.Run()

	code := 0
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		code = exitErr.ExitCode()
	} else if err != nil {
		ts.t.Fatalf("run zonectl: %v", err)
	}
	return code, stdout.String(), stderr.String()
}

func writeConfig(t *testing.T, transform func(string) string) string {
	t.Helper()
	data, err := os.ReadFile(exampleConfig)
	require.NoError(t, err)
	path := filepath.Join(t.TempDir(), "topology.yaml")
	require.NoError(t, os.WriteFile(path, []byte(transform(string(data))), 0o644))
	return path
}

func TestZoneTopology(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	ts := NewTestSystem(t)
	require.NoError(t, ts.Start())
	defer ts.Stop()

	client := cluster.NewClient(coordURL)
	ctx := context.Background()

	t.Run("Validate", func(t *testing.T) {
		code, stdout, _ := ts.Zonectl("validate", "-c", exampleConfig)
		assert.Equal(t, 0, code)
		assert.Contains(t, stdout, "ok")
	})

	t.Run("ApplyRoutesByZone", func(t *testing.T) {
		code, stdout, stderr := ts.Zonectl("apply", "-c", exampleConfig, "--coordinator", coordURL)
		require.Equal(t, 0, code, stderr)
		assert.Contains(t, stdout, "applied 11 operations")

		ns := topology.Namespace{Database: "D", Collection: "t"}
		for region, shard := range map[string]string{"EAST": "shardA", "WEST": "shardB", "MID": "shardC"} {
			route, err := client.Route(ctx, ns, map[string]any{"region": region, "id": 7})
			require.NoError(t, err)
			assert.Equal(t, shard, route.ShardID, region)
		}
	})

	t.Run("ReapplyIsNoop", func(t *testing.T) {
		before, err := client.Topology(ctx)
		require.NoError(t, err)

		code, _, stderr := ts.Zonectl("apply", "-c", exampleConfig, "--coordinator", coordURL)
		require.Equal(t, 0, code, stderr)

		after, err := client.Topology(ctx)
		require.NoError(t, err)
		assert.Equal(t, before, after)
	})

	t.Run("DifferentShardKeyNamesFailingStep", func(t *testing.T) {
		path := writeConfig(t, func(s string) string {
			return strings.Replace(s, "field: id\n    direction: 1", "field: id\n    direction: -1", 1)
		})
		code, _, stderr := ts.Zonectl("apply", "-c", path, "--coordinator", coordURL)
		assert.Equal(t, 1, code)
		assert.Contains(t, stderr, "shardCollection")
	})

	t.Run("InvalidConfigExitsTwo", func(t *testing.T) {
		path := writeConfig(t, func(s string) string {
			return strings.Replace(s, "namespace:", "bogusField: 1\nnamespace:", 1)
		})
		code, _, _ := ts.Zonectl("apply", "-c", path, "--coordinator", coordURL)
		assert.Equal(t, 2, code)
	})

	t.Run("UnreachableCoordinator", func(t *testing.T) {
		code, _, stderr := ts.Zonectl("apply", "-c", exampleConfig, "--coordinator", "http://127.0.0.1:1")
		assert.Equal(t, 1, code)
		assert.Contains(t, stderr, "registerShard")
	})
}
