//go:build integration

package integration

import (
	"context"
	"os/exec"
	"testing"
)

// restartService bounces the compose service behind baseURL so the next reads
// must come from whatever the storage backend persisted.
func restartService(t *testing.T, ctx context.Context) {
	t.Helper()

	service := getenv("E2E_COMPOSE_SERVICE", "inventory")
	args := []string{"compose"}
	if file := getenv("E2E_COMPOSE_FILE", ""); file != "" {
		args = append(args, "-f", file)
	}
	args = append(args, "restart", service)

	out, err := exec.CommandContext(ctx, "docker", args...).CombinedOutput()
	if err != nil {
		t.Fatalf("restart %s: %v\n%s", service, err, out)
	}
	waitReady(t, ctx, baseURL+"/readyz")
}
