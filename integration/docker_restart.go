//go:build integration

package integration

import (
	"context"
	"os/exec"
	"testing"
)

func restartCartContainer(t *testing.T, ctx context.Context) {
	t.Helper()

	cmd := exec.CommandContext(ctx, "docker", "compose", "restart", "cart")
	out, err := cmd.CombinedOutput()
	if err != nil {
		t.Fatalf("docker compose restart cart failed: %v\n%s", err, string(out))
	}
}
