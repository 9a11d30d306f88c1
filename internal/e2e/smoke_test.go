package e2e

import (
	"bytes"
	"os"
	"os/exec"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSmokeFlow(t *testing.T) {
	if testing.Short() {
		t.Skip("builds the binary")
	}

	home := t.TempDir()
	binaryPath := buildBinary(t)
	require.NoError(t, writeConfigFixture(home))

	stdout, stderr, err := runTempVC(t, binaryPath, home, "templates")
	require.NoError(t, err, "stderr: %s", stderr)
	assert.Contains(t, stdout, "Trio VC 1")

	_, stderr, err = runTempVC(t, binaryPath, home, "token", "set", "--value", "smoke-token")
	require.NoError(t, err, "stderr: %s", stderr)

	stdout, stderr, err = runTempVC(t, binaryPath, home, "status")
	require.NoError(t, err, "stderr: %s", stderr)
	assert.Contains(t, stdout, "tracked: 0")

	_, stderr, err = runTempVC(t, binaryPath, home, "token", "remove")
	require.NoError(t, err, "stderr: %s", stderr)
}

func buildBinary(t *testing.T) string {
	t.Helper()

	binaryPath := filepath.Join(t.TempDir(), "tempvc-e2e")
	cmd := exec.Command("go", "build", "-o", binaryPath, "./cmd/tempvc")
	cmd.Dir = repoRoot(t)

	output, err := cmd.CombinedOutput()
	require.NoError(t, err, "build tempvc binary: %s", string(output))
	return binaryPath
}

func runTempVC(t *testing.T, binaryPath, home string, args ...string) (string, string, error) {
	t.Helper()

	cmd := exec.Command(binaryPath, args...)
	cmd.Dir = home
	cmd.Env = append(os.Environ(),
		"HOME="+home,
		"XDG_CONFIG_HOME="+filepath.Join(home, ".config"),
		"XDG_STATE_HOME="+filepath.Join(home, ".local", "state"),
		"XDG_DATA_HOME="+filepath.Join(home, ".local", "share"),
		"TEMPVC_SECRETS_BACKEND=file",
	)

	var stdout bytes.Buffer
	var stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	return stdout.String(), stderr.String(), err
}

func repoRoot(t *testing.T) string {
	t.Helper()

	wd, err := os.Getwd()
	require.NoError(t, err)
	return filepath.Clean(filepath.Join(wd, "..", ".."))
}

func writeConfigFixture(home string) error {
	configDir := filepath.Join(home, ".config", "tempvc")
	if err := os.MkdirAll(configDir, 0o755); err != nil {
		return err
	}

	config := `[voice]
category_id = "category-1"

[[voice.templates]]
trigger_channel_id = "trigger-trio"
display_name = "Trio VC"
capacity = 3
`

	return os.WriteFile(filepath.Join(configDir, "config.toml"), []byte(config), 0o644)
}
