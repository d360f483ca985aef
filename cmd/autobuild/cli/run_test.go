package cli

import (
	"context"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/majorcontext/autobuild/internal/credential"
	"github.com/majorcontext/autobuild/internal/router"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func resetRunFlags(t *testing.T) {
	t.Helper()
	origSpec, origTask, origProject, origModel := specFlag, taskFlag, projectFlag, modelFlag
	t.Cleanup(func() {
		specFlag, taskFlag, projectFlag, modelFlag = origSpec, origTask, origProject, origModel
	})
}

func TestRunRequiresSpecOrTask(t *testing.T) {
	resetRunFlags(t)
	specFlag, taskFlag = "", ""

	err := runBuild(runCmd, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--spec or --task")
}

func TestRunRejectsMissingProject(t *testing.T) {
	resetRunFlags(t)
	specFlag = "001"
	projectFlag = filepath.Join(t.TempDir(), "does-not-exist")

	err := runBuild(runCmd, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "project directory does not exist")
}

func TestRunFailsWithoutCredential(t *testing.T) {
	if runtime.GOOS == "darwin" {
		t.Skip("keychain may supply a real credential")
	}
	resetRunFlags(t)
	taskFlag = "add a logout button"
	projectFlag = t.TempDir()
	t.Setenv("HOME", t.TempDir())
	t.Setenv(credential.EnvOAuthToken, "")
	t.Setenv(credential.EnvAuthToken, "")

	err := runBuild(runCmd, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, credential.ErrNoCredential)
}

func TestPipelineEnvPassThrough(t *testing.T) {
	t.Setenv(router.EnvNoProxy, "localhost")
	t.Setenv(router.EnvTimeoutMS, "5000")
	t.Setenv(router.ZAIKeyEnv, "zai-env-key")

	env := pipelineEnv(context.Background(), nil)
	assert.Equal(t, "localhost", env[router.EnvNoProxy])
	assert.Equal(t, "5000", env[router.EnvTimeoutMS])
	assert.Equal(t, "zai-env-key", env[router.ZAIKeyEnv])
}

func TestPipelineEnvNoKeyAnywhere(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	t.Setenv("AUTOBUILD_KEYRING_SERVICE", "autobuild-test")
	t.Setenv(router.ZAIKeyEnv, "")

	env := pipelineEnv(context.Background(), nil)
	_, ok := env[router.ZAIKeyEnv]
	assert.False(t, ok, "no key should be materialized when none is configured")
}
