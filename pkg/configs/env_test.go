package configs_test

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/opst/gdsremote/internal/testutils/try"
	"github.com/opst/gdsremote/pkg/configs"
)

func TestProfile_ApplyEnv(t *testing.T) {
	envOf := func(m map[string]string) func(string) string {
		return func(k string) string { return m[k] }
	}

	t.Run("variables override fields", func(t *testing.T) {
		base := validProfile()
		actual := try.To(base.ApplyEnv(envOf(map[string]string{
			configs.EnvComputeCluster:      "192.168.1.1",
			configs.EnvBoltPassword:        "from-env",
			configs.EnvArrowTLS:            "false",
			configs.EnvArrowInsecure:       "true",
			configs.EnvEncryptedDBPassword: "enc",
			configs.EnvChunkSize:           "250",
			configs.EnvPollInterval:        "500ms",
		}))).OrFatal(t)

		expected := validProfile()
		expected.ComputeCluster = "192.168.1.1"
		expected.Bolt.Password = "from-env"
		expected.Arrow.TLS = false
		expected.Arrow.DisableServerVerification = true
		expected.EncryptedDBPassword = "enc"
		expected.ChunkSize = 250
		expected.PollInterval = 500 * time.Millisecond

		if *actual != *expected {
			t.Errorf("applied:\n===actual===\n%+v\n===expected===\n%+v", actual, expected)
		}
		if *base != *validProfile() {
			t.Errorf("base profile is modified: %+v", base)
		}
	})

	t.Run("empty variables are ignored", func(t *testing.T) {
		actual := try.To(validProfile().ApplyEnv(envOf(nil))).OrFatal(t)
		if *actual != *validProfile() {
			t.Errorf("applied: actual = %+v", actual)
		}
	})

	for name, env := range map[string]map[string]string{
		"broken bool":     {configs.EnvArrowTLS: "maybe"},
		"broken int":      {configs.EnvChunkSize: "many"},
		"broken duration": {configs.EnvPollInterval: "soon"},
	} {
		t.Run(name+" is ErrProfileInvalid", func(t *testing.T) {
			_, err := validProfile().ApplyEnv(envOf(env))
			if !errors.Is(err, configs.ErrProfileInvalid) {
				t.Errorf("actual error = %v", err)
			}
		})
	}
}

func TestLoadDotEnv(t *testing.T) {
	dir := t.TempDir()
	dotenv := filepath.Join(dir, "test.env")
	if err := os.WriteFile(dotenv, []byte("GDS_TEST_DOTENV_KEY=from-dotenv\n"), 0600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("GDS_TEST_DOTENV_KEY", "")
	os.Unsetenv("GDS_TEST_DOTENV_KEY")

	if err := configs.LoadDotEnv(filepath.Join(dir, "missing.env"), dotenv); err != nil {
		t.Fatal(err)
	}
	if v := os.Getenv("GDS_TEST_DOTENV_KEY"); v != "from-dotenv" {
		t.Errorf("loaded value: actual = %q", v)
	}
}
