package configs

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// environment variables overriding profile fields.
const (
	EnvComputeCluster      = "GDS_COMPUTE_CLUSTER"
	EnvBoltURI             = "GDS_BOLT_URI"
	EnvBoltUsername        = "GDS_BOLT_USERNAME"
	EnvBoltPassword        = "GDS_BOLT_PASSWORD"
	EnvBoltDatabase        = "GDS_BOLT_DATABASE"
	EnvArrowAddress        = "GDS_ARROW_ADDRESS"
	EnvArrowTLS            = "GDS_ARROW_TLS"
	EnvArrowInsecure       = "GDS_ARROW_DISABLE_SERVER_VERIFICATION"
	EnvArrowRootCerts      = "GDS_ARROW_ROOT_CERTS"
	EnvEncryptedDBPassword = "GDS_ENCRYPTED_DB_PASSWORD"
	EnvChunkSize           = "GDS_CHUNK_SIZE"
	EnvPollInterval        = "GDS_POLL_INTERVAL"
)

// LoadDotEnv loads .env files into the process environment.
//
// Variables already set are not overwritten. Missing files are not an error.
// With no filenames, ".env" in the working directory is loaded.
func LoadDotEnv(filenames ...string) error {
	if len(filenames) == 0 {
		filenames = []string{".env"}
	}
	for _, f := range filenames {
		if err := godotenv.Load(f); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return fmt.Errorf("cannot load %s: %w", f, err)
		}
	}
	return nil
}

// ApplyEnv returns a copy of the profile with fields overridden by GDS_* variables.
//
// getenv is used to look up variables; nil means os.Getenv.
// Empty variables are ignored.
func (p Profile) ApplyEnv(getenv func(string) string) (*Profile, error) {
	if getenv == nil {
		getenv = os.Getenv
	}

	str := func(key string, dest *string) {
		if v := getenv(key); v != "" {
			*dest = v
		}
	}
	str(EnvComputeCluster, &p.ComputeCluster)
	str(EnvBoltURI, &p.Bolt.URI)
	str(EnvBoltUsername, &p.Bolt.Username)
	str(EnvBoltPassword, &p.Bolt.Password)
	str(EnvBoltDatabase, &p.Bolt.Database)
	str(EnvArrowAddress, &p.Arrow.Address)
	str(EnvArrowRootCerts, &p.Arrow.RootCerts)
	str(EnvEncryptedDBPassword, &p.EncryptedDBPassword)

	for key, dest := range map[string]*bool{
		EnvArrowTLS:      &p.Arrow.TLS,
		EnvArrowInsecure: &p.Arrow.DisableServerVerification,
	} {
		v := getenv(key)
		if v == "" {
			continue
		}
		b, err := strconv.ParseBool(v)
		if err != nil {
			return nil, fmt.Errorf("%w: %s=%q", ErrProfileInvalid, key, v)
		}
		*dest = b
	}

	if v := getenv(EnvChunkSize); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return nil, fmt.Errorf("%w: %s=%q", ErrProfileInvalid, EnvChunkSize, v)
		}
		p.ChunkSize = n
	}
	if v := getenv(EnvPollInterval); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return nil, fmt.Errorf("%w: %s=%q", ErrProfileInvalid, EnvPollInterval, v)
		}
		p.PollInterval = d
	}

	return &p, nil
}
