package common

import (
	"os"

	"github.com/opst/gdsremote/pkg/configs"
)

// EnvProfile names the profile used when --profile is not given.
const EnvProfile = "GDS_PROFILE"

// DefaultProfile is the profile name used when nothing is specified.
const DefaultProfile = "default"

type CommonFlags struct {
	Profile      string `flag:"profile" help:"profile name to use"`
	ProfileStore string `flag:"profile-store" help:"path to profile store file"`
	Env          string `flag:"env" help:"path to .env file overriding the profile with GDS_* variables"`
	Verbose      bool   `flag:"verbose" help:"explain errors in detail"`
}

// Flags returns CommonFlags with default values.
func Flags() (CommonFlags, error) {
	store, err := configs.DefaultProfileStorePath()
	if err != nil {
		return CommonFlags{}, err
	}
	profile := os.Getenv(EnvProfile)
	if profile == "" {
		profile = DefaultProfile
	}
	return CommonFlags{
		Profile:      profile,
		ProfileStore: store,
		Env:          ".env",
	}, nil
}
