package init

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"

	"github.com/opst/gdsremote/cmd/gdsctl/subcommands/common"
	"github.com/opst/gdsremote/pkg/configs"
	"github.com/youta-t/flarc"
	"gopkg.in/yaml.v3"
)

type Flag struct{}

const ARG_PROFILE_FILE = "PROFILE_FILE"

func New() (flarc.Command, error) {
	return flarc.NewCommand(
		"Register a profile into your profile store.",
		Flag{},
		flarc.Args{
			{
				Name: ARG_PROFILE_FILE, Required: true,
				Help: "filepath to a profile file, which you received from your admin.",
			},
		},
		common.NewTaskWithCommonFlag(Task),
		flarc.WithDescription(`
Register a new profile into your profile store.

A profile file is a yaml file describing the session (bolt and arrow) and its compute cluster.
"{{ .Command }}" verifies it and registers it into your profile store
with the name given by "--profile".

The profile store is readable and writable only by you.
`),
	)
}

func Task(
	ctx context.Context,
	l *log.Logger,
	cf common.CommonFlags,
	cl flarc.Commandline[Flag],
	_ []any,
) error {
	profFile := cl.Args()[ARG_PROFILE_FILE][0]

	store, err := configs.LoadProfileStore(cf.ProfileStore)
	if errors.Is(err, configs.ErrProfileStoreNotFound) {
		// ok.
		store = configs.ProfileStore{}
	} else if err != nil {
		return fmt.Errorf("failed to load profile store (%s): %w", cf.ProfileStore, err)
	}

	newProf := new(configs.Profile)
	{
		content, err := os.ReadFile(profFile)
		if err != nil {
			return fmt.Errorf("failed to read profile file (%s): %w", profFile, err)
		}
		if err := yaml.Unmarshal(content, newProf); err != nil {
			return fmt.Errorf("failed to parse profile file (%s): %w", profFile, err)
		}
	}
	if err := newProf.Verify(); err != nil {
		return fmt.Errorf("%s: %w", profFile, err)
	}

	store[cf.Profile] = newProf
	if err := store.Save(cf.ProfileStore); err != nil {
		return fmt.Errorf("failed to save profile store (%s): %w", cf.ProfileStore, err)
	}
	l.Printf("profile %s is saved to %s", cf.Profile, cf.ProfileStore)
	return nil
}
