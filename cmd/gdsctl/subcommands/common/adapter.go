package common

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/opst/gdsremote/pkg/configs"
	"github.com/opst/gdsremote/pkg/jobs"
	"github.com/opst/gdsremote/pkg/session"
	"github.com/youta-t/flarc"
)

type TaskWithCommonFlag[T any] func(
	ctx context.Context,
	logger *log.Logger,
	commonFlag CommonFlags,
	cl flarc.Commandline[T],
	params []any,
) error

func NewTaskWithCommonFlag[T any](task TaskWithCommonFlag[T]) flarc.Task[T] {
	return func(ctx context.Context, cl flarc.Commandline[T], pos []any) error {
		var commonFlag CommonFlags
		found := false
		newpos := make([]any, 0, len(pos))
		for _, p := range pos {
			switch v := p.(type) {
			case CommonFlags:
				found = true
				commonFlag = v
			default:
				newpos = append(newpos, p)
			}
		}
		if !found {
			return errors.New("programming error: common flags not found")
		}

		logger := log.New(cl.Stderr(), "", log.LstdFlags)
		logger.SetPrefix(fmt.Sprintf("[%s] ", cl.Fullname()))

		err := task(ctx, logger, commonFlag, cl, newpos)
		if err != nil && commonFlag.Verbose {
			Explain(logger, err)
		}
		return err
	}
}

// Explain logs the detail of err, if it can explain itself.
func Explain(logger *log.Logger, err error) {
	var v jobs.Verbose
	if errors.As(err, &v) {
		logger.Printf("detail:\n%s", v.Verbose())
	}
}

// LoadProfile reads the profile named in commonFlag, and overlays .env and GDS_* variables on it.
func LoadProfile(commonFlag CommonFlags) (*configs.Profile, error) {
	if err := configs.LoadDotEnv(commonFlag.Env); err != nil {
		return nil, err
	}

	store, err := configs.LoadProfileStore(commonFlag.ProfileStore)
	if err != nil {
		if errors.Is(err, configs.ErrProfileStoreNotFound) {
			return nil, fmt.Errorf(
				"%w: profile store (%s) is not found. Ask your admin to get a profile",
				err, commonFlag.ProfileStore,
			)
		}
		return nil, fmt.Errorf("%w: failed to load profile store (%s)", err, commonFlag.ProfileStore)
	}
	prof, err := store.Get(commonFlag.Profile)
	if err != nil {
		return nil, fmt.Errorf("%w in the profile store (%s)", err, commonFlag.ProfileStore)
	}
	return prof.ApplyEnv(nil)
}

type Task[T any] func(
	ctx context.Context,
	logger *log.Logger,
	sess *session.Session,
	cl flarc.Commandline[T],
	params []any,
) error

// NewTask makes a flarc.Task which opens a session with the profile before running task.
func NewTask[T any](task Task[T]) flarc.Task[T] {
	return NewTaskWithCommonFlag(func(
		ctx context.Context,
		logger *log.Logger,
		commonFlag CommonFlags,
		cl flarc.Commandline[T],
		params []any,
	) error {
		prof, err := LoadProfile(commonFlag)
		if err != nil {
			return err
		}

		sess, err := session.Open(ctx, prof, logger)
		if err != nil {
			return fmt.Errorf(
				"%w: failed to open session. Your profile (%s in %s) can be broken",
				err, commonFlag.Profile, commonFlag.ProfileStore,
			)
		}
		defer func() {
			if err := sess.Close(context.WithoutCancel(ctx)); err != nil {
				logger.Printf("failed to close session: %v", err)
			}
		}()

		return task(ctx, logger, sess, cl, params)
	})
}
