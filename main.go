// nixuserchroot gives an unprivileged user a private root in which their
// own nix store is mounted at /nix, then runs a command there.
//
// Usage:
//
//	nixuserchroot [-v] [--no-color] [STORE_DIR [COMMAND [ARGS...]]]
//
// STORE_DIR defaults to ~/.nix and COMMAND to an interactive shell.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/pflag"

	"github.com/take-cheeze/nix-user-chroot/chroot"
)

// debugEnv turns on debug logging when non-empty.
const debugEnv = "NIXUSERCHROOT_DEBUG"

func main() {
	if err := run(context.Background(), os.Args, os.Stderr, chroot.Host{}); err != nil {
		os.Exit(1)
	}
}

func run(ctx context.Context, argv []string, stderr io.Writer, sys chroot.Sys) error {
	var verbose, noColor bool
	flagSet := pflag.NewFlagSet(tag, pflag.ContinueOnError)
	flagSet.SetInterspersed(false)
	flagSet.SetOutput(stderr)
	flagSet.BoolVarP(&verbose, "verbose", "v", false, "log every mount and syscall step (also "+debugEnv+")")
	flagSet.BoolVar(&noColor, "no-color", false, "do not color diagnostics")
	flagSet.Usage = func() {
		fmt.Fprintf(stderr, `%[1]s - run a command with a user-owned nix store at /nix

USAGE
    %[1]s [flags] [STORE_DIR [COMMAND [ARGS...]]]

STORE_DIR defaults to ~/.nix. COMMAND defaults to $SHELL, or /bin/bash.

FLAGS
`, tag)
		flagSet.PrintDefaults()
		fmt.Fprintf(stderr, `
ENVIRONMENT
    TMPDIR               Where the temporary root is created (default: /tmp)
    %s  Enable debug logging
`, debugEnv)
	}

	if err := flagSet.Parse(argv[1:]); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}
		return err
	}

	verbose = verbose || sys.Getenv(debugEnv) != ""
	logger := newLogger(stderr, verbose, !noColor && colorEnabled(stderr, sys.Getenv))

	p := &chroot.Pipeline{Sys: sys, Logger: logger}
	h, resumed, err := p.Resume()
	switch {
	case err != nil:
	case resumed:
		err = p.Enter(ctx, h)
	default:
		logger.InfoContext(ctx, "starting..")
		if h, err = p.Prepare(ctx, flagSet.Args()); err == nil {
			err = p.Reexec(ctx, h, argv)
		}
	}
	if err != nil {
		logger.ErrorContext(ctx, err.Error(), "kind", chroot.KindOf(err).String())
	}
	return err
}
