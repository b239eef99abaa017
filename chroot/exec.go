package chroot

import (
	"context"
	"io/fs"
	"log/slog"

	"al.essio.dev/pkg/shellescape"
)

const (
	// ConfDirEnv points nix at the configuration inside the bound store.
	ConfDirEnv   = "NIX_CONF_DIR"
	ConfDirValue = "/nix/etc/nix"

	defaultShell = "/bin/bash"
)

// Command returns args unchanged when non-empty, and otherwise an
// interactive shell with no arguments: $SHELL, or /bin/bash.
func Command(sys Sys, args []string) []string {
	if len(args) > 0 {
		return args
	}
	if shell := sys.Getenv("SHELL"); shell != "" {
		return []string{shell}
	}
	return []string{defaultShell}
}

// EnterRoot chroots into root, keeping the working directory by name when
// it also exists inside root.
func EnterRoot(ctx context.Context, sys Sys, logger *slog.Logger, root string) error {
	wd, err := sys.Getwd()
	if err != nil {
		return fail(KindExec, "getcwd", "", err)
	}
	if err := sys.Chdir("/"); err != nil {
		return fail(KindExec, "chdir", "/", err)
	}
	if err := sys.Chroot(root); err != nil {
		return fail(KindExec, "chroot", root, err)
	}
	if err := sys.Chdir(wd); err != nil {
		logger.WarnContext(ctx, "working directory not kept", "dir", wd, "err", err)
	}
	return nil
}

// Exec sets NIX_CONF_DIR and replaces the process image with argv. It
// only returns on failure; the error names argv[0] as given.
func Exec(ctx context.Context, sys Sys, logger *slog.Logger, argv []string) error {
	if err := sys.Setenv(ConfDirEnv, ConfDirValue); err != nil {
		return fail(KindExec, "setenv", ConfDirEnv, err)
	}

	if len(argv) == 0 {
		return fail(KindExec, "execvp", "", fs.ErrInvalid)
	}
	path, err := sys.LookPath(argv[0])
	if err != nil {
		return fail(KindExec, "execvp", argv[0], err)
	}
	logger.DebugContext(ctx, "exec", "path", path, "command", shellescape.QuoteCommand(argv))

	if err := sys.Exec(path, argv, sys.Environ()); err != nil {
		return fail(KindExec, "execvp", argv[0], err)
	}
	return fail(KindExec, "execvp", argv[0], ErrExecReturned)
}
