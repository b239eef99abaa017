package chroot

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"path/filepath"
)

// StoreName is the entry the store is bound at, and the host entry the
// mirror never copies.
const StoreName = "nix"

// dirMode is the permission part of a stat'ed mode, without type bits.
func dirMode(info fs.FileInfo) fs.FileMode {
	return info.Mode() & (fs.ModePerm | fs.ModeSetuid | fs.ModeSetgid | fs.ModeSticky)
}

// Mirror recursively binds every top-level directory of src onto an
// identically named directory under dst, and returns the names bound.
//
// Entries that cannot be stat'ed, created, or bound are logged and
// skipped. Non-directory entries are not mirrored. Only failing to read
// src is an error.
func Mirror(ctx context.Context, sys Sys, logger *slog.Logger, src, dst string) ([]string, error) {
	entries, err := sys.ReadDir(src)
	if err != nil {
		return nil, fail(KindMirror, "opendir", src, err)
	}

	var bound []string
	for _, entry := range entries {
		name := entry.Name()
		switch name {
		case ".", "..":
			continue
		case StoreName:
			logger.WarnContext(ctx, "ignore existing nix directory", "path", filepath.Join(src, name))
			continue
		}

		source := filepath.Join(src, name)
		info, err := sys.Stat(source)
		if err != nil {
			logger.WarnContext(ctx, "could not stat, skip", "path", source, "err", err)
			continue
		}
		if !info.IsDir() {
			logger.DebugContext(ctx, "not a directory, skip", "path", source, "mode", info.Mode().String())
			continue
		}

		target := filepath.Join(dst, name)
		if err := sys.Mkdir(target, dirMode(info)); err != nil && !errors.Is(err, fs.ErrExist) {
			logger.WarnContext(ctx, "could not create mount point, skip", "path", target, "err", err)
			continue
		}
		if err := sys.BindMount(source, target); err != nil {
			logger.WarnContext(ctx, "could not bind mount, skip", "source", source, "target", target, "err", err)
			continue
		}
		logger.DebugContext(ctx, "bind", "source", source, "target", target)
		bound = append(bound, name)
	}
	return bound, nil
}

// BindStore recursively binds store on <root>/nix. Any failure is fatal.
func BindStore(ctx context.Context, sys Sys, logger *slog.Logger, store, root string) error {
	info, err := sys.Stat(store)
	if err != nil {
		return fail(KindStoreBind, "stat", store, err)
	}

	target := filepath.Join(root, StoreName)
	if err := sys.Mkdir(target, dirMode(info)); err != nil && !errors.Is(err, fs.ErrExist) {
		return fail(KindStoreBind, "mkdir", target, err)
	}
	if err := sys.BindMount(store, target); err != nil {
		return fail(KindStoreBind, "mount", target, err)
	}
	logger.DebugContext(ctx, "bind store", "source", store, "target", target)
	return nil
}
