package chroot

import (
	"context"
	"fmt"
	"log/slog"

	"golang.org/x/sys/unix"
)

// NamespaceFlags are the namespaces entered by Isolate.
const NamespaceFlags = unix.CLONE_NEWNS | unix.CLONE_NEWUSER

const (
	setgroupsPath = "/proc/self/setgroups"
	uidMapPath    = "/proc/self/uid_map"
	gidMapPath    = "/proc/self/gid_map"
)

// Isolate enters new mount and user namespaces and denies setgroups(2),
// which an unprivileged process must do before writing its gid map.
// Kernels without the setgroups control are tolerated.
func Isolate(ctx context.Context, sys Sys, logger *slog.Logger) error {
	if err := sys.Unshare(NamespaceFlags); err != nil {
		return fail(KindNamespace, "unshare", "CLONE_NEWNS|CLONE_NEWUSER", err)
	}
	if err := sys.WriteProc(setgroupsPath, []byte("deny")); err != nil {
		logger.DebugContext(ctx, "setgroups not denied", "path", setgroupsPath, "err", err)
	}
	return nil
}

// MappingRecord is a single-id uid_map/gid_map line mapping id to itself.
func MappingRecord(id int) string {
	return fmt.Sprintf("%d %d 1", id, id)
}

// MapIdentity maps the caller's uid and gid onto themselves inside the
// user namespace. It must run after Isolate and before any mount.
func MapIdentity(ctx context.Context, sys Sys, logger *slog.Logger, id Identity) error {
	uidMap := MappingRecord(id.UID)
	if err := sys.WriteProc(uidMapPath, []byte(uidMap)); err != nil {
		return fail(KindNamespace, "write", uidMapPath, err)
	}
	logger.InfoContext(ctx, "mapped uid", "map", uidMap)

	gidMap := MappingRecord(id.GID)
	if err := sys.WriteProc(gidMapPath, []byte(gidMap)); err != nil {
		return fail(KindNamespace, "write", gidMapPath, err)
	}
	logger.InfoContext(ctx, "mapped gid", "map", gidMap)
	return nil
}
