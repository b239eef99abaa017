package chroot

import "path/filepath"

// DefaultStore is the store directory used when none is given.
func DefaultStore(id Identity) string {
	return filepath.Join(id.Home, ".nix")
}

// absolute makes path absolute against the working directory without
// cleaning it, so ".." still applies to a resolved symlink target.
func absolute(sys Sys, path string) (string, error) {
	if filepath.IsAbs(path) {
		return path, nil
	}
	wd, err := sys.Getwd()
	if err != nil {
		return "", err
	}
	return wd + "/" + path, nil
}

// VerifyStore returns the canonical absolute form of dir, as realpath(3)
// does. dir must name an existing directory.
func VerifyStore(sys Sys, dir string) (string, error) {
	abs, err := absolute(sys, dir)
	if err != nil {
		return "", fail(KindInput, "realpath", dir, err)
	}
	resolved, err := sys.EvalSymlinks(abs)
	if err != nil {
		return "", fail(KindInput, "realpath", dir, err)
	}
	if resolved == "" {
		return "", fail(KindInput, "realpath", dir, ErrNotDirectory)
	}
	info, err := sys.Stat(resolved)
	if err != nil {
		return "", fail(KindInput, "stat", resolved, err)
	}
	if !info.IsDir() {
		return "", fail(KindInput, "realpath", resolved, ErrNotDirectory)
	}
	return resolved, nil
}
