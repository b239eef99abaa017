package chroot

import (
	"crypto/rand"
	"errors"
	"io/fs"
	"path/filepath"

	"golang.org/x/sys/unix"
)

const (
	rootPrefix   = "nix"
	suffixLen    = 6
	suffixChars  = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"
	claimRetries = 100
)

// TempDir returns TMPDIR, or /tmp when it is unset or empty.
func TempDir(sys Sys) string {
	if dir := sys.Getenv("TMPDIR"); dir != "" {
		return dir
	}
	return "/tmp"
}

// MakeRoot creates a new empty directory named nixXXXXXX under tmpdir,
// with the same semantics as mkdtemp(3): the name is claimed by mkdir, so
// an existing entry is never reused. The returned path is absolute and
// canonical, since it is later used after chdir("/").
func MakeRoot(sys Sys, tmpdir string) (string, error) {
	abs, err := absolute(sys, tmpdir)
	if err != nil {
		return "", fail(KindTemplate, "getcwd", tmpdir, err)
	}
	template := abs + "/" + rootPrefix + "XXXXXX"
	if len(template) >= unix.PathMax {
		return "", fail(KindTemplate, "mkdtemp", template, ErrPathTooLong)
	}
	if tmpdir, err = sys.EvalSymlinks(abs); err != nil {
		return "", fail(KindTemplate, "mkdtemp", template, err)
	}

	for range claimRetries {
		name := filepath.Join(tmpdir, rootPrefix+randomSuffix())
		if err = sys.Mkdir(name, 0o700); err == nil {
			return name, nil
		}
		if !errors.Is(err, fs.ErrExist) {
			break
		}
	}
	return "", fail(KindTemplate, "mkdtemp", template, err)
}

func randomSuffix() string {
	var b [suffixLen]byte
	// crypto/rand.Read never returns an error on linux.
	rand.Read(b[:])
	for i := range b {
		b[i] = suffixChars[int(b[i])%len(suffixChars)]
	}
	return string(b[:])
}
