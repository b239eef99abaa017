package chroot

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/exec"
	"os/user"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"

	"golang.org/x/sys/unix"

	"github.com/take-cheeze/nix-user-chroot/cgo"
)

// Sys is the set of operating system calls the stages are built from.
type Sys interface {
	Getuid() int
	Getgid() int
	// LookupHome returns the home directory recorded for uid.
	LookupHome(uid int) (string, error)
	Getenv(key string) string
	Stat(name string) (fs.FileInfo, error)
	ReadDir(name string) ([]fs.DirEntry, error)
	Mkdir(name string, perm fs.FileMode) error
	EvalSymlinks(path string) (string, error)

	Unshare(flags int) error
	// WriteProc writes data to an existing file opened write-only.
	WriteProc(name string, data []byte) error
	// BindMount recursively binds source on target.
	BindMount(source, target string) error

	Getwd() (string, error)
	Chdir(dir string) error
	Chroot(dir string) error
	Setenv(key, value string) error
	Unsetenv(key string) error
	Environ() []string
	LookPath(file string) (string, error)
	// Exec replaces the process image. It returns only on failure.
	Exec(path string, argv, envv []string) error
}

// Host is the real Sys.
type Host struct{}

var _ Sys = Host{}

func (Host) LookupHome(uid int) (string, error) {
	u, err := user.LookupId(strconv.Itoa(uid))
	if err != nil {
		return "", err
	}
	return u.HomeDir, nil
}

func (Host) Getuid() int { return os.Getuid() }
func (Host) Getgid() int { return os.Getgid() }
func (Host) Getenv(key string) string { return os.Getenv(key) }
func (Host) Stat(name string) (fs.FileInfo, error) { return os.Stat(name) }
func (Host) ReadDir(name string) ([]fs.DirEntry, error) { return os.ReadDir(name) }
func (Host) Mkdir(name string, perm fs.FileMode) error { return os.Mkdir(name, perm) }
func (Host) EvalSymlinks(path string) (string, error) { return filepath.EvalSymlinks(path) }
func (Host) Getwd() (string, error) { return os.Getwd() }
func (Host) Chdir(dir string) error { return os.Chdir(dir) }
func (Host) Setenv(key, value string) error { return os.Setenv(key, value) }
func (Host) Unsetenv(key string) error { return os.Unsetenv(key) }
func (Host) Environ() []string { return os.Environ() }
func (Host) Exec(path string, argv, envv []string) error { return unix.Exec(path, argv, envv) }
func (Host) Chroot(dir string) error { return unix.Chroot(dir) }

// Unshare confirms namespaces the constructor in package cgo already
// entered, and falls back to the unshare syscall otherwise.
func (Host) Unshare(flags int) error {
	entered, err := cgo.Unshared(flags)
	if entered || err != nil {
		return err
	}
	return unix.Unshare(flags)
}

// defaultPath is searched when PATH is unset, as execvp(3) does.
const defaultPath = "/bin:/usr/bin"

// LookPath resolves file the way execvp(3) would. Matches through relative
// PATH entries are accepted, and an unset PATH searches defaultPath.
func (Host) LookPath(file string) (string, error) {
	if _, ok := os.LookupEnv("PATH"); !ok && !strings.Contains(file, "/") {
		for _, dir := range filepath.SplitList(defaultPath) {
			path := filepath.Join(dir, file)
			if info, err := os.Stat(path); err == nil && !info.IsDir() && info.Mode()&0o111 != 0 {
				return path, nil
			}
		}
		return "", &exec.Error{Name: file, Err: exec.ErrNotFound}
	}
	path, err := exec.LookPath(file)
	if errors.Is(err, exec.ErrDot) {
		return path, nil
	}
	return path, err
}

func (Host) WriteProc(name string, data []byte) error {
	f, err := os.OpenFile(name, os.O_WRONLY, 0)
	if err != nil {
		return err
	}
	if _, err = f.Write(data); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func (Host) BindMount(source, target string) error {
	err := unix.Mount(source, target, "none", unix.MS_BIND|unix.MS_REC, "")
	if err == nil {
		return nil
	}
	var errno syscall.Errno
	if !errors.As(err, &errno) {
		return fmt.Errorf("bind %s on %s: %w", source, target, err)
	}
	return &MountError{source, target, errno}
}
