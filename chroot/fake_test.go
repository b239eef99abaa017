package chroot

import (
	"errors"
	"io"
	"log/slog"
	"os/exec"
	"sort"
	"strings"
	"testing"
)

// errExeced stands in for a successful exec, which never returns.
var errExeced = errors.New("image replaced")

// fakeSys does real filesystem reads and mkdirs through Host, and records
// the privileged calls instead of making them.
type fakeSys struct {
	Host

	uid, gid int
	home     string
	homeErr  error
	env      map[string]string

	unshareErr error
	procErr    map[string]error
	mountErr   map[string]error // keyed by target
	chrootErr  error
	wd         string
	wdErr      error
	chdirErr   map[string]error
	paths      map[string]string
	execErr    error

	calls    []string
	proc     map[string]string
	mounts   map[string]string // target -> source
	execArgv []string
	execEnv  []string
}

func newFakeSys() *fakeSys {
	return &fakeSys{
		uid:      1000,
		gid:      100,
		home:     "/home/u",
		env:      map[string]string{},
		procErr:  map[string]error{},
		mountErr: map[string]error{},
		chdirErr: map[string]error{},
		paths:    map[string]string{},
		proc:     map[string]string{},
		mounts:   map[string]string{},
		wd:       "/home/u/src",
	}
}

func (f *fakeSys) record(call string) { f.calls = append(f.calls, call) }

func (f *fakeSys) Getuid() int { return f.uid }
func (f *fakeSys) Getgid() int { return f.gid }

func (f *fakeSys) LookupHome(int) (string, error) { return f.home, f.homeErr }

func (f *fakeSys) Getenv(key string) string { return f.env[key] }

func (f *fakeSys) Setenv(key, value string) error {
	f.record("setenv " + key + "=" + value)
	f.env[key] = value
	return nil
}

func (f *fakeSys) Unsetenv(key string) error {
	delete(f.env, key)
	return nil
}

func (f *fakeSys) Environ() []string {
	env := make([]string, 0, len(f.env))
	for k, v := range f.env {
		env = append(env, k+"="+v)
	}
	sort.Strings(env)
	return env
}

func (f *fakeSys) Unshare(flags int) error {
	f.record("unshare")
	return f.unshareErr
}

func (f *fakeSys) WriteProc(name string, data []byte) error {
	f.record("write " + name)
	if err := f.procErr[name]; err != nil {
		return err
	}
	f.proc[name] = string(data)
	return nil
}

func (f *fakeSys) BindMount(source, target string) error {
	f.record("mount " + source + " " + target)
	if err := f.mountErr[target]; err != nil {
		return err
	}
	f.mounts[target] = source
	return nil
}

func (f *fakeSys) Getwd() (string, error) { return f.wd, f.wdErr }

func (f *fakeSys) Chdir(dir string) error {
	f.record("chdir " + dir)
	return f.chdirErr[dir]
}

func (f *fakeSys) Chroot(dir string) error {
	f.record("chroot " + dir)
	return f.chrootErr
}

func (f *fakeSys) LookPath(file string) (string, error) {
	if path, ok := f.paths[file]; ok {
		return path, nil
	}
	return "", exec.ErrNotFound
}

func (f *fakeSys) Exec(path string, argv, envv []string) error {
	f.record("exec " + path)
	f.execArgv = argv
	f.execEnv = envv
	if f.execErr != nil {
		return f.execErr
	}
	return errExeced
}

// index returns the position of the first call with prefix, or -1.
func (f *fakeSys) index(prefix string) int {
	for i, call := range f.calls {
		if strings.HasPrefix(call, prefix) {
			return i
		}
	}
	return -1
}

func (f *fakeSys) called(prefix string) bool { return f.index(prefix) >= 0 }

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func requireKind(t *testing.T, err error, want Kind) {
	t.Helper()
	if err == nil {
		t.Fatalf("expected %s error, got nil", want)
	}
	if got := KindOf(err); got != want {
		t.Fatalf("KindOf(%v) = %s, want %s", err, got, want)
	}
}
