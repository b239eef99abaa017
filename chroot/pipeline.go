// Package chroot builds a private root in which a user-owned nix store
// appears at /nix, then runs a command inside it.
//
// The work is split across one re-exec of the running binary. The host
// image resolves the caller, the store and a fresh temporary root
// (Prepare), then replaces itself (Reexec). The namespace image, whose
// cgo constructor has already unshared mount and user namespaces, picks
// up the result (Resume) and runs the ordered, non-retriable steps:
// isolate, map ids, mirror the host root, bind the store, chroot, exec
// (Enter).
package chroot

import (
	"context"
	"log/slog"
	"strings"

	"github.com/take-cheeze/nix-user-chroot/cgo"
)

// SelfExe is re-executed to enter the namespace image.
const SelfExe = "/proc/self/exe"

// Pipeline runs the stages against Sys.
type Pipeline struct {
	Sys    Sys
	Logger *slog.Logger
	// HostRoot is the directory mirrored into the new root; "/" when empty.
	HostRoot string
}

func (p *Pipeline) hostRoot() string {
	if p.HostRoot == "" {
		return "/"
	}
	return p.HostRoot
}

// Prepare resolves the caller, verifies the store directory and creates
// the temporary root. args is everything after the program name: an
// optional store directory followed by an optional command.
func (p *Pipeline) Prepare(ctx context.Context, args []string) (Handoff, error) {
	id, err := ResolveIdentity(p.Sys, p.Sys.Getuid(), p.Sys.Getgid())
	if err != nil {
		return Handoff{}, err
	}

	storeArg := DefaultStore(id)
	var command []string
	if len(args) > 0 {
		storeArg = args[0]
		command = args[1:]
	}
	p.Logger.InfoContext(ctx, "store dir requested", "path", storeArg)

	store, err := VerifyStore(p.Sys, storeArg)
	if err != nil {
		return Handoff{}, err
	}
	p.Logger.InfoContext(ctx, "store dir", "path", store)

	root, err := MakeRoot(p.Sys, TempDir(p.Sys))
	if err != nil {
		return Handoff{}, err
	}
	p.Logger.InfoContext(ctx, "root dir", "path", root)

	return Handoff{
		Root:  root,
		Store: store,
		UID:   id.UID,
		GID:   id.GID,
		Argv:  Command(p.Sys, command),
	}, nil
}

// Reexec replaces the process with SelfExe, carrying h and the stage
// marker in the environment. It only returns on failure.
func (p *Pipeline) Reexec(ctx context.Context, h Handoff, argv []string) error {
	enc, err := h.Encode()
	if err != nil {
		return fail(KindInput, "encode", HandoffEnv, err)
	}

	env := withoutKeys(p.Sys.Environ(), cgo.StageEnv, HandoffEnv)
	env = append(env, cgo.StageEnv+"="+cgo.StageValue, HandoffEnv+"="+enc)

	p.Logger.DebugContext(ctx, "re-exec into namespace", "path", SelfExe)
	if err := p.Sys.Exec(SelfExe, argv, env); err != nil {
		return fail(KindNamespace, "exec", SelfExe, err)
	}
	return fail(KindNamespace, "exec", SelfExe, ErrExecReturned)
}

// Resume reports whether this is the namespace image and, if so, returns
// the Handoff. Both variables are removed so the final command does not
// inherit them.
func (p *Pipeline) Resume() (Handoff, bool, error) {
	if p.Sys.Getenv(cgo.StageEnv) != cgo.StageValue {
		return Handoff{}, false, nil
	}
	enc := p.Sys.Getenv(HandoffEnv)
	for _, key := range []string{cgo.StageEnv, HandoffEnv} {
		if err := p.Sys.Unsetenv(key); err != nil {
			return Handoff{}, true, fail(KindInput, "unsetenv", key, err)
		}
	}
	h, err := DecodeHandoff(enc)
	return h, true, err
}

// Enter runs the namespace stages in order and execs h.Argv. It only
// returns on failure. Failing to mirror a single host entry is logged and
// does not stop it.
func (p *Pipeline) Enter(ctx context.Context, h Handoff) error {
	if err := Isolate(ctx, p.Sys, p.Logger); err != nil {
		return err
	}
	id := Identity{UID: h.UID, GID: h.GID}
	if err := MapIdentity(ctx, p.Sys, p.Logger, id); err != nil {
		return err
	}
	if _, err := Mirror(ctx, p.Sys, p.Logger, p.hostRoot(), h.Root); err != nil {
		return err
	}
	if err := BindStore(ctx, p.Sys, p.Logger, h.Store, h.Root); err != nil {
		return err
	}
	if err := EnterRoot(ctx, p.Sys, p.Logger, h.Root); err != nil {
		return err
	}
	return Exec(ctx, p.Sys, p.Logger, h.Argv)
}

func withoutKeys(env []string, keys ...string) []string {
	out := make([]string, 0, len(env))
next:
	for _, kv := range env {
		for _, key := range keys {
			if strings.HasPrefix(kv, key+"=") {
				continue next
			}
		}
		out = append(out, kv)
	}
	return out
}
