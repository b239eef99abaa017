package chroot

import (
	"errors"
	"os/user"
	"path/filepath"
	"testing"
)

func TestResolveIdentity(t *testing.T) {
	sys := newFakeSys()
	id, err := ResolveIdentity(sys, 1000, 100)
	if err != nil {
		t.Fatal(err)
	}
	if id != (Identity{UID: 1000, GID: 100, Home: "/home/u"}) {
		t.Errorf("ResolveIdentity = %+v", id)
	}
	if got, want := DefaultStore(id), filepath.Join("/home/u", ".nix"); got != want {
		t.Errorf("DefaultStore = %q, want %q", got, want)
	}
}

func TestResolveIdentityUnknownUser(t *testing.T) {
	sys := newFakeSys()
	sys.homeErr = user.UnknownUserIdError(4242)
	_, err := ResolveIdentity(sys, 4242, 4242)
	requireKind(t, err, KindInput)
	var unknown user.UnknownUserIdError
	if !errors.As(err, &unknown) {
		t.Errorf("error %v does not carry the lookup failure", err)
	}
}

func TestResolveIdentityNoHome(t *testing.T) {
	sys := newFakeSys()
	sys.home = ""
	_, err := ResolveIdentity(sys, 1000, 100)
	requireKind(t, err, KindInput)
	if !errors.Is(err, ErrNoHome) {
		t.Errorf("error %v is not ErrNoHome", err)
	}
}
