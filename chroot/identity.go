package chroot

import "strconv"

// Identity is the calling user as seen on the host, before any namespace
// is entered.
type Identity struct {
	UID, GID int
	Home     string
}

// ResolveIdentity looks up the home directory of uid.
func ResolveIdentity(sys Sys, uid, gid int) (Identity, error) {
	home, err := sys.LookupHome(uid)
	if err != nil {
		return Identity{}, fail(KindInput, "getpwuid", strconv.Itoa(uid), err)
	}
	if home == "" {
		return Identity{}, fail(KindInput, "getpwuid", strconv.Itoa(uid), ErrNoHome)
	}
	return Identity{UID: uid, GID: gid, Home: home}, nil
}
