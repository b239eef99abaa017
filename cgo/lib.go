// Package cgo enters a new mount and user namespace before the Go runtime
// starts any threads. The kernel refuses unshare(CLONE_NEWUSER) from a
// multi-threaded process, so the call has to happen in a constructor.
//
// The constructor only acts when the stage marker is present in the
// environment; otherwise importing this package has no effect.
package cgo

/*
// Originally from https://github.com/howardjohn/unshare-go
#cgo CFLAGS: -Wall
#define _GNU_SOURCE
#include <errno.h>
#include <sched.h>
#include <stdlib.h>
#include <string.h>

int nuc_requested = 0;
int nuc_flags = 0;
int nuc_errno = 0;

__attribute((constructor(101))) void enter_userns(void) {
	const char *stage = getenv("NIXUSERCHROOT_STAGE");
	if (stage == NULL || strcmp(stage, "namespace") != 0) {
		return;
	}
	nuc_requested = 1;
	if (unshare(CLONE_NEWNS | CLONE_NEWUSER) < 0) {
		nuc_errno = errno;
		return;
	}
	nuc_flags = CLONE_NEWNS | CLONE_NEWUSER;
}
*/
import "C"

import "syscall"

// StageEnv is the variable the constructor looks for.
const (
	StageEnv   = "NIXUSERCHROOT_STAGE"
	StageValue = "namespace"
)

// Unshared reports whether the constructor entered namespaces matching
// flags. A failed attempt is returned as its errno. When the stage marker
// was absent both results are zero.
func Unshared(flags int) (bool, error) {
	if C.nuc_requested == 0 {
		return false, nil
	}
	if C.nuc_errno != 0 {
		return false, syscall.Errno(C.nuc_errno)
	}
	return int(C.nuc_flags) == flags, nil
}
