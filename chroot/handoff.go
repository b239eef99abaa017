package chroot

import (
	"encoding/base64"
	"errors"

	"github.com/fxamacker/cbor/v2"
)

// HandoffEnv carries the encoded Handoff into the namespace image.
const HandoffEnv = "NIXUSERCHROOT_HANDOFF"

// Handoff is what the host image resolved, passed across the re-exec
// into the namespace image.
type Handoff struct {
	Root  string   `cbor:"1,keyasint"`
	Store string   `cbor:"2,keyasint"`
	UID   int      `cbor:"3,keyasint"`
	GID   int      `cbor:"4,keyasint"`
	Argv  []string `cbor:"5,keyasint"`
}

var errHandoffIncomplete = errors.New("incomplete handoff")

var encMode cbor.EncMode

func init() {
	var err error
	encMode, err = cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic("chroot: CBOR encoder initialization failed: " + err.Error())
	}
}

// Encode returns h as base64 CBOR suitable for an environment value.
func (h Handoff) Encode() (string, error) {
	b, err := encMode.Marshal(h)
	if err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

// DecodeHandoff reverses Encode and checks that every field is set.
func DecodeHandoff(s string) (Handoff, error) {
	var h Handoff
	b, err := base64.RawURLEncoding.DecodeString(s)
	if err != nil {
		return h, fail(KindInput, "decode", HandoffEnv, err)
	}
	if err := cbor.Unmarshal(b, &h); err != nil {
		return h, fail(KindInput, "decode", HandoffEnv, err)
	}
	if h.Root == "" || h.Store == "" || len(h.Argv) == 0 {
		return h, fail(KindInput, "decode", HandoffEnv, errHandoffIncomplete)
	}
	return h, nil
}
