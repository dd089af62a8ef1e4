// Package identity contains the injector's persistent identities.
//
// The injector owns two independent identities. The naming identity is
// a libp2p key pair whose peer ID names the injector's content-addressed
// database (the IPNS name). The overlay identity is an I2P destination
// and its private keys; the destination names the injector's reachable
// endpoint on the overlay network independently of its IP address.
//
// We treat private keys as opaque key material. We parse them only to
// check that they are consistent with the public identifier and to derive
// the value we advertise. An [Identity] only retains the public side,
// so the private keys stay in the store.
package identity

import (
	"encoding/json"
	"fmt"

	"github.com/ouinet-go/ouinet/internal/errorsx"
)

// Kind is the kind of an [Identity].
type Kind string

const (
	// Naming is the content-addressed naming identity.
	Naming = Kind("naming")

	// Overlay is the overlay network destination identity.
	Overlay = Kind("overlay")
)

// Identity is an immutable persistent identity.
type Identity struct {
	kind       Kind
	publicID   string
	advertised string
}

// Kind returns the identity kind.
func (id *Identity) Kind() Kind {
	return id.kind
}

// PublicID returns the public identifier: the peer ID for a naming
// identity, the base64 destination for an overlay identity.
func (id *Identity) PublicID() string {
	return id.publicID
}

// Advertised returns the value that a node publishes to let others reach
// it: the peer ID for naming, the "<base32>.b32.i2p" address for overlay.
func (id *Identity) Advertised() string {
	return id.advertised
}

// String implements fmt.Stringer.
func (id *Identity) String() string {
	return fmt.Sprintf("%s:%s", id.kind, id.advertised)
}

// publicView is what we serialize to JSON.
type publicView struct {
	Kind       Kind   `json:"kind"`
	PublicID   string `json:"public_id"`
	Advertised string `json:"advertised"`
}

// MarshalJSON implements json.Marshaler.
func (id *Identity) MarshalJSON() ([]byte, error) {
	return json.Marshal(publicView{
		Kind:       id.kind,
		PublicID:   id.publicID,
		Advertised: id.advertised,
	})
}

// Materialize parses the given blob as an identity of the given kind.
//
// A naming blob is the JSON document used by IPFS configs:
//
//	{"Identity": {"PeerID": "Qm...", "PrivKey": "CAAS..."}}
//
// An overlay blob is either the I2P private key in I2P base64 or the
// JSON document {"PublicID": "...", "PrivateKey": "..."}.
//
// On failure, the returned error wraps [errorsx.ErrIdentityCorrupt].
func Materialize(kind Kind, blob []byte) (*Identity, error) {
	switch kind {
	case Naming:
		return materializeNaming(blob)
	case Overlay:
		return materializeOverlay(blob)
	default:
		return nil, fmt.Errorf("%w: unknown identity kind %q", errorsx.ErrIdentityCorrupt, kind)
	}
}

// corrupt builds an error wrapping ErrIdentityCorrupt.
func corrupt(kind Kind, err error) error {
	return fmt.Errorf("%w: %s: %s", errorsx.ErrIdentityCorrupt, kind, err.Error())
}
