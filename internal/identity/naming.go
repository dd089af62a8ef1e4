package identity

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/libp2p/go-libp2p/core/crypto"
	"github.com/libp2p/go-libp2p/core/peer"
)

// namingDocument is the IPFS-compatible serialization of a naming identity.
type namingDocument struct {
	Identity struct {
		PeerID  string
		PrivKey string
	}
}

var errPeerIDMismatch = errors.New("peer ID does not match private key")

func materializeNaming(blob []byte) (*Identity, error) {
	var doc namingDocument
	if err := json.Unmarshal(blob, &doc); err != nil {
		return nil, corrupt(Naming, err)
	}
	claimed, err := peer.Decode(doc.Identity.PeerID)
	if err != nil {
		return nil, corrupt(Naming, err)
	}
	raw, err := base64.StdEncoding.DecodeString(doc.Identity.PrivKey)
	if err != nil {
		return nil, corrupt(Naming, err)
	}
	priv, err := crypto.UnmarshalPrivateKey(raw)
	if err != nil {
		return nil, corrupt(Naming, err)
	}
	derived, err := peer.IDFromPrivateKey(priv)
	if err != nil {
		return nil, corrupt(Naming, err)
	}
	if derived != claimed {
		return nil, corrupt(Naming, fmt.Errorf("%w: %s", errPeerIDMismatch, claimed))
	}
	return &Identity{
		kind:       Naming,
		publicID:   claimed.String(),
		advertised: claimed.String(),
	}, nil
}

// GenerateNaming creates a fresh Ed25519 naming identity and returns
// its serialized blob, suitable for [Store.Provision].
func GenerateNaming() ([]byte, error) {
	priv, _, err := crypto.GenerateKeyPair(crypto.Ed25519, -1)
	if err != nil {
		return nil, err
	}
	id, err := peer.IDFromPrivateKey(priv)
	if err != nil {
		return nil, err
	}
	raw, err := crypto.MarshalPrivateKey(priv)
	if err != nil {
		return nil, err
	}
	var doc namingDocument
	doc.Identity.PeerID = id.String()
	doc.Identity.PrivKey = base64.StdEncoding.EncodeToString(raw)
	return json.Marshal(doc)
}
