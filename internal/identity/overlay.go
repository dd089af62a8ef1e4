package identity

import (
	"bytes"
	"crypto/sha256"
	"encoding/base32"
	"encoding/base64"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// i2pEncoding is the base64 variant used by I2P, which replaces
// '+' and '/' with '-' and '~'.
var i2pEncoding = base64.NewEncoding(
	"ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789-~")

// b32Encoding is the encoding of .b32.i2p addresses.
var b32Encoding = base32.NewEncoding("abcdefghijklmnopqrstuvwxyz234567").WithPadding(base32.NoPadding)

const (
	// destKeysSize is the size of the encryption public key plus
	// the signing public key inside a destination.
	destKeysSize = 256 + 128

	// destCertHeaderSize is the size of the certificate type and length.
	destCertHeaderSize = 3

	// privEncKeySize is the size of the encryption private key that
	// follows the destination in a private key blob.
	privEncKeySize = 256
)

var (
	errDestinationTooShort = errors.New("destination too short")
	errPrivateKeyTooShort  = errors.New("private key too short")
	errPublicIDMismatch    = errors.New("public ID is not a prefix of the private key")
)

// overlayDocument is the JSON serialization of an overlay identity.
type overlayDocument struct {
	PublicID   string
	PrivateKey string
}

func materializeOverlay(blob []byte) (*Identity, error) {
	var doc overlayDocument
	trimmed := bytes.TrimSpace(blob)
	if bytes.HasPrefix(trimmed, []byte("{")) {
		if err := json.Unmarshal(trimmed, &doc); err != nil {
			return nil, corrupt(Overlay, err)
		}
	} else {
		doc.PrivateKey = string(trimmed)
	}
	priv, err := i2pEncoding.DecodeString(strings.TrimSpace(doc.PrivateKey))
	if err != nil {
		return nil, corrupt(Overlay, err)
	}
	dest, err := destinationPrefix(priv)
	if err != nil {
		return nil, corrupt(Overlay, err)
	}
	if len(priv) <= len(dest)+privEncKeySize {
		return nil, corrupt(Overlay, errPrivateKeyTooShort)
	}
	if doc.PublicID != "" {
		claimed, err := i2pEncoding.DecodeString(strings.TrimSpace(doc.PublicID))
		if err != nil {
			return nil, corrupt(Overlay, err)
		}
		if !bytes.Equal(claimed, dest) {
			return nil, corrupt(Overlay, errPublicIDMismatch)
		}
	}
	return &Identity{
		kind:       Overlay,
		publicID:   i2pEncoding.EncodeToString(dest),
		advertised: B32Address(dest),
	}, nil
}

// destinationPrefix returns the destination at the beginning of the
// given buffer, whose length depends on the trailing certificate.
func destinationPrefix(data []byte) ([]byte, error) {
	if len(data) < destKeysSize+destCertHeaderSize {
		return nil, errDestinationTooShort
	}
	certLen := int(binary.BigEndian.Uint16(data[destKeysSize+1 : destKeysSize+destCertHeaderSize]))
	size := destKeysSize + destCertHeaderSize + certLen
	if len(data) < size {
		return nil, fmt.Errorf("%w: need %d bytes", errDestinationTooShort, size)
	}
	return data[:size], nil
}

// B32Address returns the "<base32>.b32.i2p" address of a destination.
func B32Address(dest []byte) string {
	sum := sha256.Sum256(dest)
	return b32Encoding.EncodeToString(sum[:]) + ".b32.i2p"
}

// ParseOverlayPublicID parses a base64 destination as advertised by an
// injector and returns its "<base32>.b32.i2p" address, which is what
// clients dial through the overlay router's SOCKS proxy.
func ParseOverlayPublicID(publicID string) (string, error) {
	raw, err := i2pEncoding.DecodeString(strings.TrimSpace(publicID))
	if err != nil {
		return "", corrupt(Overlay, err)
	}
	dest, err := destinationPrefix(raw)
	if err != nil {
		return "", corrupt(Overlay, err)
	}
	if len(dest) != len(raw) {
		return "", corrupt(Overlay, errors.New("trailing data after destination"))
	}
	return B32Address(dest), nil
}
