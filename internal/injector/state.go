package injector

//
// State files
//

import (
	"bytes"
	"path/filepath"

	"github.com/ouinet-go/ouinet/internal/identity"
	"github.com/rogpeppe/go-internal/lockedfile"
)

// Names of the state files we create inside the repo directory.
const (
	EndpointTCPStateFile = "endpoint-tcp"
	EndpointI2PStateFile = "endpoint-i2p"
	CacheIPNSStateFile   = "cache-ipns"
)

// WriteStateFile writes a state file inside repo.
func WriteStateFile(repo, name, value string) error {
	return lockedfile.Write(filepath.Join(repo, name), bytes.NewReader([]byte(value)), 0644)
}

// PublishState writes the state files that tell users how to reach
// the injector: the TCP endpoint, when tcpEndpoint is not empty, the
// public overlay identity, when we have one, and the naming identity.
func PublishState(repo string, creds *identity.Credentials, tcpEndpoint string) error {
	if err := WriteStateFile(repo, CacheIPNSStateFile, creds.Naming.Advertised()); err != nil {
		return err
	}
	if tcpEndpoint != "" {
		if err := WriteStateFile(repo, EndpointTCPStateFile, tcpEndpoint); err != nil {
			return err
		}
	}
	if creds.Overlay != nil {
		if err := WriteStateFile(repo, EndpointI2PStateFile, creds.Overlay.PublicID()); err != nil {
			return err
		}
	}
	return nil
}
