// Package model contains the interfaces shared by several packages.
//
// # Criteria for adding a type to this package
//
// This package should only contain interfaces and small data types that
// are shared by several packages, with the objective of separating
// unrelated pieces of code and making unit testing easier. In general,
// this package should not contain logic.
//
// # Content of this package
//
// - keyvaluestore.go: generic definition of a key-value store, used by
// the identity store to persist and load credentials;
//
// - logger.go: generic definition of an apex/log compatible logger,
// used by transports, the broker, the relay and the binaries.
package model
