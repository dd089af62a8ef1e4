// Package kvstore contains key-value stores. The identity store uses
// them to persist the injector's credentials across restarts.
package kvstore
