// Package mocks contains mocks for the interfaces used by the client
// and the injector. Each mock has a MockXxx function field for each
// method Xxx of the interface it mocks.
package mocks
