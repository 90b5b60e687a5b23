/*
Package randx provides generation of the ephemeral identifiers the server hands out.

Identities are UUID v4 strings: practically collision-free, opaque to clients, and
carrying no information about the connection they belong to.
*/
package randx

import "github.com/google/uuid"

// Identity generates a fresh UUID v4 string to serve as a connection's ephemeral
// identity. Collision probability is treated as zero.
func Identity() string {
	return uuid.New().String()
}

// IsValidIdentity checks whether the given string parses as a UUID, for cheap
// rejection of garbage identities arriving in client payloads.
func IsValidIdentity(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}
