// Package deviceid derives the deterministic, client-side device UUID
// shared by every client implementation so the server never has to issue
// or store a secret on the client's behalf.
package deviceid

import (
	"strings"

	"github.com/google/uuid"
)

// namespace is a fixed v5 UUID namespace scoping every derived device id to
// this application; changing it would re-derive different device ids for
// every existing install.
var namespace = uuid.MustParse("7b6e9d2c-6a1f-4e8e-9c7b-1a2b3c4d5e6f")

// Derive computes the deterministic device_uuid from lower(email)+":"+password
// via a namespaced v5 UUID, per spec §3's Device attributes.
func Derive(email, password string) string {
	name := strings.ToLower(strings.TrimSpace(email)) + ":" + password
	return uuid.NewSHA1(namespace, []byte(name)).String()
}
