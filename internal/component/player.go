package component

import (
	"crypto/md5"

	"github.com/google/uuid"
)

// PlayerIdentity stores the authenticated profile of a connection entity.
type PlayerIdentity struct {
	UUID     uuid.UUID
	Username string
}

// OfflineUUID derives the profile id an offline-mode server assigns to a
// username: the MD5 of "OfflinePlayer:<name>" stamped as a version 3 UUID.
func OfflineUUID(username string) uuid.UUID {
	h := md5.Sum([]byte("OfflinePlayer:" + username))
	h[6] = h[6]&0x0f | 0x30
	h[8] = h[8]&0x3f | 0x80
	return uuid.UUID(h)
}
