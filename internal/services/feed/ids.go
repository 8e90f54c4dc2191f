package feed

import (
	"strings"

	"github.com/oklog/ulid/v2"
)

// Temporary identities carry a reserved prefix, so they can never collide
// with the bare ULIDs the remote store issues.
const tempIdPrefix = "tmp-"

func NewTempId() string {
	return tempIdPrefix + ulid.Make().String()
}

func IsTempId(id string) bool {
	return strings.HasPrefix(id, tempIdPrefix)
}
