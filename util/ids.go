package util

import (
	"fmt"
	"github.com/google/uuid"
	"strings"
)

// ShortId returns a prefixed 12-hex-character identifier, unique enough for
// in-process claim handles.
func ShortId(prefix string) string {
	return fmt.Sprintf("%s_%s", prefix, strings.Replace(uuid.New().String(), "-", "", -1)[:12])
}
