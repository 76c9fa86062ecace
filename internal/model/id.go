package model

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// NewID builds the stable identifier format shared by every persisted
// entity: "<prefix>_<epochMillis>_<randomSuffix>".
func NewID(prefix string) string {
	return NewIDAt(prefix, time.Now().UTC())
}

func NewIDAt(prefix string, at time.Time) string {
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:9]
	return fmt.Sprintf("%s_%d_%s", prefix, at.UnixMilli(), suffix)
}
