package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

func fingerprint(itemID, stage string, attempt int) string {
	sum := sha256.Sum256([]byte(fmt.Sprintf("%s|%s|%d", itemID, stage, attempt)))
	return hex.EncodeToString(sum[:])
}
