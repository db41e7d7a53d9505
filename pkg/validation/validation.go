package validation

import (
	"fmt"
	"regexp"
	"strings"
)

// PeerIDRegex validates peer ID format. Device identities may embed
// colons, dots and at-signs (e.g. "desktop:alice@host").
var PeerIDRegex = regexp.MustCompile(`^[a-zA-Z0-9:_.@-]+$`)

const maxPeerIDLength = 128

// ValidatePeerID checks the identity a client supplies at registration.
func ValidatePeerID(peerID string) error {
	peerID = strings.TrimSpace(peerID)
	if peerID == "" {
		return fmt.Errorf("peer ID is required")
	}
	if len(peerID) > maxPeerIDLength {
		return fmt.Errorf("peer ID is too long (max %d characters)", maxPeerIDLength)
	}
	if !PeerIDRegex.MatchString(peerID) {
		return fmt.Errorf("peer ID contains invalid characters (only letters, numbers, :, _, ., @, - allowed)")
	}
	return nil
}
