package domain

import "time"

// DeviceType is informational metadata supplied at registration.
type DeviceType string

const (
	DeviceMobile  DeviceType = "mobile"
	DeviceDesktop DeviceType = "desktop"
	DeviceUnknown DeviceType = "unknown"
)

// Normalize maps anything outside the known set to DeviceUnknown.
func (d DeviceType) Normalize() DeviceType {
	switch d {
	case DeviceMobile, DeviceDesktop:
		return d
	}
	return DeviceUnknown
}

// QueuedEnvelope is an envelope parked in the offline message store.
// The target peer ID is the store key, not part of the entry.
type QueuedEnvelope struct {
	Envelope *Envelope `json:"envelope"`
	StoredAt time.Time `json:"storedAt"`
}
