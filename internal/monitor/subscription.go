package monitor

import "strings"

// AddressPrefix is the bech32 prefix of Demex/Carbon addresses.
const AddressPrefix = "swth"

// Subscription is one subscriber's monitoring request: alert when the health
// factor of Address drops below Threshold.
type Subscription struct {
	Threshold float64 `json:"threshold"`
	Address   string  `json:"address"`
}

// ValidAddress reports whether addr looks like a Demex address. Only the
// prefix is checked; no checksum or length validation.
func ValidAddress(addr string) bool {
	return strings.HasPrefix(addr, AddressPrefix)
}
