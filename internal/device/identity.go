// Package device exposes the device-identity boundary this subsystem
// consumes. The real provider (DID registration) lives outside the ledger;
// only the lookup interface is specified here.
package device

// Identity reports the identity the ledger scopes every query by.
type Identity interface {
	// DeviceID returns the device identifier tasks and earnings are
	// recorded under.
	DeviceID() string

	// Registered reports whether the device has completed gateway
	// registration. Registration state selects the source lineage of the
	// device's records.
	Registered() bool
}

// StaticIdentity is an Identity with fixed values, typically taken from
// configuration.
type StaticIdentity struct {
	ID           string
	IsRegistered bool
}

// DeviceID implements Identity.
func (s StaticIdentity) DeviceID() string { return s.ID }

// Registered implements Identity.
func (s StaticIdentity) Registered() bool { return s.IsRegistered }
