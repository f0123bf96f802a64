package provider

// Status is the health state of a registered provider.
//
// Only StatusAvailable permits dispatch. Failed health checks move a
// provider to StatusError; a successful check moves it back to
// StatusAvailable. StatusBusy and StatusMaintenance are set
// administratively.
type Status string

const (
	StatusAvailable   Status = "available"
	StatusBusy        Status = "busy"
	StatusError       Status = "error"
	StatusMaintenance Status = "maintenance"
)

// CanDispatch reports whether the state permits sending requests.
func (s Status) CanDispatch() bool {
	return s == StatusAvailable
}
