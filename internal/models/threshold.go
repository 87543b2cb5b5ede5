package models

// ThresholdRegistration asks for an alert when ItemKey falls to or below
// Threshold. Registrations belong to an owner, not to a location.
type ThresholdRegistration struct {
	Owner     string `json:"owner"`
	ItemKey   string `json:"itemName"`
	Threshold int    `json:"threshold"`
}

// Recipient is an owner known at a location together with the addresses
// alerts are delivered to.
type Recipient struct {
	Owner       string `json:"owner"`
	PhoneNumber string `json:"phoneNumber"`
	Email       string `json:"email,omitempty"`
}
