package models

// SubscriberStatus is the administrative status of a subscriber account.
type SubscriberStatus string

const (
	SubscriberActive    SubscriberStatus = "active"
	SubscriberInactive  SubscriberStatus = "inactive"
	SubscriberSuspended SubscriberStatus = "suspended"
	SubscriberPending   SubscriberStatus = "pending"
)

// Subscriber is a roster entry. LoginName is the join key against
// Session.LoginName.
type Subscriber struct {
	ID        string           `json:"id"`
	LoginName string           `json:"login_name"`
	Status    SubscriberStatus `json:"status"`
	DeviceID  string           `json:"device_id,omitempty"`
}
