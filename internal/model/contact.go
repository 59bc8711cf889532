package model

import "time"

// ContactStatus tracks how far staff got with a contact message.
type ContactStatus string

const (
	ContactNew        ContactStatus = "NEW"
	ContactInProgress ContactStatus = "IN_PROGRESS"
	ContactResolved   ContactStatus = "RESOLVED"
)

func (s ContactStatus) Valid() bool {
	switch s {
	case ContactNew, ContactInProgress, ContactResolved:
		return true
	}
	return false
}

// ContactMessage is a message sent through the public contact form.  UserID
// is set when the sender was signed in.
type ContactMessage struct {
	ID        uint64        `json:"id"`
	Name      string        `json:"name"`
	Email     string        `json:"email"`
	Phone     *string       `json:"phone"`
	Message   string        `json:"message"`
	Status    ContactStatus `json:"status"`
	UserID    *uint64       `json:"user_id"`
	CreatedAt time.Time     `json:"created_at"`
	UpdatedAt time.Time     `json:"updated_at"`
}

// ContactFilter narrows the staff inbox.  Zero values mean no filter.
type ContactFilter struct {
	Status ContactStatus
	Search string
	Page   int
	Limit  int
}
