package model

import "time"

// Notification kinds.
const (
	NotificationAssignmentCreated = "assignment_created"
)

// Notification statuses.
const (
	NotificationPending = "pending"
	NotificationSent    = "sent"
	NotificationFailed  = "failed"
)

// Notification is an outbox entry: a side effect recorded in the same
// transaction as the change that caused it and delivered later.
type Notification struct {
	ID             string     `json:"id"`
	AssignmentID   *string    `json:"assignmentId"`
	Kind           string     `json:"kind"`
	RecipientName  string     `json:"recipientName"`
	RecipientEmail string     `json:"recipientEmail"`
	Payload        string     `json:"payload"`
	Status         string     `json:"status"`
	Attempts       int        `json:"attempts"`
	LastError      string     `json:"lastError,omitempty"`
	NextAttemptAt  time.Time  `json:"nextAttemptAt"`
	CreatedAt      time.Time  `json:"createdAt"`
	SentAt         *time.Time `json:"sentAt,omitempty"`
}

// AssignmentNotice is the payload of an assignment_created notification.
type AssignmentNotice struct {
	AssignmentID string      `json:"assignmentId"`
	Employee     NoticeParty `json:"employee"`
	Asset        NoticeAsset `json:"asset"`
	AssignedDate time.Time   `json:"assignedDate"`
}

// NoticeParty identifies the recipient of a notice.
type NoticeParty struct {
	Name  string `json:"name"`
	Email string `json:"email"`
}

// NoticeAsset describes the equipment in a notice.
type NoticeAsset struct {
	Name         string `json:"name"`
	Type         string `json:"type"`
	SerialNumber string `json:"serialNumber"`
}

// NoticeFor builds the notification payload for a stored assignment.
func NoticeFor(a *Assignment) AssignmentNotice {
	n := AssignmentNotice{
		AssignmentID: a.ID,
		Employee:     NoticeParty{Name: a.EmployeeName, Email: a.EmployeeEmail},
		Asset: NoticeAsset{
			Name:         a.AssetName(),
			Type:         string(a.AssetType),
			SerialNumber: a.SerialNumber,
		},
	}
	if a.AssignedDate != nil {
		n.AssignedDate = a.AssignedDate.Time
	}
	return n
}
