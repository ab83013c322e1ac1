package domain

import "time"

// Account is a student fee record. Balance is the outstanding amount in
// whole currency units; completed payments are debited from it.
type Account struct {
	ID            string    `json:"id"`
	StudentName   string    `json:"studentName"`
	GuardianEmail string    `json:"guardianEmail,omitempty"`
	Balance       int64     `json:"balance"`
	CreatedAt     time.Time `json:"createdAt"`
	UpdatedAt     time.Time `json:"updatedAt"`
}
