package models

import (
	"time"
)

// Contact is an imported recipient. Phone holds digits only, with country code.
type Contact struct {
	ID        string    `gorm:"primaryKey" json:"id"`
	Name      string    `gorm:"type:varchar(255)" json:"name"`
	Phone     string    `gorm:"type:varchar(50);index" json:"phone"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (Contact) TableName() string {
	return "contacts"
}

// Account is the single operator account record. RegisteredNumber is the
// phone number linked to the messaging session; InstanceToken is the
// credential returned by the session service when an instance is created.
type Account struct {
	ID               uint      `gorm:"primaryKey" json:"id"`
	RegisteredNumber string    `gorm:"type:varchar(50)" json:"registered_number"`
	InstanceToken    string    `gorm:"type:varchar(255)" json:"-"`
	UpdatedAt        time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (Account) TableName() string {
	return "accounts"
}

// TransmissionRecord is the persisted summary of one completed run.
type TransmissionRecord struct {
	ID         string    `gorm:"primaryKey" json:"id"`
	Total      int       `json:"total"`
	Sent       int       `json:"sent"`
	Errors     int       `json:"errors"`
	DurationMs int64     `json:"duration_ms"`
	CreatedAt  time.Time `gorm:"autoCreateTime" json:"created_at"`
}

func (TransmissionRecord) TableName() string {
	return "transmission_records"
}

// MessageLog is one outgoing message attempt within a run.
type MessageLog struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	RunID     string    `gorm:"index;type:varchar(64)" json:"run_id"`
	Phone     string    `gorm:"type:varchar(50)" json:"phone"`
	Content   string    `gorm:"type:text" json:"content"`
	Status    string    `gorm:"type:varchar(20)" json:"status"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
}

func (MessageLog) TableName() string {
	return "message_logs"
}
