package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
)

// BaseModel contains common columns for all tables
type BaseModel struct {
	ID        string    `gorm:"primaryKey;type:varchar(36)" json:"id"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// BeforeCreate will set a UUID rather than numeric ID
func (base *BaseModel) BeforeCreate(tx *gorm.DB) error {
	if base.ID == "" {
		base.ID = uuid.New().String()
	}
	return nil
}

// DoctorSchedule is one weekly availability window for a doctor.
// Minutes are counted from midnight UTC.
type DoctorSchedule struct {
	BaseModel
	DoctorID    string       `gorm:"size:64;index" json:"doctorId"`
	Weekday     time.Weekday `json:"weekday" binding:"min=0,max=6"`
	StartMinute int          `json:"startMinute" binding:"min=0,max=1439"`
	EndMinute   int          `json:"endMinute" binding:"min=1,max=1440"`
	SlotMinutes int          `gorm:"default:30" json:"slotMinutes" binding:"omitempty,min=5,max=240"`
}

// InitDB opens the MySQL connection used for doctor schedules
func InitDB(dsn string) (*gorm.DB, error) {
	db, err := gorm.Open(mysql.Open(dsn), &gorm.Config{})
	if err != nil {
		return nil, err
	}

	if err := db.AutoMigrate(&DoctorSchedule{}); err != nil {
		return nil, err
	}

	return db, nil
}
