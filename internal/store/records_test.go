package store

import "time"

// GORM views of the fixed tables, used to read rows back as structs.

type userRecord struct {
	ID        int64     `gorm:"column:user_id;primaryKey;autoIncrement"`
	Username  string    `gorm:"column:username;not null;unique"`
	Password  string    `gorm:"column:password;not null"`
	CreatedAt time.Time `gorm:"column:created_at"`
}

func (userRecord) TableName() string { return "User" }

type roomRecord struct {
	ID        int64     `gorm:"column:room_id;primaryKey;autoIncrement"`
	Name      string    `gorm:"column:room_name;not null;unique"`
	CreatedAt time.Time `gorm:"column:created_at"`
}

func (roomRecord) TableName() string { return "Room" }

type messageRecord struct {
	ID        int64     `gorm:"column:message_id;primaryKey;autoIncrement"`
	UserID    int64     `gorm:"column:user_id;not null"`
	RoomID    int64     `gorm:"column:room_id;not null"`
	Body      string    `gorm:"column:message;not null"`
	Timestamp time.Time `gorm:"column:timestamp"`
}

func (messageRecord) TableName() string { return "Message" }

// LastReadAt is nil for rows that predate read tracking.
type membershipRecord struct {
	UserID     int64      `gorm:"column:user_id;primaryKey"`
	RoomID     int64      `gorm:"column:room_id;primaryKey"`
	LastReadAt *time.Time `gorm:"column:last_read_at"`
}

func (membershipRecord) TableName() string { return "RoomUser" }
