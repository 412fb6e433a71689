package model

import "time"

type DatasetRow struct {
	SessionID string    `gorm:"type:varchar(36);primaryKey" json:"session_id"`
	Source    string    `gorm:"type:varchar(64)" json:"source"`
	Columns   string    `gorm:"type:text" json:"columns"`
	LoadedAt  time.Time `gorm:"not null" json:"loaded_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (DatasetRow) TableName() string {
	return "census_datasets"
}

type RecordRow struct {
	SessionID  string   `gorm:"type:varchar(36);primaryKey" json:"session_id"`
	Position   int      `gorm:"primaryKey" json:"position"`
	RecordID   int64    `gorm:"not null" json:"record_id"`
	Species    *string  `gorm:"type:text" json:"species"`
	Condition  *string  `gorm:"type:text" json:"condition"`
	Lat        *float64 `json:"lat"`
	Lng        *float64 `json:"lng"`
	Attributes string   `gorm:"type:text" json:"attributes"`
}

func (RecordRow) TableName() string {
	return "census_records"
}
