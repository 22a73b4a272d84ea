package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// PageConfiguration stores the configuration a developer saved for a page,
// overriding the defaults from the pages file. Body holds the YAML document.
type PageConfiguration struct {
	ID        uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	PageID    string     `gorm:"type:text;not null;uniqueIndex" json:"page_id"`
	PageType  string     `gorm:"type:text;not null" json:"page_type"`
	Body      string     `gorm:"type:text;not null" json:"body"`
	UpdatedBy *uuid.UUID `gorm:"type:uuid" json:"updated_by,omitempty"`
	CreatedAt time.Time  `gorm:"type:timestamptz;autoCreateTime" json:"created_at"`
	UpdatedAt time.Time  `gorm:"type:timestamptz;autoUpdateTime" json:"updated_at"`
}

func (PageConfiguration) TableName() string {
	return "page_configurations"
}

func (p *PageConfiguration) BeforeCreate(tx *gorm.DB) (err error) {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	return
}

// Relationship is an edge of the ER diagram rendered for a model database.
type Relationship struct {
	FromTable string
	ToTable   string
	Type      string // "||--o{", "||--||", etc.
}
