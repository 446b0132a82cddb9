package db

import "time"

// PromotionConfig describes a marketing page and its navigation entry.
// At most one config is active at a time.
type PromotionConfig struct {
	ID          uint             `gorm:"primaryKey" json:"id"`
	IsEnabled   bool             `gorm:"default:false" json:"isEnabled"`
	IsActive    bool             `gorm:"default:false;index" json:"isActive"`
	NavTitle    string           `gorm:"size:80" json:"navTitle"`
	PageURL     string           `gorm:"size:120;uniqueIndex;not null" json:"pageUrl"`
	Title       string           `gorm:"size:200;not null" json:"title"`
	Description string           `gorm:"type:text" json:"description"`
	Images      []PromotionImage `gorm:"foreignKey:ConfigID;constraint:OnDelete:CASCADE" json:"images"`
	CreatedAt   time.Time        `json:"createdAt"`
	UpdatedAt   time.Time        `json:"updatedAt"`
}

// TableName 指定自定义表名。
func (PromotionConfig) TableName() string {
	return "promotion_configs"
}

// PromotionImage is an image shown on a promotion page, sorted by ImageOrder.
type PromotionImage struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	ConfigID    uint      `gorm:"not null;index" json:"configId"`
	ImageURL    string    `gorm:"size:1024;not null" json:"imageUrl"`
	StorageKey  string    `gorm:"size:512" json:"-"`
	ImageOrder  int       `gorm:"default:0" json:"imageOrder"`
	ImageAlt    string    `gorm:"size:255" json:"imageAlt"`
	ImageWidth  int       `json:"imageWidth"`
	ImageHeight int       `json:"imageHeight"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// TableName 指定自定义表名。
func (PromotionImage) TableName() string {
	return "promotion_images"
}
