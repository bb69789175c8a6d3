package models

import (
	"time"
)

// Document 用户上传的PDF文档，上传后只读
type Document struct {
	ID          string    `gorm:"primaryKey;column:id;size:64" json:"id"`
	OwnerID     string    `gorm:"column:owner_id;size:128;not null;index" json:"owner_id"`
	Name        string    `gorm:"column:name;size:255;not null" json:"name"`
	Size        int64     `gorm:"column:size;not null" json:"size"`
	ContentType string    `gorm:"column:content_type;size:100" json:"content_type"`
	ObjectKey   string    `gorm:"column:object_key;size:500" json:"object_key"`
	DownloadURL string    `gorm:"column:download_url;type:text" json:"download_url"`
	CreatedAt   time.Time `gorm:"column:created_at;not null" json:"created_at"`
}

func (Document) TableName() string {
	return "documents"
}
