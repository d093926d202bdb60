package models

import "time"

// Attachment is the metadata record of an uploaded file.
type Attachment struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	Filename     string    `gorm:"size:255;not null" json:"filename"`
	OriginalName string    `gorm:"size:255" json:"originalname"`
	Path         string    `gorm:"not null" json:"path"`
	PreviewPath  string    `json:"previewPath,omitempty"`
	MimeType     string    `gorm:"size:100" json:"mimetype"`
	Size         int64     `json:"size"`
	UploaderID   uint      `gorm:"index" json:"uploaderId"`
	CreatedAt    time.Time `json:"createdAt"`
}
