package repository

import (
	"context"

	"inkwell/internal/models"
	"inkwell/internal/observability"

	"gorm.io/gorm"
)

// AttachmentRepository stores upload metadata.
type AttachmentRepository interface {
	CreateBatch(ctx context.Context, attachments []*models.Attachment) error
}

type attachmentRepository struct {
	db *gorm.DB
}

func NewAttachmentRepository(db *gorm.DB) AttachmentRepository {
	return &attachmentRepository{db: db}
}

// CreateBatch inserts every record in a single statement.
func (r *attachmentRepository) CreateBatch(ctx context.Context, attachments []*models.Attachment) error {
	if len(attachments) == 0 {
		return nil
	}
	defer observability.TrackQuery("insert", "attachments")()

	if err := r.db.WithContext(ctx).Create(&attachments).Error; err != nil {
		return models.NewInternalError(err)
	}
	return nil
}
