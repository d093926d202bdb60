package server

import (
	"fmt"
	"io"
	"mime/multipart"

	"inkwell/internal/models"
	"inkwell/internal/service"

	"github.com/gofiber/fiber/v2"
)

const uploadField = "files"

// UploadFiles handles POST /api/upload
// @Summary Upload attachments
// @Description Stores up to 10 files from the multipart field "files". Images also get a webp preview.
// @Tags attachments
// @Accept multipart/form-data
// @Produce json
// @Param files formData file true "Files to upload"
// @Success 201 {object} models.Envelope{data=[]models.Attachment}
// @Failure 400 {object} models.Envelope
// @Failure 500 {object} models.Envelope
// @Security BearerAuth
// @Router /upload [post]
func (s *Server) UploadFiles(c *fiber.Ctx) error {
	form, err := c.MultipartForm()
	if err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Expected a multipart form"))
	}

	headers := form.File[uploadField]
	if len(headers) > service.MaxFilesPerUpload {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError(fmt.Sprintf("Too many files (max %d)", service.MaxFilesPerUpload)))
	}

	svc := s.attachmentSvc()
	files := make([]service.UploadFile, 0, len(headers))
	for _, fh := range headers {
		if fh.Size > svc.MaxUploadSizeBytes() {
			return models.RespondWithError(c, fiber.StatusBadRequest,
				models.NewValidationError(fmt.Sprintf("%s exceeds the upload size limit", fh.Filename)))
		}
		data, err := readUpload(fh, svc.MaxUploadSizeBytes())
		if err != nil {
			return models.RespondWithAppError(c, err)
		}
		files = append(files, service.UploadFile{
			FieldName:    uploadField,
			OriginalName: fh.Filename,
			ContentType:  fh.Header.Get(fiber.HeaderContentType),
			Content:      data,
		})
	}

	userID, _ := currentUserID(c)
	attachments, err := svc.Upload(c.UserContext(), userID, files)
	if err != nil {
		return models.RespondWithAppError(c, err)
	}
	return models.RespondWithSuccess(c, fiber.StatusCreated, "Files uploaded", attachments)
}

// readUpload reads at most limit+1 bytes so an understated header size is
// still caught by validation.
func readUpload(fh *multipart.FileHeader, limit int64) ([]byte, error) {
	f, err := fh.Open()
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	defer func() { _ = f.Close() }()

	data, err := io.ReadAll(io.LimitReader(f, limit+1))
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	return data, nil
}
