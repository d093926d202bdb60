package service

import (
	"bytes"
	"context"
	"fmt"
	"image"
	_ "image/gif"  // register GIF decoder for previews
	_ "image/jpeg" // register JPEG decoder for previews
	_ "image/png"  // register PNG decoder for previews
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"inkwell/internal/config"
	"inkwell/internal/middleware"
	"inkwell/internal/models"
	"inkwell/internal/observability"
	"inkwell/internal/repository"

	"github.com/chai2010/webp"
	"github.com/google/uuid"
	xdraw "golang.org/x/image/draw"
)

const (
	DefaultUploadDir       = "uploads"
	DefaultMaxUploadSizeMB = 10
	MaxFilesPerUpload      = 10
	PreviewMaxSize         = 1280
	PreviewWebPQuality     = 70
)

// allowedUploads maps each accepted extension to the mime types that may
// accompany it.
var allowedUploads = map[string][]string{
	"jpeg": {"image/jpeg"},
	"jpg":  {"image/jpeg"},
	"png":  {"image/png"},
	"gif":  {"image/gif"},
	"pdf":  {"application/pdf"},
	"doc":  {"application/msword", "application/octet-stream"},
	"docx": {"application/vnd.openxmlformats-officedocument.wordprocessingml.document", "application/zip"},
	"txt":  {"text/plain"},
	"mp4":  {"video/mp4"},
}

// UploadFile is one multipart part read into memory.
type UploadFile struct {
	FieldName    string
	OriginalName string
	ContentType  string
	Content      []byte
}

type AttachmentService struct {
	repo               repository.AttachmentRepository
	uploadDir          string
	publicBaseURL      string
	maxUploadSizeBytes int64
	now                func() time.Time
}

func NewAttachmentService(repo repository.AttachmentRepository, cfg *config.Config) *AttachmentService {
	uploadDir := DefaultUploadDir
	maxUploadSizeMB := DefaultMaxUploadSizeMB
	baseURL := ""

	if cfg != nil {
		if cfg.UploadDir != "" {
			uploadDir = cfg.UploadDir
		}
		if cfg.MaxUploadMB > 0 {
			maxUploadSizeMB = cfg.MaxUploadMB
		}
		baseURL = strings.TrimRight(cfg.PublicBaseURL, "/")
	}

	return &AttachmentService{
		repo:               repo,
		uploadDir:          uploadDir,
		publicBaseURL:      baseURL,
		maxUploadSizeBytes: int64(maxUploadSizeMB) * 1024 * 1024,
		now:                time.Now,
	}
}

// MaxUploadSizeBytes is the per-file limit.
func (s *AttachmentService) MaxUploadSizeBytes() int64 {
	return s.maxUploadSizeBytes
}

// Upload validates every file, writes them (plus previews for raster images)
// under a YYYYMM directory and stores the metadata in one insert. A failure
// removes whatever was written.
func (s *AttachmentService) Upload(ctx context.Context, uploaderID uint, files []UploadFile) (out []*models.Attachment, err error) {
	ctx, span := observability.StartServiceSpan(ctx, "AttachmentService", "Upload")
	defer func() { span.Finish(err) }()

	if len(files) == 0 {
		return nil, models.NewValidationError("No files uploaded")
	}
	if len(files) > MaxFilesPerUpload {
		return nil, models.NewValidationError(fmt.Sprintf("Too many files (max %d)", MaxFilesPerUpload))
	}

	type checked struct {
		file UploadFile
		ext  string
		mime string
	}
	valid := make([]checked, 0, len(files))
	for _, f := range files {
		ext, mimeType, verr := s.validate(f)
		if verr != nil {
			return nil, verr
		}
		valid = append(valid, checked{file: f, ext: ext, mime: mimeType})
	}

	month := s.now().UTC().Format("200601")
	dir := filepath.Join(s.uploadDir, month)
	var written []string
	records := make([]*models.Attachment, 0, len(valid))

	for _, v := range valid {
		field := sanitizeFieldName(v.file.FieldName)
		filename := fmt.Sprintf("%s-%d-%s.%s", field, s.now().UnixMilli(), uuid.NewString()[:8], v.ext)
		abs := filepath.Join(dir, filename)
		if werr := writeBytesToFile(abs, v.file.Content); werr != nil {
			cleanupFiles(written)
			return nil, models.NewInternalError(werr)
		}
		written = append(written, abs)

		record := &models.Attachment{
			Filename:     filename,
			OriginalName: filepath.Base(v.file.OriginalName),
			Path:         s.publicURL(month, filename),
			MimeType:     v.mime,
			Size:         int64(len(v.file.Content)),
			UploaderID:   uploaderID,
		}

		if isRasterImage(v.mime) {
			previewName := strings.TrimSuffix(filename, "."+v.ext) + ".preview.webp"
			if perr := s.writePreview(filepath.Join(dir, previewName), v.file.Content); perr != nil {
				middleware.Logger.WarnContext(ctx, "preview generation failed", "file", filename, "error", perr)
			} else {
				written = append(written, filepath.Join(dir, previewName))
				record.PreviewPath = s.publicURL(month, previewName)
			}
		}
		records = append(records, record)
	}

	if err := s.repo.CreateBatch(ctx, records); err != nil {
		cleanupFiles(written)
		return nil, err
	}

	for _, r := range records {
		observability.AttachmentsUploaded.WithLabelValues(r.MimeType).Inc()
		observability.AttachmentBytes.Observe(float64(r.Size))
	}
	return records, nil
}

// validate returns the lowercased extension and the effective mime type.
func (s *AttachmentService) validate(f UploadFile) (string, string, error) {
	if len(f.Content) == 0 {
		return "", "", models.NewValidationError("Empty file: " + f.OriginalName)
	}
	if int64(len(f.Content)) > s.maxUploadSizeBytes {
		return "", "", models.NewValidationError(fmt.Sprintf("File too large (max %dMB)", s.maxUploadSizeBytes/(1024*1024)))
	}

	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(f.OriginalName)), ".")
	accepted, ok := allowedUploads[ext]
	if !ok {
		return "", "", models.NewValidationError("File type not allowed: " + f.OriginalName)
	}

	sniffed := normalizeContentType(http.DetectContentType(f.Content))
	declared := normalizeContentType(f.ContentType)
	if declared == "" || declared == "application/octet-stream" {
		declared = sniffed
	}
	if !slices.Contains(accepted, declared) {
		return "", "", models.NewValidationError("File type not allowed: " + f.OriginalName)
	}
	// Images are decoded for previews, so the bytes must agree with the claim.
	if isRasterImage(declared) && sniffed != declared {
		return "", "", models.NewValidationError("File content does not match its type: " + f.OriginalName)
	}
	return ext, declared, nil
}

func (s *AttachmentService) writePreview(path string, content []byte) error {
	src, _, err := image.Decode(bytes.NewReader(content))
	if err != nil {
		return err
	}
	buf := bytes.NewBuffer(nil)
	if err := webp.Encode(buf, resizeToFit(src, PreviewMaxSize, PreviewMaxSize), &webp.Options{Quality: PreviewWebPQuality}); err != nil {
		return err
	}
	return writeBytesToFile(path, buf.Bytes())
}

func (s *AttachmentService) publicURL(month, filename string) string {
	return s.publicBaseURL + "/uploads/" + month + "/" + filename
}

func resizeToFit(src image.Image, maxWidth, maxHeight int) image.Image {
	bounds := src.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	if w <= 0 || h <= 0 || (w <= maxWidth && h <= maxHeight) {
		return src
	}

	scale := min(float64(maxWidth)/float64(w), float64(maxHeight)/float64(h))
	newW := max(int(float64(w)*scale), 1)
	newH := max(int(float64(h)*scale), 1)

	dst := image.NewRGBA(image.Rect(0, 0, newW, newH))
	xdraw.CatmullRom.Scale(dst, dst.Bounds(), src, bounds, xdraw.Over, nil)
	return dst
}

func isRasterImage(mimeType string) bool {
	switch mimeType {
	case "image/jpeg", "image/png", "image/gif":
		return true
	default:
		return false
	}
}

func normalizeContentType(contentType string) string {
	if contentType == "" {
		return ""
	}
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return strings.ToLower(strings.TrimSpace(contentType))
	}
	return strings.ToLower(strings.TrimSpace(mediaType))
}

func sanitizeFieldName(field string) string {
	field = strings.Map(func(r rune) rune {
		if r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r >= '0' && r <= '9' || r == '_' {
			return r
		}
		return -1
	}, field)
	if field == "" {
		return "files"
	}
	return field
}

func writeBytesToFile(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o600)
}

func cleanupFiles(paths []string) {
	for _, p := range paths {
		_ = os.Remove(p)
	}
}
