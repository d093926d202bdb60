package server

import (
	"errors"
	"strings"
	"unicode"

	"inkwell/internal/models"
	"inkwell/internal/service"

	"github.com/gofiber/fiber/v2"
)

// errResponseWritten is a sentinel indicating the HTTP response was already
// committed by a helper. Handlers must return nil (not this error) to avoid
// Fiber's ErrorHandler overwriting the response.
var errResponseWritten = errors.New("response already written")

// parseID extracts a route parameter by name as a positive uint.
// On failure it writes a 400 JSON response and returns errResponseWritten.
// The message is derived from the parameter name ("id" -> "Invalid ID",
// "commentId" -> "Invalid comment ID").
func (s *Server) parseID(c *fiber.Ctx, param string) (uint, error) {
	id, err := c.ParamsInt(param)
	if err != nil || id <= 0 {
		_ = models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid "+humanizeParam(param)))
		return 0, errResponseWritten
	}
	return uint(id), nil
}

// humanizeParam converts a route param name into a human-readable label.
func humanizeParam(param string) string {
	if param == "id" {
		return "ID"
	}
	if strings.HasSuffix(param, "Id") {
		words := splitCamel(param[:len(param)-2])
		return strings.ToLower(strings.Join(words, " ")) + " ID"
	}
	return param
}

// splitCamel splits a camelCase string into words.
func splitCamel(s string) []string {
	var words []string
	start := 0
	for i, r := range s {
		if i > 0 && unicode.IsUpper(r) {
			words = append(words, s[start:i])
			start = i
		}
	}
	return append(words, s[start:])
}

// pageFromQuery reads ?page and ?limit; anything unusable falls back to the defaults.
func pageFromQuery(c *fiber.Ctx) service.Page {
	return service.ParsePage(c.Query("page"), c.Query("limit"))
}

// currentUserID returns the ID AuthRequired stored for this request.
func currentUserID(c *fiber.Ctx) (uint, bool) {
	id, ok := c.Locals("userID").(uint)
	return id, ok && id > 0
}

// bindJSON parses the request body into dst, writing a 400 on malformed input.
func bindJSON(c *fiber.Ctx, dst interface{}) error {
	if err := c.BodyParser(dst); err != nil {
		_ = models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid request body"))
		return errResponseWritten
	}
	return nil
}

func (s *Server) publicBaseURL() string {
	if s.config == nil {
		return ""
	}
	return s.config.PublicBaseURL
}

// The accessors below build services lazily so handler tests can construct a
// Server with only the repositories they stub.

func (s *Server) userSvc() *service.UserService {
	if s.userService == nil {
		s.userService = service.NewUserService(s.userRepo, s.publicBaseURL())
	}
	return s.userService
}

func (s *Server) articleSvc() *service.ArticleService {
	if s.articleService == nil {
		s.articleService = service.NewArticleService(s.articleRepo, s.userRepo, s.renderer)
	}
	return s.articleService
}

func (s *Server) commentSvc() *service.CommentService {
	if s.commentService == nil {
		var publisher service.CommentPublisher
		if s.notifier != nil {
			publisher = s.notifier
		}
		s.commentService = service.NewCommentService(s.commentRepo, s.articleRepo, s.userRepo, publisher)
	}
	return s.commentService
}

func (s *Server) attachmentSvc() *service.AttachmentService {
	if s.attachmentService == nil {
		s.attachmentService = service.NewAttachmentService(s.attachmentRepo, s.config)
	}
	return s.attachmentService
}
