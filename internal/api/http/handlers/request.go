package handlers

import (
	"io"
	"mime/multipart"
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/ticket-workflow/internal/auth"
	"github.com/spec-kit/ticket-workflow/internal/domain"
	"github.com/spec-kit/ticket-workflow/internal/service"
	apperrors "github.com/spec-kit/ticket-workflow/pkg/util/errorutil"
)

func actor(c *fiber.Ctx) (*domain.User, error) {
	user, ok := auth.ActorFromContext(c)
	if !ok {
		return nil, apperrors.NewUnauthorized("actor required")
	}
	return user, nil
}

func parseBody(c *fiber.Ctx, out any) error {
	if len(c.Body()) == 0 {
		return nil
	}
	if err := c.BodyParser(out); err != nil {
		return apperrors.NewValidationError("invalid payload", map[string]any{"reason": err.Error()})
	}
	return nil
}

func isMultipart(c *fiber.Ctx) bool {
	return strings.HasPrefix(string(c.Request().Header.ContentType()), fiber.MIMEMultipartForm)
}

// formUpload opens the named multipart file. It returns nil when the request
// carries no such file. The caller closes the returned closer.
func formUpload(c *fiber.Ctx, field string) (*service.Upload, io.Closer, error) {
	if !isMultipart(c) {
		return nil, nil, nil
	}
	form, err := c.MultipartForm()
	if err != nil {
		return nil, nil, apperrors.NewValidationError("invalid multipart form", map[string]any{"reason": err.Error()})
	}
	files := form.File[field]
	if len(files) == 0 {
		return nil, nil, nil
	}
	return openFileHeader(files[0])
}

func openFileHeader(fh *multipart.FileHeader) (*service.Upload, io.Closer, error) {
	f, err := fh.Open()
	if err != nil {
		return nil, nil, apperrors.NewValidationError("unreadable upload", map[string]any{"file_name": fh.Filename})
	}
	return &service.Upload{
		FileName: fh.Filename,
		MimeType: fh.Header.Get(fiber.HeaderContentType),
		Content:  f,
	}, f, nil
}

func closeQuietly(closer io.Closer) {
	if closer != nil {
		_ = closer.Close()
	}
}

func optionalString(val string) *string {
	val = strings.TrimSpace(val)
	if val == "" {
		return nil
	}
	return &val
}

func parseTime(val string) *time.Time {
	if val == "" {
		return nil
	}
	t, err := time.Parse(time.RFC3339, val)
	if err != nil {
		return nil
	}
	return &t
}

func parseInt(val string, def int) int {
	if val == "" {
		return def
	}
	parsed, err := strconv.Atoi(val)
	if err != nil || parsed <= 0 {
		return def
	}
	return parsed
}

func parseList(val string) []string {
	var out []string
	for _, part := range strings.Split(val, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
