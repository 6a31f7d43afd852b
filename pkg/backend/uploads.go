package backend

import (
	"bytes"
	"context"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"path/filepath"
	"strings"

	pkgerrors "github.com/angelmondragon/bazarche-storefront/pkg/errors"
	"github.com/gabriel-vasile/mimetype"
)

const (
	uploadsResource = "upload-image"
	uploadFieldName = "image"

	// MaxImageBytes caps product image uploads.
	MaxImageBytes = 5 << 20
)

var allowedImageTypes = map[string]string{
	"image/png":  ".png",
	"image/jpeg": ".jpg",
	"image/webp": ".webp",
	"image/gif":  ".gif",
}

// DetectImage sniffs data and returns its mime type when it is an accepted
// image format.
func DetectImage(data []byte) (string, error) {
	if len(data) == 0 {
		return "", pkgerrors.New(pkgerrors.CodeValidation, "image is empty")
	}
	if len(data) > MaxImageBytes {
		return "", pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("image exceeds %d bytes", MaxImageBytes))
	}
	detected := mimetype.Detect(data)
	for mt := detected; mt != nil; mt = mt.Parent() {
		if _, ok := allowedImageTypes[mt.String()]; ok {
			return mt.String(), nil
		}
	}
	return "", pkgerrors.New(pkgerrors.CodeValidation, "unsupported image type "+detected.String())
}

// UploadImage sends an image as multipart form data and returns its URL.
func (c *Client) UploadImage(ctx context.Context, filename string, data []byte) (string, error) {
	contentType, err := DetectImage(data)
	if err != nil {
		return "", err
	}

	name := filepath.Base(strings.TrimSpace(filename))
	if name == "" || name == "." || name == "/" {
		name = "upload"
	}
	if filepath.Ext(name) == "" {
		name += allowedImageTypes[contentType]
	}

	var buf bytes.Buffer
	form := multipart.NewWriter(&buf)
	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", fmt.Sprintf(`form-data; name=%q; filename=%q`, uploadFieldName, name))
	header.Set("Content-Type", contentType)
	part, err := form.CreatePart(header)
	if err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeInternal, err, "build upload form")
	}
	if _, err := part.Write(data); err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeInternal, err, "write upload form")
	}
	if err := form.Close(); err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeInternal, err, "close upload form")
	}

	var resp struct {
		URL      string `json:"url"`
		ImageURL string `json:"image_url"`
		Image    string `json:"image"`
	}
	if err := c.send(ctx, http.MethodPost, uploadsResource, uploadsResource+"/", nil, &buf, form.FormDataContentType(), &resp); err != nil {
		return "", err
	}
	location := firstNonEmpty(resp.URL, resp.ImageURL, resp.Image)
	if location == "" {
		return "", pkgerrors.New(pkgerrors.CodeDependency, "upload response missing url")
	}
	return location, nil
}
