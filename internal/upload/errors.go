package upload

import "errors"

var (
	// ErrInvalidInput indicates an empty stream or missing filename.
	ErrInvalidInput = errors.New("upload: invalid input")
	// ErrFileTooLarge indicates the declared or actual size exceeds the cap.
	ErrFileTooLarge = errors.New("upload: file too large")
	// ErrExtensionNotAllowed indicates a blacklisted or non-whitelisted extension.
	ErrExtensionNotAllowed = errors.New("upload: extension not allowed")
	// ErrContentTypeNotAllowed indicates the sniffed type is outside the
	// allowed set, or the content is not recognizable at all.
	ErrContentTypeNotAllowed = errors.New("upload: content type not allowed")
	// ErrTypeMismatch indicates the sniffed type contradicts the
	// declared extension, e.g. an executable under an image name.
	ErrTypeMismatch = errors.New("upload: content does not match declared type")
)

// RejectionReason maps a validation error to a stable metric/audit label.
func RejectionReason(err error) string {
	switch {
	case errors.Is(err, ErrFileTooLarge):
		return "file_too_large"
	case errors.Is(err, ErrExtensionNotAllowed):
		return "extension_not_allowed"
	case errors.Is(err, ErrContentTypeNotAllowed):
		return "content_type_not_allowed"
	case errors.Is(err, ErrTypeMismatch):
		return "type_mismatch"
	case errors.Is(err, ErrInvalidInput):
		return "invalid_input"
	default:
		return "internal"
	}
}
