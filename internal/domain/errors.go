package domain

import "errors"

var (
	ErrNotFound         = errors.New("not found")
	ErrPermissionDenied = errors.New("permission denied")
	ErrPlatform         = errors.New("platform error")
	ErrTemplateNotFound = errors.New("trigger template not found")
	ErrInvalidConfig    = errors.New("invalid configuration")
	ErrSecretNotFound   = errors.New("secret not found")
)

// ErrorKind maps an error onto the failure taxonomy used in logs and metrics.
func ErrorKind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrPermissionDenied):
		return "permission"
	default:
		return "platform"
	}
}
