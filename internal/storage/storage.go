package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"path"
	"regexp"
	"strings"
	"time"

	"meet-signal/internal/models"
)

var (
	ErrTooLarge       = errors.New("file exceeds upload limit")
	ErrInvalidMeeting = errors.New("invalid meeting id")
	ErrInvalidKey     = errors.New("invalid object key")
	ErrNotFound       = errors.New("object not found")
)

// Object locates a stored blob. Exactly one of Path and URL is set.
type Object struct {
	Path string
	URL  *url.URL
}

// BlobStore holds uploaded meeting attachments.
type BlobStore interface {
	Put(ctx context.Context, key, contentType string, r io.Reader, size int64) error
	Get(ctx context.Context, key string) (*Object, error)
}

const maxFileName = 128

var (
	unsafeNameChars = regexp.MustCompile(`[^A-Za-z0-9._-]+`)
	// keyName matches the "<unix-millis>-<sanitized name>" segment of a key.
	keyName = regexp.MustCompile(`^[0-9]{1,19}-[A-Za-z0-9_-][A-Za-z0-9._-]{0,127}$`)
)

func ValidMeetingID(id string) bool {
	return models.ValidMeetingID(id)
}

// SanitizeFileName reduces name to a safe base name.
func SanitizeFileName(name string) string {
	name = strings.ReplaceAll(name, "\\", "/")
	name = path.Base(name)
	name = unsafeNameChars.ReplaceAllString(name, "_")
	name = strings.TrimLeft(name, ".")
	if len(name) > maxFileName {
		ext := path.Ext(name)
		if len(ext) > 16 {
			ext = ""
		}
		name = name[:maxFileName-len(ext)] + ext
	}
	if name == "" || name == "_" {
		name = "file"
	}
	return name
}

// ObjectKey builds the storage key "<meeting>/<unix-millis>-<name>".
func ObjectKey(meetingID, fileName string, now time.Time) (string, error) {
	if !ValidMeetingID(meetingID) {
		return "", ErrInvalidMeeting
	}
	return fmt.Sprintf("%s/%d-%s", meetingID, now.UnixMilli(), SanitizeFileName(fileName)), nil
}

// CheckKey rejects keys that do not have the shape ObjectKey produces.
func CheckKey(key string) error {
	meetingID, name, ok := strings.Cut(key, "/")
	if !ok || !ValidMeetingID(meetingID) || !keyName.MatchString(name) {
		return ErrInvalidKey
	}
	return nil
}
