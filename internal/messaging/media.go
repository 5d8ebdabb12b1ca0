package messaging

import (
	"fmt"
	"net/url"
	"path"
	"strings"
)

var supportedMedia = map[string]bool{
	"jpg":  true,
	"jpeg": true,
	"png":  true,
	"mp3":  true,
	"ogg":  true,
	"amr":  true,
	"pdf":  true,
	"mp4":  true,
}

// ValidateMediaURL accepts an empty URL or an absolute http(s) URL whose path
// ends in a supported extension.
func ValidateMediaURL(raw string) error {
	if raw == "" {
		return nil
	}
	u, err := url.Parse(raw)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("%w: invalid media url %q", ErrInvalidArgument, raw)
	}
	ext := strings.TrimPrefix(strings.ToLower(path.Ext(u.Path)), ".")
	if !supportedMedia[ext] {
		return fmt.Errorf("%w: %q", ErrUnsupportedMedia, ext)
	}
	return nil
}
