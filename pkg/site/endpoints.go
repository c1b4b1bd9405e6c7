package site

import (
	"fmt"
	"net/url"
	"strings"
)

const (
	// SetupsSegment is the listing route for a single setup: /setups/{id}
	SetupsSegment = "/setups/"

	// DownloadSegment replaces SetupsSegment to reach the archive: /setups/download/{id}
	DownloadSegment = "/setups/download/"
)

// DownloadURL derives the archive endpoint for a setup page link.
func DownloadURL(link string) (string, error) {
	u, err := url.Parse(link)
	if err != nil {
		return "", fmt.Errorf("invalid setup link %q: %w", link, err)
	}
	if !u.IsAbs() {
		return "", fmt.Errorf("setup link %q is not absolute", link)
	}
	if strings.Contains(u.Path, DownloadSegment) {
		return u.String(), nil
	}

	i := strings.Index(u.Path, SetupsSegment)
	if i < 0 || len(u.Path) == i+len(SetupsSegment) {
		return "", fmt.Errorf("setup link %q has no %s{id} path", link, SetupsSegment)
	}
	u.Path = u.Path[:i] + DownloadSegment + u.Path[i+len(SetupsSegment):]
	u.RawPath = ""
	return u.String(), nil
}
