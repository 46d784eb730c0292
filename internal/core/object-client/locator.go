package objectclient

import (
	"fmt"
	"net/url"
	"strings"
)

// ParseLocator splits a stored blob URL into bucket and key. It accepts
// s3://bucket/key and the virtual-hosted form
// https://bucket.s3.region.amazonaws.com/key.
func ParseLocator(locator string) (bucket, key string, err error) {
	u, err := url.Parse(locator)
	if err != nil {
		return "", "", fmt.Errorf("parse locator %q: %w", locator, err)
	}
	key = strings.TrimPrefix(u.Path, "/")

	switch u.Scheme {
	case "s3":
		bucket = u.Host
	case "https", "http":
		host := u.Hostname()
		i := strings.Index(host, ".s3.")
		if i <= 0 {
			return "", "", fmt.Errorf("locator %q is not a virtual-hosted S3 URL", locator)
		}
		bucket = host[:i]
	default:
		return "", "", fmt.Errorf("locator %q has unsupported scheme %q", locator, u.Scheme)
	}

	if bucket == "" || key == "" {
		return "", "", fmt.Errorf("locator %q is missing bucket or key", locator)
	}
	return bucket, key, nil
}
