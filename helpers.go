package pubfront

import (
	"net/url"
	"path"
	"strconv"
	"strings"
)

// BuildURL joins a base URL with path segments, ensuring a trailing slash.
func BuildURL(base string, pathSegments ...string) string {
	u, err := url.Parse(base)
	if err != nil {
		return base
	}
	u.Path = path.Join(u.Path, path.Join(pathSegments...))
	if !strings.HasSuffix(u.Path, "/") {
		u.Path += "/"
	}
	return u.String()
}

// staticMoreURL is the pre-rendered fragment holding listing page n.
func staticMoreURL(n int) string {
	return "/posts/page/" + strconv.Itoa(n) + ".html"
}
