package paths

import (
	"net/url"
	"path"
	"regexp"
	"strings"
)

var (
	// file-looking last segment: /app/index.html, /v2/main.js
	fileSegment = regexp.MustCompile(`\.\w+$`)
	// references that are returned untouched
	opaqueScheme = regexp.MustCompile(`^(?i)(data|blob|javascript|mailto|tel):`)
)

// EffectiveBase returns the directory URL an application's relative
// references are resolved against. An entry URL whose last segment looks like
// a file is resolved against its directory; anything else is treated as a
// directory. Query and fragment are dropped.
//
//	https://host/app/index.html -> https://host/app/
//	https://host/app            -> https://host/app/
func EffectiveBase(base string) (*url.URL, error) {
	u, err := url.Parse(base)
	if err != nil {
		return nil, err
	}
	u.RawQuery = ""
	u.Fragment = ""

	p := u.Path
	switch {
	case p == "":
		p = "/"
	case fileSegment.MatchString(p):
		p = path.Dir(p)
		if !strings.HasSuffix(p, "/") {
			p += "/"
		}
	case !strings.HasSuffix(p, "/"):
		p += "/"
	}
	u.Path = p
	u.RawPath = ""
	return u, nil
}

// ToAbsolute resolves a possibly relative reference against an application's
// base URL. Absolute references are returned unchanged, opaque ones (data:,
// blob:) too. Protocol-relative references take the base's scheme. When the
// base itself cannot be parsed the reference is returned as is.
func ToAbsolute(ref, base string) string {
	ref = strings.TrimSpace(ref)
	if ref == "" || opaqueScheme.MatchString(ref) {
		return ref
	}

	r, err := url.Parse(ref)
	if err != nil {
		return ref
	}
	if r.IsAbs() {
		return r.String()
	}

	b, err := EffectiveBase(base)
	if err != nil || !b.IsAbs() {
		return ref
	}
	return b.ResolveReference(r).String()
}

// IsFetchable reports whether u is an absolute http(s) URL
func IsFetchable(u string) bool {
	parsed, err := url.Parse(u)
	if err != nil {
		return false
	}
	return (parsed.Scheme == "http" || parsed.Scheme == "https") && parsed.Host != ""
}

// Origin returns scheme://host of u, or "" when u has none
func Origin(u string) string {
	parsed, err := url.Parse(u)
	if err != nil || parsed.Host == "" {
		return ""
	}
	return parsed.Scheme + "://" + parsed.Host
}
