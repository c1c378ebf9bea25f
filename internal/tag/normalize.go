package tag

import (
	"net/url"
	"strings"
	"unicode"
)

var knownKinds = map[string]bool{
	"album":    true,
	"artist":   true,
	"episode":  true,
	"playlist": true,
	"show":     true,
	"track":    true,
	"user":     true,
}

// Normalize maps a tag payload to a spotify: URI. It accepts URIs as-is,
// open.spotify.com links, and bare "kind/id" paths.
func Normalize(payload string) (string, error) {
	s := strings.TrimFunc(payload, func(r rune) bool {
		return unicode.IsSpace(r) || unicode.IsControl(r)
	})
	s = strings.Map(func(r rune) rune {
		if unicode.IsControl(r) {
			return -1
		}
		return r
	}, s)
	if s == "" {
		return "", ErrNoURI
	}

	if strings.HasPrefix(s, "spotify:") {
		parts := strings.Split(s, ":")
		if len(parts) < 3 || parts[1] == "" || parts[len(parts)-1] == "" {
			return "", ErrNoURI
		}
		return s, nil
	}

	if i := strings.Index(s, "open.spotify.com/"); i >= 0 {
		return fromLink(s[i:])
	}

	return fromPath(s)
}

func fromLink(link string) (string, error) {
	u, err := url.Parse("https://" + link)
	if err != nil {
		return "", ErrNoURI
	}
	var segs []string
	for _, seg := range strings.Split(u.Path, "/") {
		if seg == "" || strings.HasPrefix(seg, "intl-") {
			continue
		}
		segs = append(segs, seg)
	}
	return join(segs)
}

func fromPath(p string) (string, error) {
	return join(strings.Split(strings.Trim(p, "/"), "/"))
}

func join(segs []string) (string, error) {
	if len(segs) < 2 || len(segs)%2 != 0 {
		return "", ErrNoURI
	}
	for i, seg := range segs {
		if seg == "" || strings.ContainsAny(seg, " :?#") {
			return "", ErrNoURI
		}
		if i%2 == 0 && !knownKinds[seg] {
			return "", ErrNoURI
		}
	}
	return "spotify:" + strings.Join(segs, ":"), nil
}
