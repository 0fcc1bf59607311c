package mastodon

import (
	"net/url"
	"strings"
)

// pageLinks holds the cursors advertised by a Link response header.
type pageLinks struct {
	next string // max_id of the older page
	prev string // min_id (or since_id) of the newer page
}

// parseLinks reads RFC 8288 Link headers of the form
//
//	<https://host/api/v1/timelines/home?max_id=1>; rel="next", <...?min_id=9>; rel="prev"
//
// Malformed entries are ignored.
func parseLinks(headers []string) pageLinks {
	var links pageLinks
	for _, h := range headers {
		for _, part := range strings.Split(h, ",") {
			target, rel, ok := parseLink(part)
			if !ok {
				continue
			}
			u, err := url.Parse(target)
			if err != nil {
				continue
			}
			q := u.Query()
			switch rel {
			case "next":
				links.next = q.Get("max_id")
			case "prev":
				links.prev = q.Get("min_id")
				if links.prev == "" {
					links.prev = q.Get("since_id")
				}
			}
		}
	}
	return links
}

func parseLink(s string) (target, rel string, ok bool) {
	s = strings.TrimSpace(s)
	start := strings.IndexByte(s, '<')
	end := strings.IndexByte(s, '>')
	if start != 0 || end < 0 {
		return "", "", false
	}
	target = s[1:end]
	for _, param := range strings.Split(s[end+1:], ";") {
		k, v, found := strings.Cut(strings.TrimSpace(param), "=")
		if found && strings.EqualFold(k, "rel") {
			rel = strings.Trim(v, `"`)
		}
	}
	return target, rel, rel != ""
}
