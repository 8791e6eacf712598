package dribbble

import "strings"

// ParseLinkHeader parses an RFC 8288 style header of the form
// `<url>; rel="next", <url>; rel="last"` into a relation name to URL map.
// Entries without a URL or rel parameter are ignored. A rel listing several
// space-separated names maps each of them. The first occurrence of a name wins.
func ParseLinkHeader(header string) map[string]string {
	links := make(map[string]string)
	for _, entry := range splitLinkEntries(header) {
		entry = strings.TrimSpace(entry)
		if !strings.HasPrefix(entry, "<") {
			continue
		}
		end := strings.Index(entry, ">")
		if end < 0 {
			continue
		}
		target := strings.TrimSpace(entry[1:end])
		if target == "" {
			continue
		}
		for _, param := range strings.Split(entry[end+1:], ";") {
			key, value, ok := strings.Cut(strings.TrimSpace(param), "=")
			if !ok || !strings.EqualFold(strings.TrimSpace(key), "rel") {
				continue
			}
			value = strings.Trim(strings.TrimSpace(value), `"`)
			for _, rel := range strings.Fields(value) {
				rel = strings.ToLower(rel)
				if _, exists := links[rel]; !exists {
					links[rel] = target
				}
			}
		}
	}
	return links
}

// splitLinkEntries splits on commas that are outside angle brackets, since URLs may
// contain commas in their query strings.
func splitLinkEntries(header string) []string {
	var entries []string
	depth := 0
	start := 0
	for i := 0; i < len(header); i++ {
		switch header[i] {
		case '<':
			depth++
		case '>':
			if depth > 0 {
				depth--
			}
		case ',':
			if depth == 0 {
				entries = append(entries, header[start:i])
				start = i + 1
			}
		}
	}
	return append(entries, header[start:])
}
