package mimetree

import "strings"

// FindNode returns the first part whose MIME type is in types, searching
// parts in order and checking each part before descending into it.
func FindNode(parts []Part, types []string) Part {
	for _, p := range parts {
		if p == nil {
			continue
		}
		if matchType(p.MimeType(), types) {
			return p
		}
		if found := FindNode(Children(p), types); found != nil {
			return found
		}
	}
	return nil
}

func matchType(mimeType string, types []string) bool {
	for _, t := range types {
		if strings.EqualFold(mimeType, t) {
			return true
		}
	}
	return false
}
