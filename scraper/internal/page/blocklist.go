package page

import "strings"

// Blocklist decides which subresource requests a driver aborts. Config
// names are plural (images, fonts, media, stylesheets); browsers report
// singular resource types.
type Blocklist map[string]bool

// NewBlocklist builds a Blocklist from config names.
func NewBlocklist(types []string) Blocklist {
	b := make(Blocklist, len(types))
	for _, t := range types {
		b[strings.ToLower(strings.TrimSpace(t))] = true
	}
	return b
}

// Blocks reports whether a request of resourceType should be aborted.
func (b Blocklist) Blocks(resourceType string) bool {
	lower := strings.ToLower(resourceType)
	switch lower {
	case "image":
		return b["images"]
	case "font":
		return b["fonts"]
	case "media":
		return b["media"]
	case "stylesheet":
		return b["stylesheets"]
	}
	return b[lower]
}
