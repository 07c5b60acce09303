package organizer

import (
	"fmt"
	"path"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

const defaultFolderName = "uncategorized"

// Namer turns cluster tags into filesystem-safe folder paths. It remembers
// every name handed out in the run so sibling clusters never share a folder.
// Naming is a pure function of the tags plus previously generated names, so
// a dry run and a real run agree.
type Namer struct {
	maxNameLen int
	maxDepth   int
	taken      map[string]struct{}
}

// NewNamer bounds each path component to maxNameLen runes and the folder
// hierarchy to maxDepth levels.
func NewNamer(maxNameLen, maxDepth int) *Namer {
	if maxNameLen < 1 {
		maxNameLen = 40
	}
	if maxDepth < 1 {
		maxDepth = 1
	}
	return &Namer{
		maxNameLen: maxNameLen,
		maxDepth:   maxDepth,
		taken:      make(map[string]struct{}),
	}
}

// Name produces the folder path for a cluster from its dominant tags, most
// significant first. Components beyond maxDepth are dropped; a component too
// similar to an earlier one is skipped to avoid paths like invoice/invoices.
func (n *Namer) Name(tags ...string) string {
	var components []string
	for _, tag := range tags {
		if len(components) == n.maxDepth {
			break
		}
		slug := Slugify(tag, n.maxNameLen)
		if slug == "" || similarToAny(slug, components) {
			continue
		}
		components = append(components, slug)
	}
	if len(components) == 0 {
		components = []string{defaultFolderName}
	}

	candidate := path.Join(components...)
	if _, exists := n.taken[candidate]; exists {
		for i := 1; ; i++ {
			numbered := fmt.Sprintf("%s_%d", candidate, i)
			if _, exists := n.taken[numbered]; !exists {
				candidate = numbered
				break
			}
		}
	}
	n.taken[candidate] = struct{}{}
	return candidate
}

func similarToAny(slug string, components []string) bool {
	for _, existing := range components {
		if existing == slug || strings.Contains(existing, slug) || strings.Contains(slug, existing) {
			return true
		}
	}
	return false
}

var stripMarks = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// Slugify folds a tag to a lowercase filesystem-safe name: diacritics
// stripped, runs of non-alphanumerics collapsed to single hyphens, truncated
// to maxLen runes.
func Slugify(s string, maxLen int) string {
	folded, _, err := transform.String(stripMarks, s)
	if err != nil {
		folded = s
	}

	var b strings.Builder
	lastHyphen := true
	for _, r := range strings.ToLower(folded) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
			lastHyphen = false
			continue
		}
		if !lastHyphen {
			b.WriteByte('-')
			lastHyphen = true
		}
	}
	slug := strings.Trim(b.String(), "-")

	if maxLen > 0 {
		runesOut := []rune(slug)
		if len(runesOut) > maxLen {
			slug = strings.Trim(string(runesOut[:maxLen]), "-")
		}
	}
	return slug
}
