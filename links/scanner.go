// Package links scans documents for whole-line embed links.
package links

import "regexp"

// linePattern matches lines that consist entirely of an optional `!`
// followed by `[[target]]`. Inline occurrences never match. The optional
// trailing `\r` keeps CRLF documents working; it is excluded from the
// reported span.
var linePattern = regexp.MustCompile(`(?m)^(!?)\[\[([^\[\]\r\n]+)\]\]\r?$`)

// Match is one embed link found in a document. Start and End are byte
// offsets into the scanned string covering `!?[[target]]`, never the line
// terminator.
type Match struct {
	Target string
	Embed  bool
	Start  int
	End    int
	Raw    string
}

// Scan returns all whole-line embed links in content, in source order.
func Scan(content string) []Match {
	idxs := linePattern.FindAllStringSubmatchIndex(content, -1)
	if len(idxs) == 0 {
		return nil
	}
	matches := make([]Match, 0, len(idxs))
	for _, idx := range idxs {
		start := idx[0]
		end := idx[5] + len("]]")
		matches = append(matches, Match{
			Target: content[idx[4]:idx[5]],
			Embed:  idx[3] > idx[2],
			Start:  start,
			End:    end,
			Raw:    content[start:end],
		})
	}
	return matches
}
