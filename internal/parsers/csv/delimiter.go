package csv

import (
	"slices"
	"strings"
	"unicode/utf8"
)

// candidates is the detection order; earlier wins ties
var candidates = []Delimiter{DelimiterComma, DelimiterSemicolon, DelimiterTab}

// DetectDelimiter picks the delimiter for a price replay. A header line is
// split on each candidate and the one naming the most known price columns
// wins. Headerless files fall back to the delimiter that splits every
// sampled line into the most fields.
func DetectDelimiter(content string) Delimiter {
	sample := sampleLines(content, 5)
	if len(sample) == 0 {
		return DelimiterComma
	}

	best, bestKnown := DelimiterComma, 0
	for _, d := range candidates {
		if n := knownColumns(SplitCSVLine(sample[0], rune(d[0]), '"')); n > bestKnown {
			best, bestKnown = d, n
		}
	}
	if bestKnown >= 2 {
		return best
	}

	best, bestFields := DelimiterComma, 1
	for _, d := range candidates {
		fields := -1
		for _, line := range sample {
			n := len(SplitCSVLine(line, rune(d[0]), '"'))
			if fields < 0 || n < fields {
				fields = n
			}
		}
		if fields > bestFields {
			best, bestFields = d, fields
		}
	}
	return best
}

func sampleLines(content string, n int) []string {
	out := make([]string, 0, n)
	for _, line := range strings.Split(content, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			out = append(out, line)
			if len(out) == n {
				break
			}
		}
	}
	return out
}

// knownColumns counts the header cells that name a price replay field
func knownColumns(header []string) int {
	n := 0
	for _, h := range header {
		h = strings.ToLower(strings.Trim(strings.TrimSpace(h), `"`))
		for _, aliases := range headerAliases {
			if slices.Contains(aliases, h) {
				n++
				break
			}
		}
	}
	return n
}

// SplitCSVLine splits a CSV line handling quoted fields
func SplitCSVLine(line string, delimiter rune, quoteChar rune) []string {
	fields := make([]string, 0, 10)
	var current strings.Builder
	inQuotes := false

	for i := 0; i < len(line); i++ {
		r, width := utf8.DecodeRuneInString(line[i:])
		i += width - 1

		if inQuotes {
			if r == quoteChar {
				// Check for escaped quote (double quote)
				if i+1 < len(line) {
					nextR, _ := utf8.DecodeRuneInString(line[i+1:])
					if nextR == quoteChar {
						current.WriteRune(quoteChar)
						i++
						continue
					}
				}
				// End of quoted field
				inQuotes = false
				continue
			}
			current.WriteRune(r)
			continue
		}

		if r == quoteChar {
			inQuotes = true
			continue
		}

		if r == delimiter {
			fields = append(fields, current.String())
			current.Reset()
			continue
		}

		current.WriteRune(r)
	}

	// Add last field
	fields = append(fields, current.String())

	return fields
}
