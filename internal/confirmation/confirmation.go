// Package confirmation extracts confirmation numbers from page and email text.
package confirmation

import "regexp"

// Patterns are tried in order; the first match wins. Keywords match in any
// case, the captured code is letters, digits and dashes containing at
// least one digit.
var Patterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i:confirmation)\s*(?i:number|code|no\.?|#)?\s*(?i:is)?\s*[:#]?\s*([A-Za-z0-9-]*[0-9][A-Za-z0-9-]*)`),
	regexp.MustCompile(`(?i:application)\s*(?i:id|number|no\.?|#)\s*(?i:is)?\s*[:#]?\s*([A-Za-z0-9-]*[0-9][A-Za-z0-9-]*)`),
	regexp.MustCompile(`(?i:reference)\s*(?i:number|code|no\.?|#)?\s*(?i:is)?\s*[:#]?\s*([A-Za-z0-9-]*[0-9][A-Za-z0-9-]*)`),
	regexp.MustCompile(`(?i:tracking)\s*(?i:number|code|id|no\.?|#)?\s*(?i:is)?\s*[:#]?\s*([A-Za-z0-9-]*[0-9][A-Za-z0-9-]*)`),
}

// Extract returns the first confirmation code found in text, or "".
func Extract(text string) string {
	for _, re := range Patterns {
		if m := re.FindStringSubmatch(text); m != nil {
			return m[1]
		}
	}
	return ""
}
