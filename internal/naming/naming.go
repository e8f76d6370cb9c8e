package naming

import (
	"fmt"
	"regexp"
	"strings"
	"time"
)

// Archive name templates carry date placeholders that are expanded to the
// current date at backup time. The restore side never re-derives today's
// date; it searches stored names instead, so only the weekday placeholder
// (the one with a small closed value set) is expanded into candidates.
var (
	reYear    = regexp.MustCompile(`\{date:year\}`)
	reMonth   = regexp.MustCompile(`\{date:month\}`)
	reDay     = regexp.MustCompile(`\{date:day\}`)
	reWeekday = regexp.MustCompile(`\{date:weekday\}`)
)

// weekdays in fixed Monday-first order, matching the names Resolve produces.
var weekdays = []string{"Mon", "Tue", "Wed", "Thu", "Fri", "Sat", "Sun"}

// Resolve expands the date placeholders in template using the given time.
// Year/month/day are zero-padded to 4/2/2 digits, the weekday is the
// English short name. Unknown placeholders are left untouched.
func Resolve(template string, now time.Time) string {
	name := reYear.ReplaceAllString(template, fmt.Sprintf("%04d", now.Year()))
	name = reMonth.ReplaceAllString(name, fmt.Sprintf("%02d", int(now.Month())))
	name = reDay.ReplaceAllString(name, fmt.Sprintf("%02d", now.Day()))
	name = reWeekday.ReplaceAllString(name, now.Format("Mon"))
	return name
}

// Candidates returns the archive names a restore should look for. A
// template with a weekday placeholder yields the 7 weekday expansions in
// Monday-first order; any other template is returned verbatim as the
// single candidate.
func Candidates(template string) []string {
	if !reWeekday.MatchString(template) {
		return []string{template}
	}

	candidates := make([]string, 0, len(weekdays))
	for _, day := range weekdays {
		candidates = append(candidates, reWeekday.ReplaceAllString(template, day))
	}
	return candidates
}

// LiteralPrefix returns the literal text before the first placeholder.
// Remote destinations use it to narrow listings when searching for the
// latest archive.
func LiteralPrefix(template string) string {
	if idx := strings.Index(template, "{"); idx >= 0 {
		return template[:idx]
	}
	return template
}
