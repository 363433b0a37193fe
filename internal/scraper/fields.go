package scraper

import (
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/pfrederiksen/uct-events/internal/dom"
	"github.com/pfrederiksen/uct-events/internal/event"
)

// Search windows, in nodes.
const (
	titleWindow   = 10
	siblingWindow = 6
	dateWindow    = 30
)

const fragmentSep = " | "

var (
	monthPattern = regexp.MustCompile(`(?i)\b(jan|feb|mar|apr|may|jun|jul|aug|sep|oct|nov|dec)\b`)
	yearPattern  = regexp.MustCompile(`\b(20[2-9]\d)\b`)
	dayPattern   = regexp.MustCompile(`\b(\d{1,2})(?:st|nd|rd|th)?\b`)
	clockPattern = regexp.MustCompile(`(?i)\b\d{1,2}(?::[0-5]\d)?\s*[ap]\.?m\b\.?`)

	// whole-text date tokens such as "Fri, Dec 6" or "Dec 6, 2025"
	dateTokenPattern = regexp.MustCompile(`(?i)^((mon|tue|wed|thu|fri|sat|sun)[a-z]*\.?,?\s*)?(jan|feb|mar|apr|may|jun|jul|aug|sep|oct|nov|dec)[a-z]*\.?\s*\d{1,2}(st|nd|rd|th)?,?(\s*\d{4})?$`)
	weekdayPattern   = regexp.MustCompile(`(?i)^(mon|tue|wed|thu|fri|sat|sun)[a-z]*\.?,?$`)
)

// Fields are the raw values found in one block.
type Fields struct {
	Title       string
	TicketURL   string
	Description string
	MonthToken  string
	Month       time.Month
	Day         int
	Year        int
	Clock       string
}

// Missing lists the required fields that were not found.
func (f Fields) Missing() []string {
	var missing []string
	if f.Title == "" {
		missing = append(missing, "title")
	}
	if f.Month == 0 {
		missing = append(missing, "month")
	}
	if f.Day == 0 {
		missing = append(missing, "day")
	}
	if f.Clock == "" {
		missing = append(missing, "time")
	}
	return missing
}

// DateParts converts the fields into resolver input.
func (f Fields) DateParts() event.DateParts {
	return event.DateParts{Month: f.Month, Day: f.Day, Year: f.Year, Clock: f.Clock}
}

// strategy yields a candidate value for one field of a block.
type strategy func(b Block) (string, bool)

// firstOf runs strategies in order and returns the first hit.
func firstOf(b Block, strategies []strategy) string {
	for _, s := range strategies {
		if v, ok := s(b); ok {
			return v
		}
	}
	return ""
}

// FieldExtractor pulls event fields out of a block.
type FieldExtractor struct {
	anchors        []string
	showLabel      string
	minTitleLength int
	baseURL        *url.URL
}

// NewFieldExtractor creates a FieldExtractor. The first anchor is the doors
// label; sourceURL resolves relative ticket links and may be empty.
func NewFieldExtractor(anchors []string, showLabel string, minTitleLength int, sourceURL string) *FieldExtractor {
	fx := &FieldExtractor{
		anchors:        anchors,
		showLabel:      showLabel,
		minTitleLength: minTitleLength,
	}
	if u, err := url.Parse(sourceURL); err == nil && u.IsAbs() {
		fx.baseURL = u
	}
	return fx
}

// Extract resolves every field it can. It never fails; callers check Missing.
func (fx *FieldExtractor) Extract(b Block) Fields {
	f := Fields{
		Title:       firstOf(b, fx.titleStrategies()),
		TicketURL:   firstOf(b, fx.ticketStrategies()),
		Clock:       firstOf(b, fx.clockStrategies()),
		Description: fx.description(b),
	}
	f.MonthToken, f.Month, f.Day, f.Year = fx.date(b)
	return f
}

func (fx *FieldExtractor) titleStrategies() []strategy {
	return []strategy{
		fx.titleBefore,
		fx.titleAfter,
		fx.titleFromHeading,
	}
}

func (fx *FieldExtractor) ticketStrategies() []strategy {
	return []strategy{
		func(b Block) (string, bool) { return fx.linkWithin(b.Root) },
		func(b Block) (string, bool) {
			if p := b.Root.Parent(); p != nil {
				return fx.linkWithin(p)
			}
			return "", false
		},
	}
}

// clockStrategies prefers the show time and falls back to the doors time.
// The show label is searched in the anchor, the block, and then the nodes
// before the anchor, since some listings print "Show" above "Doors" in a
// separate element.
func (fx *FieldExtractor) clockStrategies() []strategy {
	var doors string
	if len(fx.anchors) > 0 {
		doors = fx.anchors[0]
	}

	var strategies []strategy
	if show := fx.showLabel; show != "" {
		stops := fx.otherLabels(show)
		strategies = append(strategies,
			func(b Block) (string, bool) { return clockAfterLabel(b.Anchor.Text(), show, stops) },
			func(b Block) (string, bool) { return clockAfterLabel(b.Root.Text(), show, stops) },
			fx.showBefore,
		)
	}
	if doors != "" {
		stops := fx.otherLabels(doors)
		strategies = append(strategies,
			func(b Block) (string, bool) { return clockAfterLabel(b.Anchor.Text(), doors, stops) },
			func(b Block) (string, bool) { return clockAfterLabel(b.Root.Text(), doors, stops) },
		)
	}
	return strategies
}

// showBefore looks for the show label in the nodes preceding the anchor. The
// scan ends at the event's title or at another anchor, whichever comes first,
// so it never borrows a time from the previous listing.
func (fx *FieldExtractor) showBefore(b Block) (string, bool) {
	stops := fx.otherLabels(fx.showLabel)
	for _, n := range b.Anchor.PreviousNodes(titleWindow) {
		txt := n.Text()
		if containsAny(txt, fx.anchors) || fx.acceptTitle(txt) {
			return "", false
		}
		if strings.Contains(txt, fx.showLabel) {
			return clockAfterLabel(txt, fx.showLabel, stops)
		}
	}
	return "", false
}

// otherLabels returns every known label except label.
func (fx *FieldExtractor) otherLabels(label string) []string {
	var out []string
	for _, l := range append([]string{fx.showLabel}, fx.anchors...) {
		if l != "" && l != label {
			out = append(out, l)
		}
	}
	return out
}

// titleBefore scans the nodes preceding the anchor occurrence.
func (fx *FieldExtractor) titleBefore(b Block) (string, bool) {
	for _, n := range b.Anchor.PreviousNodes(titleWindow) {
		if txt := n.Text(); fx.acceptTitle(txt) {
			return txt, true
		}
	}
	return "", false
}

// titleAfter scans the block's following siblings, for layouts that print
// the times above the name.
func (fx *FieldExtractor) titleAfter(b Block) (string, bool) {
	for _, n := range b.Root.NextSiblings(siblingWindow) {
		if txt := n.Text(); fx.acceptTitle(txt) {
			return txt, true
		}
	}
	return "", false
}

func (fx *FieldExtractor) titleFromHeading(b Block) (string, bool) {
	scopes := []dom.Node{b.Root}
	if p := b.Root.Parent(); p != nil {
		scopes = append(scopes, p)
	}
	for _, scope := range scopes {
		for _, h := range scope.DescendantsOfTag("h1", "h2", "h3", "h4") {
			txt := h.Text()
			if utf8.RuneCountInString(txt) > 4 && !fx.hasLabel(txt) {
				return txt, true
			}
		}
	}
	return "", false
}

// acceptTitle is the shared rule for title candidates.
func (fx *FieldExtractor) acceptTitle(txt string) bool {
	if utf8.RuneCountInString(txt) <= fx.minTitleLength {
		return false
	}
	lines := strings.Split(txt, "\n")
	if len(lines) > 2 {
		return false
	}
	for _, line := range lines {
		if !printable(line) {
			return false
		}
	}
	if event.IsMonthToken(txt) || fx.hasLabel(txt) {
		return false
	}
	return !isDateOrTime(txt)
}

func (fx *FieldExtractor) hasLabel(txt string) bool {
	if fx.showLabel != "" && strings.Contains(txt, fx.showLabel) {
		return true
	}
	return containsAny(txt, fx.anchors)
}

func (fx *FieldExtractor) linkWithin(n dom.Node) (string, bool) {
	links := n.DescendantsOfTag("a")
	if n.Tag() == "a" {
		links = append([]dom.Node{n}, links...)
	}
	for _, a := range links {
		href, ok := a.Attr("href")
		href = strings.TrimSpace(href)
		if !ok || !usableLink(href) {
			continue
		}
		return fx.resolve(href), true
	}
	return "", false
}

func (fx *FieldExtractor) resolve(href string) string {
	if fx.baseURL == nil {
		return href
	}
	ref, err := url.Parse(href)
	if err != nil {
		return href
	}
	return fx.baseURL.ResolveReference(ref).String()
}

// description keeps the block's label lines, e.g. "Doors: 7:00 pm".
func (fx *FieldExtractor) description(b Block) string {
	var lines []string
	for _, line := range strings.Split(b.Root.Text(), "\n") {
		if fx.hasLabel(line) {
			lines = append(lines, line)
		}
	}
	return strings.Join(lines, "\n")
}

// date searches the texts preceding the anchor for month, day and year.
func (fx *FieldExtractor) date(b Block) (token string, month time.Month, day, year int) {
	var texts []string
	for _, n := range b.Anchor.PreviousNodes(dateWindow) {
		if txt := n.Text(); txt != "" {
			texts = append(texts, txt)
		}
	}
	return findDate(strings.Join(texts, fragmentSep))
}

// findDate picks the first month token, the nearest plausible year and the
// day number closest to the month token. Clock expressions and years are
// blanked first so "8:00 pm" or "2025" never read as a day.
func findDate(s string) (token string, month time.Month, day, year int) {
	loc := monthPattern.FindStringSubmatchIndex(s)
	if loc == nil {
		return "", 0, 0, 0
	}
	token = s[loc[2]:loc[3]]
	month, _ = event.ParseMonth(token)

	// a year only counts up to the end of the month's own fragment; beyond
	// that it belongs to an earlier listing
	scope := s
	if i := strings.Index(s[loc[1]:], fragmentSep); i >= 0 {
		scope = s[:loc[1]+i]
	}
	if m := yearPattern.FindStringSubmatch(scope); m != nil {
		year, _ = strconv.Atoi(m[1])
	}

	blanked := blank(s, clockPattern)
	blanked = blank(blanked, yearPattern)

	best := -1
	for _, m := range dayPattern.FindAllStringSubmatchIndex(blanked, -1) {
		n, _ := strconv.Atoi(blanked[m[2]:m[3]])
		if n < 1 || n > 31 {
			continue
		}
		d := distance(m[2], m[3], loc[0], loc[1])
		if best < 0 || d < best {
			best = d
			day = n
		}
	}

	return token, month, day, year
}

// clockAfterLabel finds the first 12-hour clock after label on the label's
// line, or on the next line when the label ends its line. The search stops
// at any of the stop labels, so "8 pmDoors: 7 pm" never yields the doors time
// for "Show:".
func clockAfterLabel(text, label string, stops []string) (string, bool) {
	lines := strings.Split(text, "\n")
	for i, line := range lines {
		idx := strings.Index(line, label)
		if idx < 0 {
			continue
		}
		rest := cutAtLabel(line[idx+len(label):], stops)
		if strings.TrimSpace(rest) == "" && i+1 < len(lines) {
			rest = cutAtLabel(lines[i+1], stops)
		}
		if m := clockPattern.FindString(rest); m != "" {
			return strings.TrimSpace(m), true
		}
	}
	return "", false
}

// cutAtLabel truncates s at the earliest occurrence of any label.
func cutAtLabel(s string, labels []string) string {
	end := len(s)
	for _, l := range labels {
		if i := strings.Index(s, l); i >= 0 && i < end {
			end = i
		}
	}
	return s[:end]
}

func isDateOrTime(txt string) bool {
	txt = strings.TrimSpace(txt)
	if dateTokenPattern.MatchString(txt) || weekdayPattern.MatchString(txt) {
		return true
	}
	if m := clockPattern.FindString(txt); m != "" && strings.TrimSpace(m) == txt {
		return true
	}
	return strings.IndexFunc(txt, func(r rune) bool { return !unicode.IsDigit(r) && !unicode.IsPunct(r) && !unicode.IsSpace(r) }) < 0
}

func printable(s string) bool {
	for _, r := range s {
		if !unicode.IsPrint(r) {
			return false
		}
	}
	return true
}

func usableLink(href string) bool {
	lower := strings.ToLower(href)
	return href != "" &&
		!strings.HasPrefix(lower, "#") &&
		!strings.HasPrefix(lower, "javascript:") &&
		!strings.HasPrefix(lower, "mailto:")
}

// blank replaces every match of re with spaces, keeping offsets intact.
func blank(s string, re *regexp.Regexp) string {
	return re.ReplaceAllStringFunc(s, func(m string) string {
		return strings.Repeat(" ", len(m))
	})
}

func distance(start, end, otherStart, otherEnd int) int {
	switch {
	case end <= otherStart:
		return otherStart - end
	case start >= otherEnd:
		return start - otherEnd
	default:
		return 0
	}
}
