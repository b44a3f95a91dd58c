package rows

import (
	"regexp"
	"strings"

	appLog "wstcal/internal/log"
	"wstcal/internal/meeting"
	"wstcal/internal/model"
)

var (
	// sectionProbeRe picks the cell holding the section link, e.g.
	// "CPSC_V 110-101 - Computation".
	sectionProbeRe = regexp.MustCompile(`^[A-Z][A-Z0-9_]*\s*\d{2,3}-`)
	sectionLinkRe  = regexp.MustCompile(`^\s*([A-Z][A-Z0-9_]*\s*\d{3}[A-Z]?)\s*-\s*(.+?)\s*$`)
	dashSplitRe    = regexp.MustCompile(`\s*[-–—]\s*`)
	titleColonRe   = regexp.MustCompile(`\s*:\s*`)
	wrapRe         = regexp.MustCompile(`\s*\n\s*`)

	labRe        = regexp.MustCompile(`(?i)\blaboratory\b`)
	seminarRe    = regexp.MustCompile(`(?i)\bseminar\b`)
	discussionRe = regexp.MustCompile(`(?i)\bdiscussion\b`)
	onlineRe     = regexp.MustCompile(`(?i)online learning`)
)

// SectionLink is the parsed "<code> - <section> - <title>" link text.
type SectionLink struct {
	Code          string
	SectionNumber string
	Title         string
}

// ParseSectionLink parses a section link. Wrapped lines are joined first;
// colons in the title start a new line.
func ParseSectionLink(input string) (SectionLink, bool) {
	s := strings.TrimSpace(strings.ReplaceAll(input, "\u00a0", " "))
	if s == "" {
		return SectionLink{}, false
	}
	s = strings.TrimSpace(wrapRe.ReplaceAllString(s, " "))

	m := sectionLinkRe.FindStringSubmatch(s)
	if m == nil {
		return SectionLink{}, false
	}

	var ps []string
	for _, p := range dashSplitRe.Split(strings.TrimSpace(m[2]), -1) {
		if p = strings.TrimSpace(p); p != "" {
			ps = append(ps, p)
		}
	}
	if len(ps) == 0 {
		return SectionLink{}, false
	}

	title := strings.TrimSpace(strings.Join(ps[1:], " - "))
	return SectionLink{
		Code:          strings.TrimSpace(m[1]),
		SectionNumber: ps[0],
		Title:         titleColonRe.ReplaceAllString(title, ":\n"),
	}, true
}

// MeetingLines splits a meeting-patterns cell and keeps only lines carrying a
// date range, a clock time and a weekday.
func MeetingLines(cell string) []string {
	var out []string
	for _, l := range strings.Split(cell, "\n") {
		l = strings.TrimSpace(l)
		if l != "" && meeting.IsMeetingLine(l) {
			out = append(out, l)
		}
	}
	return out
}

// Stats counts what Extract did with the table rows.
type Stats struct {
	Rows       int `json:"rows"`
	Extracted  int `json:"extracted"`
	Skipped    int `json:"skipped"`
	Duplicates int `json:"duplicates"`
}

// Extract turns table rows into course sessions. Rows without a section
// link, meeting lines or (for lectures) an instructor are skipped. Duplicate
// code/title/section triples keep the first row.
func Extract(t Table) ([]model.CourseSession, Stats) {
	hm := MapHeaders(t.Headers)
	st := Stats{Rows: len(t.Rows)}

	courses := make([]model.CourseSession, 0, len(t.Rows))
	for i, row := range t.Rows {
		c, reason := extractRow(row, hm)
		if reason != "" {
			st.Skipped++
			appLog.Debug("row skipped", "row", i, "reason", reason)
			continue
		}
		courses = append(courses, c)
	}

	unique := Dedupe(courses)
	st.Duplicates = len(courses) - len(unique)
	st.Extracted = len(unique)

	appLog.Info("rows extracted",
		"rows", st.Rows,
		"courses", st.Extracted,
		"skipped", st.Skipped,
		"duplicates", st.Duplicates,
	)
	return unique, st
}

func extractRow(row []string, hm HeaderMap) (model.CourseSession, string) {
	link, ok := ParseSectionLink(sectionCell(row, hm))
	if !ok {
		return model.CourseSession{}, "no section link"
	}

	format, _ := hm.Cell(row, ColInstructionalFormat)
	startText, _ := hm.Cell(row, ColStartDate)

	c := model.CourseSession{
		Code:                link.Code,
		Title:               link.Title,
		SectionNumber:       link.SectionNumber,
		InstructionalFormat: format,
		IsLab:               labRe.MatchString(format),
		IsSeminar:           seminarRe.MatchString(format),
		IsDiscussion:        discussionRe.MatchString(format),
	}

	c.Instructor = "N/A"
	if !c.IsLab && !c.IsSeminar {
		c.Instructor, _ = hm.Cell(row, ColInstructor)
		if c.Instructor == "" {
			return model.CourseSession{}, "missing instructor"
		}
	}

	cell, ok := hm.Cell(row, ColMeeting)
	if !ok {
		return model.CourseSession{}, "missing meeting cell"
	}
	c.MeetingLines = MeetingLines(cell)
	if len(c.MeetingLines) == 0 {
		return model.CourseSession{}, "no meeting lines"
	}

	delivery, _ := hm.Cell(row, ColDeliveryMode)
	c.Meeting = meetingSummary(c.MeetingLines[0], onlineRe.MatchString(delivery))

	c.StartDate = meeting.StartDate(c.MeetingLines[0])
	if c.StartDate == "" {
		c.StartDate = meeting.StartDate(startText)
	}
	return c, ""
}

// sectionCell finds the section link: the section column first, then any
// cell that looks like one.
func sectionCell(row []string, hm HeaderMap) string {
	if s, ok := hm.Cell(row, ColSection); ok && sectionProbeRe.MatchString(s) {
		return s
	}
	for _, cell := range row {
		s := strings.TrimSpace(strings.ReplaceAll(cell, "\u00a0", " "))
		if sectionProbeRe.MatchString(s) {
			return s
		}
	}
	return ""
}

// meetingSummary is "days | time" over the location, at most two lines.
func meetingSummary(line string, online bool) string {
	pf := meeting.FormatForPanel(line)
	if online {
		pf.Location = "Online"
	}
	var head []string
	for _, s := range []string{pf.Days, pf.Time} {
		if s != "" {
			head = append(head, s)
		}
	}
	return meeting.NormalizeText(strings.Join(head, " | ") + "\n" + pf.Location)
}

// Dedupe drops courses whose lower-cased code|title|section was already seen.
func Dedupe(courses []model.CourseSession) []model.CourseSession {
	seen := make(map[string]bool, len(courses))
	out := make([]model.CourseSession, 0, len(courses))
	for _, c := range courses {
		key := strings.ToLower(c.Code + "|" + c.Title + "|" + c.SectionNumber)
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, c)
	}
	return out
}
