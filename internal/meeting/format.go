package meeting

import (
	"regexp"
	"strings"
)

var (
	clockRe       = regexp.MustCompile(`(?i)\b\d{1,2}:\d{2}\s*[ap]\.?(?:m\.?)?`)
	weekdayCIRe   = regexp.MustCompile(`(?i)\b(Mon|Tue|Wed|Thu|Fri|Sat|Sun)\b`)
	clockDigitsRe = regexp.MustCompile(`\d{1,2}:\d{2}`)
	buildingRe    = regexp.MustCompile(`\([A-Z]{2,}\)`)
	onlineRe      = regexp.MustCompile(`(?i)online`)
	floorRe       = regexp.MustCompile(`(?i)\bfloor\b\s*[:\-]?\s*(-?[A-Za-z0-9]+)`)
	roomRe        = regexp.MustCompile(`(?i)\b(room|rm)\b\s*[:\-]?\s*([A-Za-z0-9]+)`)
	blankRunRe    = regexp.MustCompile(`[ \t]+`)
)

// PanelFormat is the compact display form of a meeting line.
type PanelFormat struct {
	Days     string `json:"days"`
	Time     string `json:"time"`
	Location string `json:"location"`
}

// parts splits a line on "|" and drops empty fragments.
func parts(line string) []string {
	raw := strings.Split(line, "|")
	out := make([]string, 0, len(raw))
	for _, p := range raw {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

func firstPart(ps []string, match func(string) bool) string {
	for _, p := range ps {
		if match(p) {
			return p
		}
	}
	return ""
}

// FormatForPanel splits a meeting line into days, time and location text.
func FormatForPanel(line string) PanelFormat {
	ps := parts(line)

	dayPart := firstPart(ps, weekdayRe.MatchString)
	timePart := firstPart(ps, func(p string) bool {
		return clockDigitsRe.MatchString(p) && strings.Contains(p, "-")
	})
	building := firstPart(ps, buildingRe.MatchString)

	var fr []string
	if m := floorRe.FindStringSubmatch(line); m != nil {
		fr = append(fr, "Floor: "+m[1])
	}
	if m := roomRe.FindStringSubmatch(line); m != nil {
		fr = append(fr, "Room: "+m[2])
	}

	var loc []string
	if building != "" {
		loc = append(loc, building)
	}
	if len(fr) > 0 {
		loc = append(loc, strings.Join(fr, " | "))
	}

	return PanelFormat{
		Days:     strings.Join(strings.Fields(dayPart), " / "),
		Time:     timePart,
		Location: strings.Join(loc, "\n"),
	}
}

// Location returns the building fragment of a line, else a fragment that
// mentions online delivery, else "".
func Location(line string) string {
	ps := parts(line)
	if p := firstPart(ps, buildingRe.MatchString); p != "" {
		return p
	}
	return firstPart(ps, onlineRe.MatchString)
}

// NormalizeText splits text at its first newline, collapses runs of spaces
// and tabs in both halves and drops a half that ends up empty.
func NormalizeText(text string) string {
	first, rest, _ := strings.Cut(strings.ReplaceAll(text, "\r\n", "\n"), "\n")
	out := make([]string, 0, 2)
	for _, l := range []string{first, rest} {
		l = strings.TrimSpace(blankRunRe.ReplaceAllString(l, " "))
		if l != "" {
			out = append(out, l)
		}
	}
	return strings.Join(out, "\n")
}
