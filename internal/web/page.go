package web

import (
	"bytes"
	"embed"
	"html/template"
	"net/http"

	"github.com/dustin/go-humanize"
	"github.com/gosimple/slug"

	appLog "wstcal/internal/log"
	"wstcal/internal/schedule"
)

//go:embed templates/*
var templates embed.FS

var pageTemplate = newTemplate("schedule.html")

func newTemplate(name string) *template.Template {
	funcMap := template.FuncMap{
		"Comma":   func(i int) string { return humanize.Comma(int64(i)) },
		"Slugify": slug.Make,
		// Row 1 is the day header; grid rows and columns are 1-based.
		"row": func(i int) int { return i + 2 },
		"col": func(i int) int { return i + 2 },
	}
	t := template.New(name).Funcs(funcMap)
	return template.Must(t.ParseFS(templates, "templates/"+name))
}

type pageBlock struct {
	ID       int
	Owner    string
	Title    string
	Time     string
	Class    string
	Column   int
	RowStart int
	RowSpan  int
}

type pageData struct {
	Name       string
	Semester   schedule.Semester
	Timezone   string
	Warning    string
	Days       []string
	Rows       []string
	Blocks     []pageBlock
	BlockCount int
}

func (s *Server) pageData(st schedule.State) pageData {
	m := st.Render(s.engine)
	g := s.engine.Grid()

	data := pageData{
		Name:       st.ScheduleName(),
		Semester:   m.Semester,
		Timezone:   s.exporter.TZID(),
		Warning:    m.Warning(),
		Rows:       make([]string, g.Len()),
		BlockCount: m.BlockCount(),
	}
	for i := range data.Rows {
		data.Rows[i] = g.Label(i)
	}

	for colIdx, col := range m.Days {
		data.Days = append(data.Days, col.Day.Abbrev())

		conflicted := make(map[int]bool)
		for _, grp := range col.Groups {
			if !grp.IsConflict {
				continue
			}
			for _, id := range grp.Members {
				conflicted[id] = true
			}
		}

		for _, b := range col.Blocks {
			class := ""
			switch {
			case conflicted[b.ID]:
				class = "conflict"
			case b.Label != "":
				class = "lab"
			}
			data.Blocks = append(data.Blocks, pageBlock{
				ID:       b.ID,
				Owner:    b.OwnerID,
				Title:    b.DisplayTitle(),
				Time:     b.TimeLabel,
				Class:    class,
				Column:   colIdx,
				RowStart: b.RowStart,
				RowSpan:  b.RowSpan,
			})
		}
	}
	return data
}

// handleSchedulePage renders the week grid as HTML. The capture pipeline
// waits for data-ready="true" on #schedule.
//
// GET /schedule?semester=&q=
func (s *Server) handleSchedulePage(w http.ResponseWriter, r *http.Request) {
	st, err := s.viewFor(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	var buf bytes.Buffer
	if err := pageTemplate.Execute(&buf, s.pageData(st)); err != nil {
		appLog.Error("schedule page render failed", err)
		http.Error(w, "render failed", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = buf.WriteTo(w)
}
