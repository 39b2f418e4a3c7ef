package main

import (
	"fmt"
	"io"
	"strings"

	"grantmatch/internal/domain"
	"grantmatch/internal/usecase/summary"
)

// printer writes session events to a terminal. Events arrive on one
// session goroutine, so it needs no locking.
type printer struct {
	w     io.Writer
	steps int

	// results holds every formatted result, in arrival order.
	results []formatted
}

type formatted struct {
	title string
	body  string
}

func newPrinter(w io.Writer) *printer { return &printer{w: w} }

func (p *printer) handle(ev domain.StreamEvent) {
	switch ev.Type {
	case domain.EventStepUpdate:
		if ev.Step == nil || ev.Step.Message == "" {
			return
		}
		p.steps++
		fmt.Fprintf(p.w, "[%d] %s\n", p.steps, ev.Step.Message)
	case domain.EventRequestInfo:
		p.requestInfo(ev.Info)
	case domain.EventMessage:
		p.message(ev.Message)
	}
}

func (p *printer) requestInfo(info *domain.RequestInfo) {
	if info == nil {
		return
	}
	fmt.Fprintln(p.w, info.Message)
	if len(info.MissingFields) > 0 {
		fmt.Fprintf(p.w, "Missing profile URL for: %s\n", strings.Join(info.MissingFields, ", "))
	}
}

func (p *printer) message(m *domain.Message) {
	if m == nil {
		return
	}
	if m.IsError() {
		fmt.Fprintf(p.w, "Error: %s\n", m.Text)
		return
	}
	if m.Text != "" {
		fmt.Fprintln(p.w, m.Text)
	}

	var blocks []formatted
	for _, g := range m.Results {
		blocks = append(blocks, formatted{g.Title, summary.FormatSingle(g)})
	}
	for _, r := range m.GroupResults {
		blocks = append(blocks, formatted{r.GrantTitle, summary.FormatGroup(r)})
	}
	if r := m.CollaboratorsResult; r != nil {
		blocks = append(blocks, formatted{derefOr(r.OpportunityTitle, r.OpportunityID), summary.FormatCollaborators(*r)})
	}
	if r := m.FormTeamResult; r != nil {
		blocks = append(blocks, formatted{derefOr(r.OpportunityTitle, r.OpportunityID), summary.FormatTeam(*r)})
	}
	p.results = append(p.results, blocks...)

	if m.Group && len(m.GroupResults) == 0 {
		blocks = append(blocks, formatted{body: "No team matches found."})
	}
	for _, b := range blocks {
		fmt.Fprintf(p.w, "\n%s\n", b.body)
	}
}

func derefOr(s *string, fallback string) string {
	if s != nil && *s != "" {
		return *s
	}
	return fallback
}

func renderProfile(w io.Writer, f *domain.FacultyProfile) {
	fmt.Fprintf(w, "%s <%s>\n", f.Name, f.Email)
	if f.Position != "" {
		fmt.Fprintf(w, "Position: %s\n", f.Position)
	}
	if len(f.Organizations) > 0 {
		fmt.Fprintf(w, "Organizations: %s\n", strings.Join(f.Organizations, ", "))
	}
	if f.DataFrom.InfoSourceURL != "" {
		fmt.Fprintf(w, "Profile URL: %s\n", f.DataFrom.InfoSourceURL)
	}
	for _, af := range f.DataFrom.AttachedFiles {
		fmt.Fprintf(w, "File #%d: %s (%s)\n", af.ID, af.SourceURL, af.DetectedType)
	}
	if n := len(f.DataFrom.PublicationTitles); n > 0 {
		fmt.Fprintf(w, "Publications: %d\n", n)
	}
	renderKeywords(w, "Research", f.AllKeywords.Research)
	renderKeywords(w, "Application", f.AllKeywords.Application)
}

func renderKeywords(w io.Writer, label string, k domain.FacultyKeywords) {
	if len(k.Domain) == 0 && len(k.Specialization) == 0 {
		return
	}
	fmt.Fprintf(w, "%s keywords:\n", label)
	if len(k.Domain) > 0 {
		fmt.Fprintf(w, "  Domains: %s\n", strings.Join(k.Domain, ", "))
	}
	for _, s := range k.Specialization {
		fmt.Fprintf(w, "  • %s (%.2f)\n", s.Term, s.Weight)
	}
}
