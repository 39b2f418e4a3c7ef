// Package summary renders classified results as plain text for the
// justification email.
package summary

import (
	"fmt"
	"math"
	"strings"

	"grantmatch/internal/domain"
)

const (
	bullet       = "  • "
	nestedBullet = "    • "
	notAvailable = "N/A"
)

// Percent renders a [0,1] score as a whole percentage.
func Percent(score float64) string {
	return fmt.Sprintf("%d%%", int(math.Round(score*100)))
}

type lines []string

func (l *lines) add(format string, args ...any) {
	*l = append(*l, fmt.Sprintf(format, args...))
}

func (l *lines) blank() { *l = append(*l, "") }

// section writes a heading and one bullet per item. Empty lists write nothing.
func (l *lines) section(heading, prefix string, items []string) {
	if len(items) == 0 {
		return
	}
	l.blank()
	*l = append(*l, heading)
	for _, it := range items {
		*l = append(*l, prefix+it)
	}
}

func (l lines) String() string { return strings.Join(l, "\n") }

// FormatSingle summarizes a single-profile match.
func FormatSingle(g domain.Grant) string {
	var out lines
	if g.Title != "" {
		out.add("%s", g.Title)
	}
	out.add("Agency: %s", orNA(g.Agency))
	out.add("Score: %s match", Percent(g.DisplayScore()))
	if g.FitLabel != "" {
		out.add("Fit: %s", g.FitLabel)
	}

	if w := g.WhyMatch; w != nil {
		if w.Summary != "" {
			out.blank()
			out.add("%s", w.Summary)
		}
		out.section("Alignment Points:", bullet, w.AlignmentPoints)
		out.section("Risk Gaps:", bullet, w.RiskGaps)
	} else {
		out.section("Why It's a Good Match:", bullet, g.WhyGoodMatch)
	}

	if g.SuggestedPitch != "" {
		out.blank()
		out.add("Suggested Pitch: %s", g.SuggestedPitch)
	}
	return out.String()
}

// FormatGroup summarizes a team match. Member ids that are not on the team
// render as a placeholder.
func FormatGroup(r domain.GroupMatchResult) string {
	j := r.Justification
	name := func(id int) string {
		if m, ok := r.Member(id); ok && m.Name != "" {
			return m.Name
		}
		return domain.MemberPlaceholder(id)
	}

	var out lines
	if r.GrantTitle != "" {
		out.add("%s", r.GrantTitle)
	}
	out.add("Agency: %s", orNA(r.AgencyName))
	if r.TeamScore != nil {
		out.add("Team Fit: %s", Percent(*r.TeamScore))
	}
	names := make([]string, len(r.TeamMembers))
	for i, m := range r.TeamMembers {
		names[i] = name(m.FacultyID)
	}
	out.add("Team: %s", strings.Join(names, ", "))

	if j.OneParagraph != "" {
		out.blank()
		out.add("%s", j.OneParagraph)
	}

	if len(j.MemberRoles) > 0 {
		out.blank()
		out.add("Team Roles:")
		for _, mr := range j.MemberRoles {
			out.add("  %s: %s (%s)", name(mr.FacultyID), mr.Role, mr.Why)
		}
	}

	out.section("Strong Coverage:", bullet, j.Coverage.Strong)
	out.section("Partial Coverage:", bullet, j.Coverage.Partial)
	out.section("Missing Coverage:", bullet, j.Coverage.Missing)

	if len(j.MemberStrengths) > 0 {
		out.blank()
		out.add("Member Strengths:")
		for _, ms := range j.MemberStrengths {
			out.add("  %s:", name(ms.FacultyID))
			for _, b := range ms.Bullets {
				out.add("%s%s", nestedBullet, b)
			}
		}
	}

	out.section("Potential Challenges:", bullet, j.WhyNotWorking)

	if j.Recommendation != "" {
		out.blank()
		out.add("Recommendation: %s", j.Recommendation)
	}
	return out.String()
}

// FormatSuggestions summarizes a collaborator or team-formation answer.
func FormatSuggestions(title string, teamScore *float64, members []domain.FacultySuggestion, gj *domain.GroupJustification) string {
	var out lines
	out.add("Opportunity: %s", orNA(title))
	if teamScore != nil {
		out.add("Team Fit: %s", Percent(*teamScore))
	}

	for _, m := range members {
		out.blank()
		label := "Suggested"
		if m.IsExistingMember {
			label = "Existing member"
		}
		out.add("%s (%s, %s match)", m.DisplayName(), label, Percent(m.EffectiveScore()))
		if m.Email != nil && *m.Email != "" && m.Name != nil && *m.Name != "" {
			out.add("  Email: %s", *m.Email)
		}
		if m.Reason != "" {
			out.add("  %s", m.Reason)
		}
		if len(m.Covered) > 0 {
			out.add("  Covers: %s", strings.Join(m.Covered, ", "))
		}
		if len(m.Missing) > 0 {
			out.add("  Gaps: %s", strings.Join(m.Missing, ", "))
		}
	}

	if gj != nil {
		if gj.OneParagraph != "" {
			out.blank()
			out.add("%s", gj.OneParagraph)
		}
		out.section("Strong Coverage:", bullet, gj.Coverage.Strong)
		out.section("Partial Coverage:", bullet, gj.Coverage.Partial)
		out.section("Missing Coverage:", bullet, gj.Coverage.Missing)
		out.section("Potential Challenges:", bullet, gj.WhyNotWorking)
		if gj.Recommendation != "" {
			out.blank()
			out.add("Recommendation: %s", gj.Recommendation)
		}
	}
	return out.String()
}

// FormatCollaborators summarizes a find-collaborators answer, existing team
// first.
func FormatCollaborators(r domain.CollaboratorsResult) string {
	members := make([]domain.FacultySuggestion, 0, len(r.ExistingTeamDetails)+len(r.SuggestedCollaborators))
	for _, m := range r.ExistingTeamDetails {
		m.IsExistingMember = true
		members = append(members, m)
	}
	members = append(members, r.SuggestedCollaborators...)
	return FormatSuggestions(opportunityTitle(r.OpportunityTitle, r.OpportunityID), r.TeamScore, members, r.GroupJustification)
}

// FormatTeam summarizes a form-team answer.
func FormatTeam(r domain.FormTeamResult) string {
	return FormatSuggestions(opportunityTitle(r.OpportunityTitle, r.OpportunityID), r.TeamScore, r.SuggestedTeam, r.GroupJustification)
}

func opportunityTitle(title *string, id string) string {
	if title != nil && *title != "" {
		return *title
	}
	return id
}

func orNA(s string) string {
	if s == "" {
		return notAvailable
	}
	return s
}
