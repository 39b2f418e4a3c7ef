package domain

// FitLabel is the orchestrator's coarse verdict on a single match.
type FitLabel string

const (
	FitMismatch  FitLabel = "mismatch"
	FitBad       FitLabel = "bad"
	FitGood      FitLabel = "good"
	FitGreat     FitLabel = "great"
	FitFantastic FitLabel = "fantastic"
)

// Grant is a funding opportunity matched against one faculty profile.
type Grant struct {
	OpportunityID    string    `json:"opportunity_id"`
	Title            string    `json:"title"`
	Agency           string    `json:"agency"`
	GrantExplanation string    `json:"grant_explanation,omitempty"`
	Score            float64   `json:"score"`
	LLMScore         *float64  `json:"llm_score,omitempty"`
	DomainScore      *float64  `json:"domain_score,omitempty"`
	MatchedTerms     []string  `json:"matched_terms,omitempty"`
	FitLabel         FitLabel  `json:"fit_label,omitempty"`
	WhyMatch         *WhyMatch `json:"why_match,omitempty"`
	SuggestedPitch   string    `json:"suggested_pitch,omitempty"`

	// WhyGoodMatch is the flat justification list sent by older backends.
	WhyGoodMatch []string `json:"why_good_match,omitempty"`
}

// WhyMatch is the structured justification for a single match.
type WhyMatch struct {
	Summary         string   `json:"summary"`
	AlignmentPoints []string `json:"alignment_points"`
	RiskGaps        []string `json:"risk_gaps"`
}

// BackfillScore makes Score authoritative: a non-zero Score is kept,
// otherwise LLMScore is used, otherwise Score stays 0.
func (g *Grant) BackfillScore() {
	if g.Score != 0 {
		return
	}
	if g.LLMScore != nil {
		g.Score = *g.LLMScore
	}
}

// DisplayScore is the score shown to users: the LLM score when the
// orchestrator produced one, otherwise the normalized score.
func (g Grant) DisplayScore() float64 {
	if g.LLMScore != nil {
		return *g.LLMScore
	}
	return g.Score
}

// TeamMember is one faculty member on a group match.
type TeamMember struct {
	FacultyID int    `json:"faculty_id"`
	Name      string `json:"faculty_name"`
	Email     string `json:"faculty_email"`
}

// MemberRole assigns a role on the proposal to a team member.
type MemberRole struct {
	FacultyID int    `json:"faculty_id"`
	Role      string `json:"role"`
	Why       string `json:"why"`
}

// MemberStrength lists what one member brings to the proposal.
type MemberStrength struct {
	FacultyID int      `json:"faculty_id"`
	Bullets   []string `json:"bullets"`
}

// Coverage groups grant topics by how well the team covers them.
type Coverage struct {
	Strong  []string `json:"strong"`
	Partial []string `json:"partial"`
	Missing []string `json:"missing"`
}

// GroupJustification explains a team-level match.
type GroupJustification struct {
	OneParagraph    string           `json:"one_paragraph"`
	MemberRoles     []MemberRole     `json:"member_roles"`
	Coverage        Coverage         `json:"coverage"`
	MemberStrengths []MemberStrength `json:"member_strengths"`
	WhyNotWorking   []string         `json:"why_not_working"`
	Recommendation  string           `json:"recommendation"`
}

// GroupMatchResult is a funding opportunity matched against a team.
type GroupMatchResult struct {
	GrantID       string             `json:"grant_id"`
	GrantTitle    string             `json:"grant_title"`
	AgencyName    string             `json:"agency_name,omitempty"`
	TeamScore     *float64           `json:"team_score,omitempty"`
	TeamMembers   []TeamMember       `json:"team_members"`
	Justification GroupJustification `json:"justification"`
}

// Member looks up a team member by faculty id.
func (r GroupMatchResult) Member(id int) (TeamMember, bool) {
	for _, m := range r.TeamMembers {
		if m.FacultyID == id {
			return m, true
		}
	}
	return TeamMember{}, false
}

// Emails returns the non-empty member emails in team order.
func (r GroupMatchResult) Emails() []string {
	out := make([]string, 0, len(r.TeamMembers))
	for _, m := range r.TeamMembers {
		if m.Email != "" {
			out = append(out, m.Email)
		}
	}
	return out
}
