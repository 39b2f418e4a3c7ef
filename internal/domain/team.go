package domain

import "strconv"

// Next-action hints the orchestrator attaches to results.
const (
	NextActionGroupPrefix   = "return_group"
	NextActionCollaborators = "return_collaborators"
	NextActionTeam          = "return_team"
)

// FacultySuggestion is a candidate collaborator or team member.
type FacultySuggestion struct {
	FacultyID          int      `json:"faculty_id"`
	Name               *string  `json:"name"`
	Email              *string  `json:"email"`
	Position           *string  `json:"position,omitempty"`
	Expertise          []string `json:"expertise,omitempty"`
	ResearchDomains    []string `json:"research_domains,omitempty"`
	ApplicationDomains []string `json:"application_domains,omitempty"`
	DomainScore        float64  `json:"domain_score"`
	LLMScore           *float64 `json:"llm_score,omitempty"`
	Reason             string   `json:"reason,omitempty"`
	Covered            []string `json:"covered,omitempty"`
	Missing            []string `json:"missing,omitempty"`
	IsExistingMember   bool     `json:"is_existing_member,omitempty"`
	TeamScore          *float64 `json:"team_score,omitempty"`
}

// EffectiveScore prefers the LLM score over the domain score.
func (s FacultySuggestion) EffectiveScore() float64 {
	if s.LLMScore != nil {
		return *s.LLMScore
	}
	return s.DomainScore
}

// DisplayName returns the name, falling back to the email, then the id.
func (s FacultySuggestion) DisplayName() string {
	if s.Name != nil && *s.Name != "" {
		return *s.Name
	}
	if s.Email != nil && *s.Email != "" {
		return *s.Email
	}
	return MemberPlaceholder(s.FacultyID)
}

// CollaboratorsResult answers a find-collaborators search.
type CollaboratorsResult struct {
	NextAction             string              `json:"next_action"`
	OpportunityID          string              `json:"opportunity_id"`
	OpportunityTitle       *string             `json:"opportunity_title"`
	AdditionalCount        int                 `json:"additional_count"`
	TeamScore              *float64            `json:"team_score,omitempty"`
	SuggestedCollaborators []FacultySuggestion `json:"suggested_collaborators"`
	ExistingTeamDetails    []FacultySuggestion `json:"existing_team_details,omitempty"`
	GroupJustification     *GroupJustification `json:"group_justification,omitempty"`
}

// FormTeamResult answers a form-team search.
type FormTeamResult struct {
	NextAction         string              `json:"next_action"`
	OpportunityID      string              `json:"opportunity_id"`
	OpportunityTitle   *string             `json:"opportunity_title"`
	TeamSize           int                 `json:"team_size"`
	TeamScore          *float64            `json:"team_score,omitempty"`
	SuggestedTeam      []FacultySuggestion `json:"suggested_team"`
	GroupJustification *GroupJustification `json:"group_justification,omitempty"`
}

// MemberPlaceholder is the label used for a faculty id that cannot be resolved.
func MemberPlaceholder(id int) string {
	return "Member #" + strconv.Itoa(id)
}
