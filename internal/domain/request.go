package domain

// SearchMode selects which orchestrator workflow a search runs.
type SearchMode string

const (
	ModeSingle        SearchMode = "single"
	ModeGroup         SearchMode = "group"
	ModeCollaborators SearchMode = "collaborators"
	ModeFormTeam      SearchMode = "form_team"
)

// Attachment is a file uploaded alongside a search, typically a CV.
type Attachment struct {
	Name        string
	ContentType string
	Data        []byte
}

// FacultyInput identifies one faculty member on a group search.
type FacultyInput struct {
	Email      string
	ProfileURL string
	CV         *Attachment // optional
}

// SearchRequest carries the parameters of one streaming search. Which fields
// are read depends on Mode; inputs are assumed to be validated by the caller.
type SearchRequest struct {
	Mode     SearchMode
	Message  string
	ThreadID string // generated when empty

	// ModeSingle.
	Email      string
	ProfileURL string
	CV         *Attachment

	// ModeGroup, ModeCollaborators, ModeFormTeam.
	Faculty []FacultyInput

	// ModeCollaborators and ModeFormTeam. At least one of GrantLink or
	// GrantTitle is expected.
	GrantLink       string
	GrantTitle      string
	AdditionalCount int // ModeCollaborators
	TeamSize        int // ModeFormTeam
}

// Emails returns the faculty emails in input order.
func (r SearchRequest) Emails() []string {
	out := make([]string, len(r.Faculty))
	for i, f := range r.Faculty {
		out[i] = f.Email
	}
	return out
}
