package domain

// KeywordSpecialization is a weighted specialization keyword.
type KeywordSpecialization struct {
	Term   string  `json:"t"`
	Weight float64 `json:"w"`
}

// FacultyKeywords groups broad domains and weighted specializations.
type FacultyKeywords struct {
	Domain         []string                `json:"domain"`
	Specialization []KeywordSpecialization `json:"specialization"`
}

// KeywordSet is the research/application keyword pair stored per faculty.
type KeywordSet struct {
	Research    FacultyKeywords `json:"research"`
	Application FacultyKeywords `json:"application"`
}

// FacultyAttachedFile is a source document attached to a profile.
type FacultyAttachedFile struct {
	ID               int    `json:"id"`
	AdditionalInfoID int    `json:"additional_info_id"`
	SourceURL        string `json:"source_url"`
	DetectedType     string `json:"detected_type"`
	ContentCharCount int    `json:"content_char_count"`
}

// FacultyPublication is a publication title harvested for a profile.
type FacultyPublication struct {
	ID    int    `json:"id"`
	Title string `json:"title"`
	Year  int    `json:"year"`
}

// FacultyBasicInfo is the editable identity section of a profile.
type FacultyBasicInfo struct {
	FacultyName   string   `json:"faculty_name"`
	Email         string   `json:"email"`
	Position      string   `json:"position"`
	Organizations []string `json:"organizations"`
}

// FacultyDataFrom lists where a profile's keywords were derived from.
type FacultyDataFrom struct {
	InfoSourceURL              string                `json:"info_source_url"`
	AttachedFiles              []FacultyAttachedFile `json:"attached_files"`
	PublicationTitles          []FacultyPublication  `json:"publication_titles"`
	PublicationFetchedUptoYear *int                  `json:"publication_fetched_upto_year,omitempty"`
}

// FacultyProfile is the stored profile of one faculty member.
type FacultyProfile struct {
	FacultyID     int              `json:"faculty_id"`
	Name          string           `json:"name"`
	Email         string           `json:"email"`
	Position      string           `json:"position"`
	Organizations []string         `json:"organizations"`
	AllKeywords   KeywordSet       `json:"all_keywords"`
	BasicInfo     FacultyBasicInfo `json:"basic_info"`
	DataFrom      FacultyDataFrom  `json:"data_from"`
}

// FacultySourcePatch updates source information; keywords are regenerated
// server-side.
type FacultySourcePatch struct {
	Email     string          `json:"email"`
	BasicInfo *BasicInfoPatch `json:"basic_info,omitempty"`
	DataFrom  *DataFromPatch  `json:"data_from,omitempty"`
}

// BasicInfoPatch holds optional basic-info changes.
type BasicInfoPatch struct {
	FacultyName   *string  `json:"faculty_name,omitempty"`
	Position      *string  `json:"position,omitempty"`
	Organizations []string `json:"organizations,omitempty"`
}

// YearRange is an inclusive range of publication years.
type YearRange struct {
	From int `json:"from"`
	To   int `json:"to"`
}

// PublicationsPatch changes the harvested publication set.
type PublicationsPatch struct {
	SetFetchYearRange *YearRange `json:"set_fetch_year_range,omitempty"`
	Delete            *int       `json:"delete,omitempty"`
}

// FileURL references an attached file by URL, optionally by id.
type FileURL struct {
	ID        int    `json:"id,omitempty"`
	SourceURL string `json:"source_url"`
}

// AttachedFilesPatch adds, updates, or deletes attached files.
type AttachedFilesPatch struct {
	Add    []FileURL `json:"add,omitempty"`
	Update []FileURL `json:"update,omitempty"`
	Delete []int     `json:"delete,omitempty"`
}

// DataFromPatch holds optional data-source changes.
type DataFromPatch struct {
	InfoSourceURL *string             `json:"info_source_url,omitempty"`
	Publications  *PublicationsPatch  `json:"publications,omitempty"`
	AttachedFiles *AttachedFilesPatch `json:"attached_files,omitempty"`
}

// FacultyKeywordsPatch overrides keywords directly. It cannot carry source
// changes.
type FacultyKeywordsPatch struct {
	Email         string     `json:"email"`
	AllKeywords   KeywordSet `json:"all_keywords"`
	KeywordSource string     `json:"keyword_source,omitempty"`
}

// KeywordUpdateMode reports how keywords changed after a PATCH.
type KeywordUpdateMode string

const (
	KeywordsRegenerated        KeywordUpdateMode = "regenerated_from_sources"
	KeywordsFrontendOverride   KeywordUpdateMode = "frontend_override"
	KeywordsRegenerationFailed KeywordUpdateMode = "regeneration_failed"
	KeywordsUnchanged          KeywordUpdateMode = "none"
)

// Describe returns the user-facing confirmation text for the mode.
func (m KeywordUpdateMode) Describe() string {
	switch m {
	case KeywordsRegenerated:
		return "Keywords regenerated from updated sources."
	case KeywordsFrontendOverride:
		return "Keywords updated (direct override)."
	case KeywordsRegenerationFailed:
		return "Source saved but keyword regeneration failed."
	default:
		return "Saved."
	}
}

// FacultyPatchResponse is returned by both PATCH shapes.
type FacultyPatchResponse struct {
	OK                 bool              `json:"ok"`
	Faculty            FacultyProfile    `json:"faculty"`
	UpdatedKeywords    *KeywordSet       `json:"updated_keywords,omitempty"`
	KeywordUpdateMode  KeywordUpdateMode `json:"keyword_update_mode"`
	SourceChangeDetail map[string]int    `json:"source_change_detail,omitempty"`
	Message            string            `json:"message,omitempty"`
}
