package orchestrator

import (
	"bytes"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/textproto"
	"strconv"
	"strings"

	"github.com/oklog/ulid/v2"

	"grantmatch/internal/domain"
)

// Endpoint names one of the orchestrator's streaming routes. The client maps
// it to a configured path.
type Endpoint string

const (
	EndpointChat          Endpoint = "chat"
	EndpointCollaborators Endpoint = "collaborators"
	EndpointFormTeam      Endpoint = "form_team"
)

// Multipart field names understood by the orchestrator.
const (
	fieldMessage         = "message"
	fieldThreadID        = "thread_id"
	fieldEmail           = "email"
	fieldProfileURL      = "osu_url"
	fieldCV              = "cv"
	fieldEmails          = "emails"
	fieldURLEmail        = "osu_url_email"
	fieldURLValue        = "osu_url_value"
	fieldCVEmail         = "cv_email"
	fieldCVFile          = "cv_file"
	fieldGrantLink       = "grant_link"
	fieldGrantTitle      = "grant_title"
	fieldAdditionalCount = "additional_count"
	fieldTeamSize        = "team_size"
)

// Payload is a fully built multipart request body.
type Payload struct {
	Endpoint    Endpoint
	ThreadID    string
	ContentType string
	Body        []byte
}

// BuildRequest encodes req as a multipart body. Field emission order is part
// of the wire format: the orchestrator pairs repeated fields by position.
// It performs no I/O.
func BuildRequest(req domain.SearchRequest) (*Payload, error) {
	threadID := req.ThreadID
	if threadID == "" {
		threadID = ulid.Make().String()
	}

	var buf bytes.Buffer
	fw := &formWriter{w: multipart.NewWriter(&buf)}
	fw.field(fieldMessage, req.Message)
	fw.field(fieldThreadID, threadID)

	var endpoint Endpoint
	switch req.Mode {
	case domain.ModeSingle:
		endpoint = EndpointChat
		fw.field(fieldEmail, req.Email)
		fw.field(fieldProfileURL, req.ProfileURL)
		if req.CV != nil {
			fw.file(fieldCV, req.CV)
		}
	case domain.ModeGroup:
		endpoint = EndpointChat
		fw.faculty(req.Faculty)
	case domain.ModeCollaborators:
		endpoint = EndpointCollaborators
		fw.faculty(req.Faculty)
		fw.grant(req)
		fw.field(fieldAdditionalCount, strconv.Itoa(req.AdditionalCount))
	case domain.ModeFormTeam:
		endpoint = EndpointFormTeam
		fw.faculty(req.Faculty)
		fw.grant(req)
		fw.field(fieldTeamSize, strconv.Itoa(req.TeamSize))
	default:
		return nil, domain.NewDomainError("BuildRequest", domain.ErrInvalidInput,
			fmt.Sprintf("unknown search mode %q", req.Mode))
	}

	if fw.err == nil {
		fw.err = fw.w.Close()
	}
	if fw.err != nil {
		return nil, fmt.Errorf("encode multipart body: %w", fw.err)
	}

	return &Payload{
		Endpoint:    endpoint,
		ThreadID:    threadID,
		ContentType: fw.w.FormDataContentType(),
		Body:        buf.Bytes(),
	}, nil
}

// formWriter keeps the first write error so the builder reads straight through.
type formWriter struct {
	w   *multipart.Writer
	err error
}

func (f *formWriter) field(name, value string) {
	if f.err != nil {
		return
	}
	f.err = f.w.WriteField(name, value)
}

func (f *formWriter) file(name string, a *domain.Attachment) {
	if f.err != nil {
		return
	}
	contentType := a.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	filename := a.Name
	if filename == "" {
		filename = "cv"
	}

	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="%s"; filename="%s"`,
		escapeQuotes(name), escapeQuotes(filename)))
	h.Set("Content-Type", contentType)

	part, err := f.w.CreatePart(h)
	if err != nil {
		f.err = err
		return
	}
	_, f.err = part.Write(a.Data)
}

// faculty writes the group fields: a JSON email list, one URL pair per
// member, then one CV pair per member that has a CV.
func (f *formWriter) faculty(members []domain.FacultyInput) {
	emails := make([]string, len(members))
	for i, m := range members {
		emails[i] = m.Email
	}
	encoded, err := json.Marshal(emails)
	if err != nil {
		f.err = err
		return
	}
	f.field(fieldEmails, string(encoded))

	for _, m := range members {
		f.field(fieldURLEmail, m.Email)
		f.field(fieldURLValue, m.ProfileURL)
	}
	for _, m := range members {
		if m.CV == nil {
			continue
		}
		f.field(fieldCVEmail, m.Email)
		f.file(fieldCVFile, m.CV)
	}
}

func (f *formWriter) grant(req domain.SearchRequest) {
	if req.GrantLink != "" {
		f.field(fieldGrantLink, req.GrantLink)
	}
	if req.GrantTitle != "" {
		f.field(fieldGrantTitle, req.GrantTitle)
	}
}

var quoteEscaper = strings.NewReplacer("\\", "\\\\", `"`, "\\\"")

func escapeQuotes(s string) string {
	return quoteEscaper.Replace(s)
}
