package orchestrator

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"grantmatch/internal/domain"
)

// LookupFaculty fetches a stored profile by email.
func (c *Client) LookupFaculty(ctx context.Context, email string) (*domain.FacultyProfile, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return nil, domain.NewDomainError("Faculty.Lookup", domain.ErrInvalidInput, "Please enter an email address.")
	}

	var profile domain.FacultyProfile
	body := map[string]string{"email": email}
	if err := c.jsonCall(ctx, "orchestrator.faculty_lookup", http.MethodPost, c.cfg.FacultyLookupPath, body, &profile); err != nil {
		return nil, facultyError("Faculty.Lookup", err)
	}
	return &profile, nil
}

// PatchFacultySource updates basic info or data sources. The server
// regenerates keywords from the new sources.
func (c *Client) PatchFacultySource(ctx context.Context, patch domain.FacultySourcePatch) (*domain.FacultyPatchResponse, error) {
	if patch.Email == "" {
		return nil, domain.NewDomainError("Faculty.PatchSource", domain.ErrInvalidInput, "email is required")
	}
	return c.patchFaculty(ctx, "Faculty.PatchSource", patch.Email, patch)
}

// PatchFacultyKeywords overrides keywords directly without touching sources.
func (c *Client) PatchFacultyKeywords(ctx context.Context, patch domain.FacultyKeywordsPatch) (*domain.FacultyPatchResponse, error) {
	if patch.Email == "" {
		return nil, domain.NewDomainError("Faculty.PatchKeywords", domain.ErrInvalidInput, "email is required")
	}
	return c.patchFaculty(ctx, "Faculty.PatchKeywords", patch.Email, patch)
}

func (c *Client) patchFaculty(ctx context.Context, op, email string, patch any) (*domain.FacultyPatchResponse, error) {
	var resp domain.FacultyPatchResponse
	if err := c.jsonCall(ctx, "orchestrator.faculty_patch", http.MethodPatch, c.cfg.FacultyPatchPath, patch, &resp); err != nil {
		err = facultyError(op, err)
		c.record(ctx, facultyAudit(op, email, domain.OutcomeFailure, map[string]string{"error": domain.DetailOf(err)}))
		return nil, err
	}
	if !resp.OK {
		detail := resp.Message
		if detail == "" {
			detail = "update rejected"
		}
		c.record(ctx, facultyAudit(op, email, domain.OutcomeFailure, map[string]string{"error": detail}))
		return &resp, domain.NewDomainError(op, domain.ErrFacultyPatch, detail)
	}
	c.logger.Debug("faculty updated", "op", op, "keyword_update_mode", resp.KeywordUpdateMode)
	c.record(ctx, facultyAudit(op, email, domain.OutcomeSuccess,
		map[string]string{"keyword_update_mode": string(resp.KeywordUpdateMode)}))
	return &resp, nil
}

func facultyAudit(op, email, outcome string, detail map[string]string) domain.AuditEvent {
	t := domain.AuditFacultyPatched
	if outcome == domain.OutcomeFailure {
		t = domain.AuditFacultyFailed
	}
	return domain.AuditEvent{Type: t, Resource: email, Action: op, Outcome: outcome, Detail: detail}
}

// facultyError surfaces the server's message as the error detail.
func facultyError(op string, err error) error {
	var se *domain.StatusError
	if errors.As(err, &se) {
		return domain.NewDomainError(op, se, errorDetail(se))
	}
	return domain.NewDomainError(op, err, "")
}
