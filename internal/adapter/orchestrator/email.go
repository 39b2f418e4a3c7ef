package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"

	"grantmatch/internal/domain"
)

var validate = validator.New()

const emailSentMessage = "Email sent!"

// SendJustificationEmail mails a match justification to recipients. It never
// returns an error; failures are reported in the result.
func (c *Client) SendJustificationEmail(ctx context.Context, req domain.EmailRequest) domain.EmailResult {
	if err := validate.Struct(req); err != nil {
		return domain.EmailResult{Message: validationMessage(err)}
	}
	if !c.emailRate.Allow() {
		return domain.EmailResult{Message: "Too many emails sent. Please wait a moment and try again."}
	}

	var resp struct {
		Message string `json:"message"`
	}
	err := c.jsonCall(ctx, "orchestrator.send_email", http.MethodPost, c.cfg.EmailPath, req, &resp)
	if err != nil {
		c.logger.Warn("justification email failed",
			"recipients", len(req.RecipientEmails),
			"error", err,
		)
		res := domain.EmailResult{Message: domain.DetailOf(err)}
		var se *domain.StatusError
		if errors.As(err, &se) {
			res.Message = se.Body
			if res.Message == "" {
				res.Message = fmt.Sprintf("Server error: %d", se.Code)
			}
		}
		c.record(ctx, emailAudit(domain.AuditEmailRejected, domain.OutcomeFailure, req, res.Message))
		return res
	}

	c.logger.Debug("justification email sent", "recipients", len(req.RecipientEmails))
	if resp.Message == "" {
		resp.Message = emailSentMessage
	}
	c.record(ctx, emailAudit(domain.AuditEmailSent, domain.OutcomeSuccess, req, resp.Message))
	return domain.EmailResult{Success: true, Message: resp.Message}
}

func emailAudit(t domain.AuditEventType, outcome string, req domain.EmailRequest, msg string) domain.AuditEvent {
	return domain.AuditEvent{
		Type:     t,
		Resource: strings.Join(req.RecipientEmails, ","),
		Action:   "send_justification_email",
		Outcome:  outcome,
		Detail:   map[string]string{"title": req.Title, "message": msg},
	}
}

func validationMessage(err error) string {
	var ve validator.ValidationErrors
	if !errors.As(err, &ve) {
		return err.Error()
	}
	msgs := make([]string, 0, len(ve))
	for _, fe := range ve {
		switch fe.Tag() {
		case "required", "min":
			msgs = append(msgs, fmt.Sprintf("%s is required", fieldLabel(fe)))
		case "email":
			msgs = append(msgs, fmt.Sprintf("%v is not a valid email address", fe.Value()))
		default:
			msgs = append(msgs, fmt.Sprintf("%s is invalid", fieldLabel(fe)))
		}
	}
	return strings.Join(msgs, "; ")
}

func fieldLabel(fe validator.FieldError) string {
	switch fe.StructField() {
	case "RecipientEmails":
		return "at least one recipient"
	case "Title":
		return "title"
	case "Content":
		return "content"
	}
	if strings.HasPrefix(fe.StructField(), "RecipientEmails[") {
		return "recipient email"
	}
	return strings.ToLower(fe.StructField())
}
