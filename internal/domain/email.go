package domain

// EmailRequest asks the orchestrator to mail a justification to recipients.
type EmailRequest struct {
	RecipientEmails []string `json:"recipient_emails" validate:"required,min=1,dive,required,email"`
	Title           string   `json:"title" validate:"required"`
	Content         string   `json:"content" validate:"required"`
}

// EmailResult reports the outcome of an email send.
type EmailResult struct {
	Success bool
	Message string
}
