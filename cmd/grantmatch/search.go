package main

import (
	"context"
	"fmt"
	"mime"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"grantmatch/internal/domain"
	"grantmatch/internal/usecase/stream"
)

// Slots used by the CLI. One search runs per slot.
const (
	slotFindGrant     = "find-grant"
	slotGroupGrant    = "find-grants-for-team"
	slotCollaborators = "find-collaborators"
	slotFormTeam      = "form-team"
)

type searchFlags struct {
	message  string
	threadID string
	members  []string
	sendTo   []string
}

func (f *searchFlags) register(cmd *cobra.Command, withMembers bool) {
	cmd.Flags().StringVarP(&f.message, "message", "m", "", "free-text request sent to the orchestrator")
	cmd.Flags().StringVar(&f.threadID, "thread", "", "conversation id to continue (new one when empty)")
	cmd.Flags().StringArrayVar(&f.sendTo, "send-to", nil, "email each result summary to this address; repeatable")
	if withMembers {
		cmd.Flags().StringArrayVar(&f.members, "member", nil,
			"team member as email,profile_url[,cv_path]; repeat for each member")
	}
}

func (f *searchFlags) faculty() ([]domain.FacultyInput, error) {
	out := make([]domain.FacultyInput, 0, len(f.members))
	for _, m := range f.members {
		in, err := parseMember(m)
		if err != nil {
			return nil, err
		}
		out = append(out, in)
	}
	return out, nil
}

// parseMember reads "email,profile_url[,cv_path]".
func parseMember(arg string) (domain.FacultyInput, error) {
	parts := strings.SplitN(arg, ",", 3)
	in := domain.FacultyInput{Email: strings.TrimSpace(parts[0])}
	if in.Email == "" {
		return in, fmt.Errorf("member %q: email is required", arg)
	}
	if len(parts) > 1 {
		in.ProfileURL = strings.TrimSpace(parts[1])
	}
	if len(parts) > 2 {
		if path := strings.TrimSpace(parts[2]); path != "" {
			cv, err := loadAttachment(path)
			if err != nil {
				return in, fmt.Errorf("member %q: %w", in.Email, err)
			}
			in.CV = cv
		}
	}
	return in, nil
}

func loadAttachment(path string) (*domain.Attachment, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read cv: %w", err)
	}
	return &domain.Attachment{
		Name:        filepath.Base(path),
		ContentType: mime.TypeByExtension(filepath.Ext(path)),
		Data:        data,
	}, nil
}

func newSearchCmd(a *app) *cobra.Command {
	var (
		f          searchFlags
		email      string
		profileURL string
		cvPath     string
	)
	cmd := &cobra.Command{
		Use:   "search",
		Short: "Find grants for one faculty profile",
		RunE: func(cmd *cobra.Command, _ []string) error {
			req := domain.SearchRequest{
				Mode:       domain.ModeSingle,
				Message:    f.message,
				ThreadID:   f.threadID,
				Email:      email,
				ProfileURL: profileURL,
			}
			if cvPath != "" {
				cv, err := loadAttachment(cvPath)
				if err != nil {
					return err
				}
				req.CV = cv
			}
			return a.runSearch(cmd.Context(), slotFindGrant, f.sendTo, req)
		},
	}
	f.register(cmd, false)
	cmd.Flags().StringVar(&email, "email", "", "faculty email")
	cmd.Flags().StringVar(&profileURL, "profile-url", "", "faculty profile URL")
	cmd.Flags().StringVar(&cvPath, "cv", "", "path to a CV to attach")
	_ = cmd.MarkFlagRequired("email")
	return cmd
}

func newGroupCmd(a *app) *cobra.Command {
	var f searchFlags
	cmd := &cobra.Command{
		Use:   "group",
		Short: "Find grants for a team of faculty",
		RunE: func(cmd *cobra.Command, _ []string) error {
			faculty, err := f.faculty()
			if err != nil {
				return err
			}
			if len(faculty) == 0 {
				return fmt.Errorf("at least one --member is required")
			}
			return a.runSearch(cmd.Context(), slotGroupGrant, f.sendTo, domain.SearchRequest{
				Mode:     domain.ModeGroup,
				Message:  f.message,
				ThreadID: f.threadID,
				Faculty:  faculty,
			})
		},
	}
	f.register(cmd, true)
	return cmd
}

type grantFlags struct {
	link  string
	title string
}

func (g *grantFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&g.link, "grant-link", "", "URL of the funding opportunity")
	cmd.Flags().StringVar(&g.title, "grant-title", "", "title of the funding opportunity")
	cmd.MarkFlagsOneRequired("grant-link", "grant-title")
}

func newCollaboratorsCmd(a *app) *cobra.Command {
	var (
		f     searchFlags
		g     grantFlags
		count int
	)
	cmd := &cobra.Command{
		Use:   "collaborators",
		Short: "Suggest collaborators to complete an existing team for a grant",
		RunE: func(cmd *cobra.Command, _ []string) error {
			faculty, err := f.faculty()
			if err != nil {
				return err
			}
			return a.runSearch(cmd.Context(), slotCollaborators, f.sendTo, domain.SearchRequest{
				Mode:            domain.ModeCollaborators,
				Message:         f.message,
				ThreadID:        f.threadID,
				Faculty:         faculty,
				GrantLink:       g.link,
				GrantTitle:      g.title,
				AdditionalCount: count,
			})
		},
	}
	f.register(cmd, true)
	g.register(cmd)
	cmd.Flags().IntVar(&count, "count", 2, "number of collaborators to suggest")
	return cmd
}

func newTeamCmd(a *app) *cobra.Command {
	var (
		f    searchFlags
		g    grantFlags
		size int
	)
	cmd := &cobra.Command{
		Use:   "team",
		Short: "Form a team from scratch for a grant",
		RunE: func(cmd *cobra.Command, _ []string) error {
			faculty, err := f.faculty()
			if err != nil {
				return err
			}
			return a.runSearch(cmd.Context(), slotFormTeam, f.sendTo, domain.SearchRequest{
				Mode:       domain.ModeFormTeam,
				Message:    f.message,
				ThreadID:   f.threadID,
				Faculty:    faculty,
				GrantLink:  g.link,
				GrantTitle: g.title,
				TeamSize:   size,
			})
		},
	}
	f.register(cmd, true)
	g.register(cmd)
	cmd.Flags().IntVar(&size, "size", 3, "team size")
	return cmd
}

// runSearch runs one session and blocks until it ends. Interrupting the
// process cancels the session without reporting an error. When sendTo is
// set, each result summary of a completed session is emailed.
func (a *app) runSearch(ctx context.Context, slot string, sendTo []string, req domain.SearchRequest) error {
	p := newPrinter(a.out)
	s := a.controller.Start(ctx, slot, req, p.handle)

	select {
	case <-s.Done():
	case <-ctx.Done():
		s.Cancel()
		<-s.Done()
	}

	if s.State() == stream.StateErrored {
		if domain.IsRetryableError(s.Err()) {
			return fmt.Errorf("search failed, try again shortly: %w", s.Err())
		}
		return fmt.Errorf("search failed: %w", s.Err())
	}
	if s.State() != stream.StateCompleted || len(sendTo) == 0 {
		return nil
	}
	return a.mailResults(ctx, sendTo, p.results)
}

func (a *app) mailResults(ctx context.Context, to []string, results []formatted) error {
	if len(results) == 0 {
		fmt.Fprintln(a.out, "No results to email.")
		return nil
	}
	for _, r := range results {
		title := r.title
		if title == "" {
			title = "Grant match"
		}
		res := a.client.SendJustificationEmail(ctx, domain.EmailRequest{
			RecipientEmails: to,
			Title:           title,
			Content:         r.body,
		})
		if !res.Success {
			return fmt.Errorf("email %q: %s", title, res.Message)
		}
		fmt.Fprintf(a.out, "%s: %s\n", title, res.Message)
	}
	return nil
}
