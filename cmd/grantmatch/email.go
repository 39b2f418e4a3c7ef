package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"grantmatch/internal/domain"
)

func newEmailCmd(a *app) *cobra.Command {
	var (
		to          []string
		title       string
		content     string
		contentFile string
	)
	cmd := &cobra.Command{
		Use:   "email",
		Short: "Send a match justification to one or more recipients",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if contentFile != "" {
				data, err := os.ReadFile(contentFile)
				if err != nil {
					return fmt.Errorf("read content: %w", err)
				}
				content = string(data)
			}
			res := a.client.SendJustificationEmail(cmd.Context(), domain.EmailRequest{
				RecipientEmails: to,
				Title:           title,
				Content:         content,
			})
			if !res.Success {
				return fmt.Errorf("%s", res.Message)
			}
			fmt.Fprintln(a.out, res.Message)
			return nil
		},
	}
	cmd.Flags().StringArrayVar(&to, "to", nil, "recipient email; repeat for each recipient")
	cmd.Flags().StringVar(&title, "title", "", "email subject")
	cmd.Flags().StringVar(&content, "content", "", "email body")
	cmd.Flags().StringVar(&contentFile, "content-file", "", "read the email body from a file")
	cmd.MarkFlagsMutuallyExclusive("content", "content-file")
	cmd.MarkFlagsOneRequired("content", "content-file")
	_ = cmd.MarkFlagRequired("title")
	return cmd
}
