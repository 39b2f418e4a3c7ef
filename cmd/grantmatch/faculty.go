package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"grantmatch/internal/domain"
)

func newFacultyCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "faculty",
		Short: "Inspect or edit stored faculty profiles",
	}
	cmd.AddCommand(
		newFacultyLookupCmd(a),
		newFacultySourceCmd(a),
		newFacultyKeywordsCmd(a),
	)
	return cmd
}

func newFacultyLookupCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "lookup EMAIL",
		Short: "Show the stored profile for a faculty email",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := a.client.LookupFaculty(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			renderProfile(a.out, f)
			return nil
		},
	}
}

func newFacultySourceCmd(a *app) *cobra.Command {
	var (
		name, position, profileURL string
		addFiles                   []string
		deleteFiles                []int
	)
	cmd := &cobra.Command{
		Use:   "source EMAIL",
		Short: "Update profile sources; keywords are regenerated by the server",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			patch := domain.FacultySourcePatch{Email: args[0]}
			flags := cmd.Flags()
			if flags.Changed("name") || flags.Changed("position") {
				patch.BasicInfo = &domain.BasicInfoPatch{}
				if flags.Changed("name") {
					patch.BasicInfo.FacultyName = &name
				}
				if flags.Changed("position") {
					patch.BasicInfo.Position = &position
				}
			}
			if flags.Changed("profile-url") || len(addFiles) > 0 || len(deleteFiles) > 0 {
				patch.DataFrom = &domain.DataFromPatch{}
				if flags.Changed("profile-url") {
					patch.DataFrom.InfoSourceURL = &profileURL
				}
				if len(addFiles) > 0 || len(deleteFiles) > 0 {
					files := &domain.AttachedFilesPatch{Delete: deleteFiles}
					for _, u := range addFiles {
						files.Add = append(files.Add, domain.FileURL{SourceURL: u})
					}
					patch.DataFrom.AttachedFiles = files
				}
			}
			if patch.BasicInfo == nil && patch.DataFrom == nil {
				return fmt.Errorf("nothing to update")
			}

			resp, err := a.client.PatchFacultySource(cmd.Context(), patch)
			if err != nil {
				return err
			}
			fmt.Fprintln(a.out, resp.KeywordUpdateMode.Describe())
			return nil
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "faculty display name")
	cmd.Flags().StringVar(&position, "position", "", "faculty position")
	cmd.Flags().StringVar(&profileURL, "profile-url", "", "profile page to harvest")
	cmd.Flags().StringArrayVar(&addFiles, "add-file", nil, "URL of a document to attach; repeatable")
	cmd.Flags().IntSliceVar(&deleteFiles, "delete-file", nil, "id of an attached document to remove")
	return cmd
}

func newFacultyKeywordsCmd(a *app) *cobra.Command {
	var file string
	cmd := &cobra.Command{
		Use:   "keywords EMAIL",
		Short: "Replace stored keywords with a JSON keyword set",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(file)
			if err != nil {
				return fmt.Errorf("read keywords: %w", err)
			}
			var set domain.KeywordSet
			if err := json.Unmarshal(data, &set); err != nil {
				return fmt.Errorf("parse keywords: %w", err)
			}
			resp, err := a.client.PatchFacultyKeywords(cmd.Context(), domain.FacultyKeywordsPatch{
				Email:         args[0],
				AllKeywords:   set,
				KeywordSource: "frontend_edit",
			})
			if err != nil {
				return err
			}
			fmt.Fprintln(a.out, resp.KeywordUpdateMode.Describe())
			return nil
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "", `JSON file shaped like {"research":{...},"application":{...}}`)
	_ = cmd.MarkFlagRequired("file")
	return cmd
}
