package main

import (
	"encoding/json"
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/yungbote/hci-study-backend/internal/modules/comic/bundle"
	"github.com/yungbote/hci-study-backend/internal/modules/comic/compile"
	"github.com/yungbote/hci-study-backend/internal/modules/comic/contexts"
	"github.com/yungbote/hci-study-backend/internal/modules/comic/templates"
	"github.com/yungbote/hci-study-backend/internal/modules/comic/validate"
)

func newValidateCmd(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "validate <bundle>...",
		Short: "Check the activity section of bundle files",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			failed := 0
			for _, path := range args {
				b, err := bundle.Read(path)
				if err != nil {
					return err
				}
				ok, reason := validate.Validate(b.Activity)
				status := "ok"
				if !ok {
					status = "FAIL"
					failed++
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\t%s\n", status, filepath.Base(path), reason)
			}
			if failed > 0 {
				return fmt.Errorf("%d of %d bundles failed validation", failed, len(args))
			}
			return nil
		},
	}
}

func newCompileCmd(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "compile <bundle>",
		Short: "Print the image prompt compiled from a bundle file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			b, err := bundle.Read(args[0])
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), compile.Compile(b))
			return nil
		},
	}
}

func newRepairCmd(e *env) *cobra.Command {
	var (
		templatesDir string
		contextsPath string
	)
	cmd := &cobra.Command{
		Use:   "repair <bundle>",
		Short: "Print the regeneration prompt for a bundle whose activity section is invalid",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if !cmd.Flags().Changed("templates-dir") {
				templatesDir = e.cfg.Generate.TemplatesDir
			}
			b, err := bundle.Read(args[0])
			if err != nil {
				return err
			}
			tmpl, err := templates.Load(e.log, templatesDir)
			if err != nil {
				return err
			}
			scenario, err := scenarioFor(contextsPath, filepath.Base(args[0]))
			if err != nil {
				return err
			}
			prompt, err := validate.RepairPrompt(b.Activity, tmpl.ActivityTemplate, b.PersonaStyle, scenario)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), prompt)
			return nil
		},
	}
	cmd.Flags().StringVar(&templatesDir, "templates-dir", "templates", "directory containing the section templates")
	cmd.Flags().StringVar(&contextsPath, "contexts", "", "contexts file to take the scenario from (matched by bundle file name)")
	return cmd
}

// scenarioFor finds the scenario of the record that produced fileName.
// Without a contexts file the scenario is an empty object.
func scenarioFor(contextsPath, fileName string) (json.Marshaler, error) {
	if contextsPath == "" {
		return contexts.Scenario(nil), nil
	}
	items, err := contexts.LoadFile(contextsPath)
	if err != nil {
		return nil, err
	}
	for _, it := range items {
		rec, ok, err := contexts.Normalize(it)
		if err != nil {
			return nil, err
		}
		if ok && rec.FileName() == fileName {
			return rec.Scenario, nil
		}
	}
	return nil, fmt.Errorf("no record in %s matches %s", contextsPath, fileName)
}
