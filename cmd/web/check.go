package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/yanizio/adept-leads/internal/config"
	"github.com/yanizio/adept-leads/internal/form"
)

// errInvalidDraft makes `web check` exit non-zero without repeating output.
var errInvalidDraft = errors.New("draft is invalid")

func newCheckCmd() *cobra.Command {
	var formID string
	cmd := &cobra.Command{
		Use:   "check FILE.json",
		Short: "Validate a draft offline and print field errors",
		Long: "Reads a JSON object of field name to value and validates it against a\n" +
			"registered form definition.  Configuration is used when present; otherwise\n" +
			"the built-in contact definition applies.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			raw, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			var draft form.Draft
			if err := json.Unmarshal(raw, &draft); err != nil {
				return fmt.Errorf("parse %s: %w", args[0], err)
			}

			if cfg, err := config.Load(cmd.Context()); err == nil {
				if err := registerForms(cfg); err != nil {
					return err
				}
			} else if err := form.Register(form.ContactDef(form.ContactOptions{})); err != nil {
				return err
			}

			fd, ok := form.GetFormDef(formID)
			if !ok {
				return fmt.Errorf("unknown form %q", formID)
			}
			return runCheck(cmd, fd, draft)
		},
	}
	cmd.Flags().StringVar(&formID, "form", form.ContactFormID, "form definition ID")
	return cmd
}

// runCheck prints one line per failing field, in definition order.
func runCheck(cmd *cobra.Command, fd *form.FormDef, draft form.Draft) error {
	for name := range draft {
		if _, ok := fd.Field(name); !ok {
			return fmt.Errorf("%w: %q", form.ErrUnknownField, name)
		}
	}

	_, res := form.Validate(fd, draft)
	out := cmd.OutOrStdout()
	if res.Valid() {
		fmt.Fprintln(out, "ok")
		return nil
	}
	for _, e := range res.Ordered(fd) {
		fmt.Fprintf(out, "%s: %s\n", e.Name, e.Message)
	}
	cmd.SilenceErrors = true
	return errInvalidDraft
}
