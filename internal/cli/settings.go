package cli

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/devbydaniel/watson/internal/settings"
)

// withSettings loads the settings, runs fn and, when save is set and fn
// succeeded, writes them back.
func withSettings(cmd *cobra.Command, deps *Dependencies, save bool, fn func(*settings.Controller) error) error {
	c := deps.App.Settings
	if err := c.Load(cmd.Context()); err != nil {
		return err
	}
	if err := fn(c); err != nil {
		return err
	}
	if !save {
		return nil
	}
	return c.Flush(cmd.Context())
}

func NewPromptsCmd(deps *Dependencies) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "prompts",
		Short: "Manage the summarization prompt library",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List prompts",
		RunE: func(cmd *cobra.Command, args []string) error {
			f := formatter(cmd)
			return withSettings(cmd, deps, false, func(c *settings.Controller) error {
				prompts := c.Prompts()
				if len(prompts) == 0 {
					f.Info("No prompts yet. Add one with: watson prompts set NAME TEXT")
					return nil
				}
				for _, p := range prompts {
					f.PromptListItem(p)
				}
				return nil
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "set <name> <text>",
		Short: "Add or replace a prompt",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			f := formatter(cmd)
			name := strings.TrimSpace(args[0])
			if name == "" {
				return errors.New("prompt name is empty")
			}
			return withSettings(cmd, deps, true, func(c *settings.Controller) error {
				if c.SetPrompt(name, args[1]) {
					f.Success("Prompt added: " + name)
				} else {
					f.Success("Prompt updated: " + name)
				}
				return nil
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "delete <name>",
		Short: "Delete a prompt",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f := formatter(cmd)
			return withSettings(cmd, deps, true, func(c *settings.Controller) error {
				if !c.DeletePrompt(args[0]) {
					return fmt.Errorf("no prompt named %q", args[0])
				}
				f.Success("Prompt deleted: " + args[0])
				return nil
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "import <file>",
		Short: "Merge prompts from a YAML file (- for stdin)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f := formatter(cmd)
			var r io.Reader = cmd.InOrStdin()
			if args[0] != "-" {
				file, err := os.Open(args[0])
				if err != nil {
					return err
				}
				defer file.Close()
				r = file
			}
			return withSettings(cmd, deps, true, func(c *settings.Controller) error {
				added, updated, err := c.ImportPrompts(r)
				if err != nil {
					return err
				}
				f.Success(fmt.Sprintf("Imported prompts: %d added, %d updated", added, updated))
				return nil
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "export <file>",
		Short: "Write the prompts to a YAML file (- for stdout)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSettings(cmd, deps, false, func(c *settings.Controller) error {
				if args[0] == "-" {
					return c.ExportPrompts(cmd.OutOrStdout())
				}
				file, err := os.Create(args[0])
				if err != nil {
					return err
				}
				if err := c.ExportPrompts(file); err != nil {
					file.Close()
					return err
				}
				return file.Close()
			})
		},
	})

	return cmd
}

func NewSettingsCmd(deps *Dependencies) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "settings",
		Short: "Show and change backend settings",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Show the settings",
		RunE: func(cmd *cobra.Command, args []string) error {
			f := formatter(cmd)
			return withSettings(cmd, deps, false, func(c *settings.Controller) error {
				s := c.Settings()
				f.SetupCheck("AssemblyAI token", s.AssemblyAIToken != "", mask(s.AssemblyAIToken))
				f.SetupCheck("OpenAI token", s.OpenAIToken != "", mask(s.OpenAIToken))
				f.SetupCheck("Affinity token", s.AffinityToken != "", mask(s.AffinityToken))
				model := "(backend default)"
				if s.DefaultModel != nil {
					model = *s.DefaultModel
				}
				f.Info("Default model: " + model)
				if s.CRMEnabled() {
					f.Info("CRM list: " + orDefault(c.BoundCRMList()))
				}
				f.Info(fmt.Sprintf("Prompts: %d", len(s.Prompts)))
				return nil
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "set <field> <value>",
		Short: "Set a field: " + strings.Join(settings.Fields, ", "),
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSettings(cmd, deps, true, func(c *settings.Controller) error {
				if err := c.Set(args[0], args[1]); err != nil {
					return err
				}
				formatter(cmd).Success("Saved " + args[0])
				return nil
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "list [name]",
		Short: "Show the CRM lists, or bind published meetings to one",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f := formatter(cmd)
			return withSettings(cmd, deps, len(args) == 1, func(c *settings.Controller) error {
				if len(args) == 1 {
					if err := c.BindCRMList(args[0]); err != nil {
						return fmt.Errorf("%w (lists: %s)", err, strings.Join(c.CRMLists(), ", "))
					}
					f.Success("Published meetings go to " + args[0])
					return nil
				}
				bound := c.BoundCRMList()
				for _, name := range c.CRMLists() {
					f.SetupCheck(name, name == bound, "")
				}
				return nil
			})
		},
	})

	var yes bool
	deleteAll := &cobra.Command{
		Use:   "delete-all",
		Short: "Delete every meeting",
		RunE: func(cmd *cobra.Command, args []string) error {
			err := deps.App.Settings.DeleteAll(cmd.Context(), yes)
			if errors.Is(err, settings.ErrNotConfirmed) {
				return fmt.Errorf("%w: pass --yes to delete all meetings", err)
			}
			if err != nil {
				return err
			}
			formatter(cmd).Success("All meetings deleted")
			return nil
		},
	}
	deleteAll.Flags().BoolVarP(&yes, "yes", "y", false, "Confirm the deletion")
	cmd.AddCommand(deleteAll)

	cmd.AddCommand(&cobra.Command{
		Use:   "export",
		Short: "Export every meeting",
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := deps.App.Settings.ExportAll(cmd.Context())
			if err != nil {
				return err
			}
			formatter(cmd).Success("Meetings exported to " + path)
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "open",
		Short: "Open the backend data folder",
		RunE: func(cmd *cobra.Command, args []string) error {
			return deps.App.Settings.OpenDataFolder(cmd.Context())
		},
	})

	return cmd
}

func mask(token string) string {
	if token == "" {
		return "not set"
	}
	if len(token) <= 4 {
		return "****"
	}
	return "****" + token[len(token)-4:]
}
