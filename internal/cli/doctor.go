package cli

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/devbydaniel/watson/config"
	"github.com/devbydaniel/watson/internal/app"
)

func NewDoctorCmd(deps *Dependencies) *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Check the backend and local setup",
		RunE: func(cmd *cobra.Command, args []string) error {
			f := formatter(cmd)
			ctx := cmd.Context()
			a := deps.App
			ok := true

			if path := config.FilePath(); path != "" {
				f.SetupCheck("Config file", true, path)
			} else {
				f.SetupCheck("Config file", true, "none, using defaults")
			}

			if a.Transport != nil {
				if err := a.Transport.Ping(ctx); err != nil {
					f.SetupCheck("Backend", false, deps.Config.BackendURL+": "+err.Error())
					ok = false
				} else {
					f.SetupCheck("Backend", true, deps.Config.BackendURL)
				}
			}

			if s, err := a.Backend.GetSettings(ctx); err == nil {
				f.SetupCheck("Transcription token", s.AssemblyAIToken != "", mask(s.AssemblyAIToken))
				f.SetupCheck("Summarization token", s.OpenAIToken != "", mask(s.OpenAIToken))
				ok = ok && s.AssemblyAIToken != "" && s.OpenAIToken != ""
			}

			if err := a.Ledger.Health(ctx); err != nil {
				f.SetupCheck("Job ledger", false, err.Error())
				ok = false
			} else if running, err := a.Ledger.CountRunning(ctx); err == nil && len(running) > 0 {
				n := 0
				for _, c := range running {
					n += c
				}
				f.SetupCheck("Job ledger", true, fmt.Sprintf("%s (%d running in %d meetings)", deps.Config.LedgerPath, n, len(running)))
			} else {
				f.SetupCheck("Job ledger", true, deps.Config.LedgerPath)
			}

			switch err := a.PingEvents(ctx); {
			case errors.Is(err, app.ErrEventsDisabled):
				f.SetupCheck("Backend events", true, "disabled (set redis_addr to enable)")
			case err != nil:
				f.SetupCheck("Backend events", false, deps.Config.RedisAddr+": "+err.Error())
				ok = false
			default:
				f.SetupCheck("Backend events", true, deps.Config.RedisAddr+" "+deps.Config.EventsChannel)
			}

			if nf := deps.Config.NotesFile; nf != "" {
				if _, err := os.Stat(nf); err != nil {
					f.SetupCheck("Notes file", false, err.Error())
					ok = false
				} else {
					f.SetupCheck("Notes file", true, nf)
				}
			}

			if ok {
				f.Success("\nAll checks passed. Ready to record!")
			} else {
				f.Warning("\nSome checks failed.")
			}
			return nil
		},
	}
}
