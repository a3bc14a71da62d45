package main

import (
	"fmt"
	"log/slog"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/tonimelisma/netatmo-go/internal/netatmo"
)

func newHomesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "homes",
		Short: "List homes visible to the account",
		Args:  cobra.NoArgs,
		RunE:  runHomes,
	}
}

func newSchedulesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "schedules [home-id]",
		Short: "List heating schedules and their ids",
		Long: `List heating schedules of every home, or of one home when an id is given.
The selected schedule is marked with "*".`,
		Args: cobra.MaximumNArgs(1),
		RunE: runSchedules,
	}
}

func newScheduleCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "schedule",
		Short: "Manage the active heating schedule",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "switch <home-id> <schedule-id>",
		Short: "Make a schedule the active one",
		Args:  cobra.ExactArgs(2),
		RunE:  runScheduleSwitch,
	})

	return cmd
}

// fetchHomes loads homesdata, optionally for a single home.
func fetchHomes(cmd *cobra.Command, homeID string) (*CLIContext, *netatmo.HomesData, error) {
	cc := mustCLIContext(cmd.Context())

	mgr, err := cc.newManager()
	if err != nil {
		return nil, nil, err
	}

	data, err := cc.newAPIClient(mgr).HomesData(cmd.Context(), homeID)
	if err != nil {
		return nil, nil, fmt.Errorf("fetching homes: %w", err)
	}

	return cc, data, nil
}

func runHomes(cmd *cobra.Command, _ []string) error {
	cc, data, err := fetchHomes(cmd, "")
	if err != nil {
		return err
	}

	if cc.JSON {
		return writeJSON(cc.Stdout, data.Homes)
	}

	if len(data.Homes) == 0 {
		cc.Statusf("No homes found.\n")
		return nil
	}

	rows := make([][]string, 0, len(data.Homes))
	for i := range data.Homes {
		h := &data.Homes[i]
		rows = append(rows, []string{
			h.ID,
			displayName(h.Name),
			h.Timezone,
			strconv.Itoa(len(h.Rooms)),
			strconv.Itoa(len(h.Modules)),
			strconv.Itoa(len(h.Schedules)),
		})
	}

	printTable(cc.Stdout, []string{"ID", "NAME", "TIMEZONE", "ROOMS", "MODULES", "SCHEDULES"}, rows)

	return nil
}

// scheduleOutput is the JSON schema for one row of `schedules --json`.
type scheduleOutput struct {
	HomeID   string `json:"home_id"`
	ID       string `json:"id"`
	Name     string `json:"name"`
	Type     string `json:"type,omitempty"`
	Selected bool   `json:"selected"`
	Default  bool   `json:"default"`
}

func runSchedules(cmd *cobra.Command, args []string) error {
	var homeID string
	if len(args) == 1 {
		homeID = args[0]
	}

	cc, data, err := fetchHomes(cmd, homeID)
	if err != nil {
		return err
	}

	homes := data.Homes
	if homeID != "" {
		h, ok := data.HomeByID(homeID)
		if !ok {
			return fmt.Errorf("home %q not found", homeID)
		}

		homes = []netatmo.Home{*h}
	}

	var out []scheduleOutput

	for i := range homes {
		for _, s := range homes[i].Schedules {
			if s.EffectiveID() == "" {
				cc.Logger.Warn("skipping schedule without id",
					slog.String("home_id", homes[i].ID),
					slog.String("name", s.Name),
				)

				continue
			}

			out = append(out, scheduleOutput{
				HomeID:   homes[i].ID,
				ID:       s.EffectiveID(),
				Name:     displayName(s.Name),
				Type:     s.Type,
				Selected: s.Selected,
				Default:  s.Default,
			})
		}
	}

	if cc.JSON {
		if out == nil {
			out = []scheduleOutput{}
		}

		return writeJSON(cc.Stdout, out)
	}

	if len(out) == 0 {
		cc.Statusf("No schedules found.\n")
		return nil
	}

	rows := make([][]string, 0, len(out))
	for _, s := range out {
		mark := ""
		if s.Selected {
			mark = "*"
		}

		rows = append(rows, []string{mark, s.HomeID, s.ID, s.Name, s.Type})
	}

	printTable(cc.Stdout, []string{"", "HOME", "ID", "NAME", "TYPE"}, rows)

	return nil
}

func runScheduleSwitch(cmd *cobra.Command, args []string) error {
	cc := mustCLIContext(cmd.Context())
	homeID, scheduleID := args[0], args[1]

	mgr, err := cc.newManager()
	if err != nil {
		return err
	}

	if err := cc.newAPIClient(mgr).SwitchHomeSchedule(cmd.Context(), homeID, scheduleID); err != nil {
		return err
	}

	cc.Logger.Info("schedule switched",
		slog.String("home_id", homeID),
		slog.String("schedule_id", scheduleID),
	)
	cc.Statusf("Switched home %s to schedule %s.\n", homeID, scheduleID)

	return nil
}
