// Copyright (c) 2026 TTBT Enterprises LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/ttbt-io/uiverify/harness"
	"github.com/ttbt-io/uiverify/history"
)

// NewHistoryCommand creates the history command group.
func NewHistoryCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Inspect stored run records",
		Long: `History reads the records saved by run when a history directory is
configured with --history-dir, history_dir or UIVERIFY_HISTORY_DIR. Run IDs may
be abbreviated to any unique prefix.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.AddCommand(newHistoryListCommand(rootOpts))
	cmd.AddCommand(newHistoryShowCommand(rootOpts))
	cmd.AddCommand(newHistoryStatsCommand(rootOpts))
	cmd.AddCommand(newHistoryDiffCommand(rootOpts))
	return cmd
}

func (o *RootOptions) openHistory() (*history.Store, error) {
	cfg, err := o.loadConfig()
	if err != nil {
		return nil, err
	}
	if cfg.HistoryDir == "" {
		return nil, errors.New("no history directory configured")
	}
	store, err := history.Open(cfg.HistoryDir, cfg.MasterKey)
	if err != nil {
		return nil, fmt.Errorf("failed to open history: %w", err)
	}
	return store, nil
}

func newHistoryListCommand(rootOpts *RootOptions) *cobra.Command {
	var scenario string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List stored runs, oldest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := rootOpts.openHistory()
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "RUN ID\tSCENARIO\tOUTCOME\tSTARTED\tDURATION")
			for r, err := range store.List() {
				if err != nil {
					return err
				}
				if scenario != "" && r.Scenario != scenario {
					continue
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", r.RunID, r.Scenario, r.Outcome,
					r.Started.Local().Format(time.RFC3339), r.Duration.Round(time.Millisecond))
			}
			return w.Flush()
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.Flags().StringVar(&scenario, "scenario", "", "only list runs of this scenario")
	return cmd
}

func newHistoryShowCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "show <run-id>",
		Short: "Print a stored run as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := rootOpts.openHistory()
			if err != nil {
				return err
			}
			id, err := store.Resolve(args[0])
			if err != nil {
				return err
			}
			r, err := store.Load(id)
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(r)
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}
}

func newHistoryStatsCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Summarize pass rates and durations per scenario",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := rootOpts.openHistory()
			if err != nil {
				return err
			}
			stats, err := history.Compute(store.List())
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "SCENARIO\tRUNS\tPASS\tFAIL\tENV\tMEAN\tP50\tP90\tMAX\tLAST")
			if len(stats) > 1 {
				stats = append(stats, history.Total(stats))
			}
			for _, s := range stats {
				fmt.Fprintf(w, "%s\t%d\t%.0f%%\t%d\t%d\t%s\t%s\t%s\t%s\t%s\n",
					s.Scenario, s.Runs, 100*s.PassRate(), s.Failed, s.EnvironmentError,
					s.Duration.Mean().Round(time.Millisecond),
					s.Duration.Quantile(0.5), s.Duration.Quantile(0.9), s.Duration.Max.Round(time.Millisecond),
					s.LastOutcome)
			}
			return w.Flush()
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}
}

func newHistoryDiffCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "diff <run-id> <run-id>",
		Short: "Compare the steps and outcome of two runs",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := rootOpts.openHistory()
			if err != nil {
				return err
			}
			a, err := loadRun(store, args[0])
			if err != nil {
				return err
			}
			b, err := loadRun(store, args[1])
			if err != nil {
				return err
			}
			d, err := history.Diff(*a, *b)
			if err != nil {
				return err
			}
			if d == "" {
				d = "runs are equivalent\n"
			}
			_, err = fmt.Fprint(cmd.OutOrStdout(), d)
			return err
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}
}

func loadRun(store *history.Store, prefix string) (*harness.RunResult, error) {
	id, err := store.Resolve(prefix)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", prefix, err)
	}
	return store.Load(id)
}
