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
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ttbt-io/uiverify/harness"
)

// NewShowCommand creates the show command.
func NewShowCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "show <scenario>",
		Short: "Print a scenario as YAML",
		Long: `Show prints the named scenario in the scenario file format. The
output can be saved, edited and passed back with --scenario-file.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := rootOpts.loadConfig()
			if err != nil {
				return err
			}
			all, err := catalog(cfg.ScenarioFiles)
			if err != nil {
				return err
			}
			selected, err := selectScenarios(all, args)
			if err != nil {
				return err
			}
			data, err := harness.MarshalScenario(selected[0])
			if err != nil {
				return fmt.Errorf("failed to encode %s: %w", args[0], err)
			}
			_, err = cmd.OutOrStdout().Write(data)
			return err
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}
}
