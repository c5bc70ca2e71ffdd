// Copyright 2026 Teradata
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//	http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.
package main

import (
	"os"

	"github.com/MakeNowJust/heredoc"
	"github.com/spf13/cobra"

	"github.com/teradata-labs/switchboard/internal/log"
	"github.com/teradata-labs/switchboard/pkg/hooks"
)

var hookCmd = &cobra.Command{
	Use:       "hook <name>",
	Short:     "Run a host lifecycle hook (reads JSON on stdin)",
	ValidArgs: hooks.Names(),
	Args:      cobra.ExactArgs(1),
	Long: heredoc.Doc(`
		Entry point for the host's lifecycle hooks. The host pipes a JSON
		payload on stdin; advisory output for the host goes to stdout and
		human-readable lines to stderr.

		Hooks always exit 0. A hook that cannot do its job reports the problem
		on stderr and gets out of the host's way; it never blocks the
		conversation.
	`),
	Run: runHook,
}

func runHook(cmd *cobra.Command, args []string) {
	d := hooks.NewDispatcher(cmd.InOrStdin(), cmd.OutOrStdout(), cmd.ErrOrStderr(), log.Logger())
	os.Exit(d.Run(cmd.Context(), args[0]))
}
