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
	"fmt"
	"os"
	"path/filepath"

	"github.com/MakeNowJust/heredoc"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/teradata-labs/switchboard/internal/log"
	"github.com/teradata-labs/switchboard/internal/version"
	"github.com/teradata-labs/switchboard/pkg/project"
	"github.com/teradata-labs/switchboard/pkg/registry"
)

var rootCmd = &cobra.Command{
	Use:     "switchboard",
	Short:   "Routing and work coordination for host-driven agent pools",
	Version: version.Get(),
	Long: heredoc.Doc(`
		Switchboard sits between an interactive coding assistant and its agent
		pool. It classifies each request into a routing decision, tracks whether
		recommendations were followed, and coordinates per-project work queues,
		event logs, and session state.

		The host drives it through lifecycle hooks (switchboard hook ...); the
		route, metrics, work, and validate commands are the administrative
		surface over the same per-project state.
	`),
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.AddCommand(routeCmd)
	rootCmd.AddCommand(hookCmd)
	rootCmd.AddCommand(metricsCmd)
	rootCmd.AddCommand(workCmd)
	rootCmd.AddCommand(validateCmd)
}

func main() {
	defer func() { _ = log.Sync() }()
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// currentProject resolves the project for the working directory.
func currentProject() *project.Context {
	cwd, err := os.Getwd()
	if err != nil {
		log.Warn("failed to resolve working directory", zap.Error(err))
		return project.Global()
	}
	return project.Detect(cwd, log.Logger())
}

// loadRegistry merges built-in, user, and project agent manifests for the
// current project.
func loadRegistry(proj *project.Context) *registry.Registry {
	userDir := filepath.Join(project.UserClaudeDir(), registry.AgentsDirName)
	projectDir := ""
	if proj.Root != "" {
		projectDir = filepath.Join(proj.Root, project.MarkerDir, registry.AgentsDirName)
	}
	return registry.Load(userDir, projectDir, log.Logger())
}
