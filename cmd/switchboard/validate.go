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
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/MakeNowJust/heredoc"
	"github.com/spf13/cobra"

	"github.com/teradata-labs/switchboard/internal/log"
	"github.com/teradata-labs/switchboard/pkg/hooks"
	"github.com/teradata-labs/switchboard/pkg/project"
	"github.com/teradata-labs/switchboard/pkg/workqueue"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Verify directory layout, permissions, and configuration",
	Long: heredoc.Doc(`
		Run every installation check for the current project: the per-project
		data directories and their permissions, the settings cascade, agent
		manifests, the tool policy, and the work queue state file.

		Exits 0 only when every check passes.
	`),
	Args: cobra.NoArgs,
	Run:  runValidate,
}

func runValidate(cmd *cobra.Command, args []string) {
	proj := currentProject()
	failures := 0

	check := func(name string, err error) {
		if err != nil {
			failures++
			fmt.Printf("FAIL %-22s %v\n", name, err)
			return
		}
		fmt.Printf("ok   %s\n", name)
	}

	fmt.Printf("project %s (%s)\n", proj.Name, proj.ID)

	check("data directories", checkDataDirs(proj))
	check("settings cascade", checkSettings(proj))
	check("agent manifests", checkManifests(proj))
	check("tool policy", checkToolPolicy(proj))
	check("work queue state", checkWorkQueue(cmd, proj))

	if failures > 0 {
		fmt.Printf("%d check(s) failed\n", failures)
		os.Exit(1)
	}
	fmt.Println("all checks passed")
}

// checkDataDirs creates (if needed) and permission-checks every data kind.
func checkDataDirs(proj *project.Context) error {
	for _, kind := range project.Kinds() {
		dir, err := project.DataDir(proj, kind)
		if err != nil {
			return err
		}
		info, err := os.Stat(dir)
		if err != nil {
			return err
		}
		if perm := info.Mode().Perm(); perm != 0o700 {
			return fmt.Errorf("%s has mode %o, want 700", dir, perm)
		}
	}
	return nil
}

// checkSettings rejects unparseable settings files. The runtime cascade
// falls through on these; validate surfaces them instead.
func checkSettings(proj *project.Context) error {
	paths := []string{filepath.Join(project.UserClaudeDir(), project.SettingsFileName)}
	if proj.Root != "" {
		paths = append(paths, filepath.Join(proj.Root, project.MarkerDir, project.SettingsFileName))
	}
	for _, path := range paths {
		data, err := os.ReadFile(path)
		if err != nil {
			continue // optional file
		}
		var doc map[string]any
		if err := json.Unmarshal(data, &doc); err != nil {
			return fmt.Errorf("%s: %w", path, err)
		}
	}
	return nil
}

// checkManifests loads the registry and requires at least one agent.
func checkManifests(proj *project.Context) error {
	reg := loadRegistry(proj)
	if len(reg.List()) == 0 {
		return fmt.Errorf("no agents available")
	}
	return nil
}

func checkToolPolicy(proj *project.Context) error {
	_, err := hooks.LoadToolPolicy(proj)
	return err
}

// checkWorkQueue verifies the state file loads, without mutating it.
func checkWorkQueue(cmd *cobra.Command, proj *project.Context) error {
	settings := project.LoadSettings(proj.Root, log.Logger())
	queue, err := workqueue.Open(proj, settings.WIPLimit, log.Logger())
	if err != nil {
		return err
	}
	state, err := queue.Status(cmd.Context())
	if err != nil {
		return err
	}
	if len(state.Active) > state.WIPLimit {
		return fmt.Errorf("active items (%d) exceed WIP limit (%d)", len(state.Active), state.WIPLimit)
	}
	return nil
}
