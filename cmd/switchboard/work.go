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
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/MakeNowJust/heredoc"
	"github.com/spf13/cobra"

	"github.com/teradata-labs/switchboard/internal/log"
	"github.com/teradata-labs/switchboard/pkg/project"
	"github.com/teradata-labs/switchboard/pkg/workqueue"
)

var (
	workPriority   int
	workAgent      string
	workDeps       []string
	workComplexity string
	workFailReason string
)

var workCmd = &cobra.Command{
	Use:   "work",
	Short: "Manipulate the project work queue",
	Long: heredoc.Doc(`
		The work queue holds units of agent work per project, with priorities,
		dependencies, and a WIP limit. Transitions follow
		queued -> in_progress -> completed | failed; anything else exits 3.
	`),
}

var workEnqueueCmd = &cobra.Command{
	Use:   "enqueue \"<description>\"",
	Short: "Add a work item in status queued",
	Args:  cobra.ExactArgs(1),
	Run:   runWorkEnqueue,
}

var workStartCmd = &cobra.Command{
	Use:   "start",
	Short: "Promote the best eligible queued item to in_progress",
	Args:  cobra.NoArgs,
	Run:   runWorkStart,
}

var workCompleteCmd = &cobra.Command{
	Use:   "complete <id>",
	Short: "Mark an in_progress item completed",
	Args:  cobra.ExactArgs(1),
	Run:   runWorkComplete,
}

var workFailCmd = &cobra.Command{
	Use:   "fail <id>",
	Short: "Mark an in_progress item failed",
	Args:  cobra.ExactArgs(1),
	Run:   runWorkFail,
}

var workStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Print the queue state",
	Args:  cobra.NoArgs,
	Run:   runWorkStatus,
}

func init() {
	workEnqueueCmd.Flags().IntVar(&workPriority, "priority", 0, "selection priority, higher first")
	workEnqueueCmd.Flags().StringVar(&workAgent, "agent", "", "agent the item is intended for")
	workEnqueueCmd.Flags().StringSliceVar(&workDeps, "depends-on", nil, "ids that must complete first")
	workEnqueueCmd.Flags().StringVar(&workComplexity, "complexity", "", "estimated complexity (low|medium|high)")
	workFailCmd.Flags().StringVar(&workFailReason, "reason", "", "failure reason")

	workCmd.AddCommand(workEnqueueCmd)
	workCmd.AddCommand(workStartCmd)
	workCmd.AddCommand(workCompleteCmd)
	workCmd.AddCommand(workFailCmd)
	workCmd.AddCommand(workStatusCmd)
}

func openQueue() *workqueue.Queue {
	proj := currentProject()
	settings := project.LoadSettings(proj.Root, log.Logger())
	queue, err := workqueue.Open(proj, settings.WIPLimit, log.Logger())
	if err != nil {
		fatal(err)
	}
	return queue
}

func runWorkEnqueue(cmd *cobra.Command, args []string) {
	item, err := openQueue().Enqueue(cmd.Context(), workqueue.Item{
		Description:         args[0],
		Agent:               workAgent,
		Priority:            workPriority,
		Dependencies:        workDeps,
		EstimatedComplexity: workComplexity,
	})
	if err != nil {
		fatalWork(err)
	}
	fmt.Printf("enqueued %s\n", item.ID)
}

func runWorkStart(cmd *cobra.Command, args []string) {
	item, err := openQueue().StartNext(cmd.Context())
	if err != nil {
		fatalWork(err)
	}
	if item == nil {
		fmt.Println("nothing to start: WIP limit reached or no eligible item")
		return
	}
	fmt.Printf("started %s: %s\n", item.ID, item.Description)
}

func runWorkComplete(cmd *cobra.Command, args []string) {
	if err := openQueue().Complete(cmd.Context(), args[0]); err != nil {
		fatalWork(err)
	}
	fmt.Printf("completed %s\n", args[0])
}

func runWorkFail(cmd *cobra.Command, args []string) {
	if err := openQueue().Fail(cmd.Context(), args[0], workFailReason); err != nil {
		fatalWork(err)
	}
	fmt.Printf("failed %s\n", args[0])
}

func runWorkStatus(cmd *cobra.Command, args []string) {
	state, err := openQueue().Status(cmd.Context())
	if err != nil {
		fatalWork(err)
	}
	fmt.Println(workqueue.Summarize(state))
	if len(state.CompletedIDs) > 0 {
		fmt.Printf("  completed: %s\n", strings.Join(state.CompletedIDs, ", "))
	}
}

// fatalWork maps state-machine violations to exit code 3.
func fatalWork(err error) {
	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	var transition *workqueue.TransitionError
	if errors.As(err, &transition) {
		os.Exit(3)
	}
	os.Exit(1)
}
