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
	"time"

	"github.com/MakeNowJust/heredoc"
	"github.com/spf13/cobra"

	"github.com/teradata-labs/switchboard/internal/log"
	"github.com/teradata-labs/switchboard/pkg/eventlog"
	"github.com/teradata-labs/switchboard/pkg/metrics"
)

var (
	metricsSince  string
	metricsUntil  string
	retentionDays int
)

var metricsCmd = &cobra.Command{
	Use:   "metrics",
	Short: "Reports and maintenance over the project event log",
}

var metricsReportCmd = &cobra.Command{
	Use:       "report (daily|weekly|compliance)",
	Short:     "Print an activity or compliance report",
	ValidArgs: []string{"daily", "weekly", "compliance"},
	Args:      cobra.ExactArgs(1),
	Long: heredoc.Doc(`
		Compute a report from the current project's event log. Reports are
		recomputed from the daily files every time; nothing is cached.

		daily       activity for one date (--since, default today)
		weekly      activity for the ISO week containing --since
		compliance  routing compliance between --since and --until
	`),
	Run: runMetricsReport,
}

var metricsCleanupCmd = &cobra.Command{
	Use:   "cleanup",
	Short: "Delete daily event files past the retention window",
	Run:   runMetricsCleanup,
}

func init() {
	metricsReportCmd.Flags().StringVar(&metricsSince, "since", "", "start date (YYYY-MM-DD, default today)")
	metricsReportCmd.Flags().StringVar(&metricsUntil, "until", "", "end date (YYYY-MM-DD, default today)")
	metricsCleanupCmd.Flags().IntVar(&retentionDays, "retention-days", 0, "delete daily files older than this many days")
	metricsCmd.AddCommand(metricsReportCmd)
	metricsCmd.AddCommand(metricsCleanupCmd)
}

func openAggregator() *metrics.Aggregator {
	proj := currentProject()
	elog, err := eventlog.Open(proj, log.Logger())
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	return metrics.New(elog, log.Logger())
}

func runMetricsReport(cmd *cobra.Command, args []string) {
	agg := openAggregator()

	since, err := metrics.ParseDate(metricsSince, time.Now())
	if err != nil {
		fatal(err)
	}
	until, err := metrics.ParseDate(metricsUntil, time.Now())
	if err != nil {
		fatal(err)
	}

	switch args[0] {
	case "daily":
		activity, err := agg.Daily(cmd.Context(), since)
		if err != nil {
			fatal(err)
		}
		fmt.Print(metrics.RenderActivity(activity))
	case "weekly":
		activity, err := agg.Weekly(cmd.Context(), since)
		if err != nil {
			fatal(err)
		}
		fmt.Print(metrics.RenderActivity(activity))
	case "compliance":
		stats, err := agg.Compliance(cmd.Context(), since, until.AddDate(0, 0, 1))
		if err != nil {
			fatal(err)
		}
		fmt.Print(metrics.RenderCompliance(stats))
	}
}

func fatal(err error) {
	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	os.Exit(1)
}

func runMetricsCleanup(cmd *cobra.Command, args []string) {
	if retentionDays <= 0 {
		fmt.Fprintln(os.Stderr, "Error: --retention-days must be positive")
		os.Exit(1)
	}
	removed, err := openAggregator().Cleanup(retentionDays, time.Now())
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("removed %d expired daily file(s)\n", removed)
}
