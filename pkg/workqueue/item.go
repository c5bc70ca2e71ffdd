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
// Package workqueue is a WIP-limited, priority-ordered, dependency-aware
// task queue persisted per project. All mutation is load-modify-store under
// an exclusive advisory lock with an atomic rename, so concurrent hooks and
// CLI invocations cannot corrupt the state.
package workqueue

import (
	"fmt"
	"time"
)

// Status of a work item. Transitions are monotone:
// queued → in_progress → completed | failed.
type Status string

// Work item states.
const (
	StatusQueued     Status = "queued"
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

// Item is one unit of queued work.
type Item struct {
	ID           string     `json:"id"`
	Description  string     `json:"description"`
	Agent        string     `json:"agent,omitempty"`
	Priority     int        `json:"priority"`
	Status       Status     `json:"status"`
	Dependencies []string   `json:"dependencies,omitempty"`
	StartedAt    *time.Time `json:"started_at,omitempty"`
	CompletedAt  *time.Time `json:"completed_at,omitempty"`

	// EstimatedComplexity is advisory: "low", "medium", "high".
	EstimatedComplexity string `json:"estimated_complexity,omitempty"`
	FailureReason       string `json:"failure_reason,omitempty"`
}

// State is the persisted queue snapshot for one project. CompletedIDs is the
// dependency-satisfaction set; Completed additionally keeps recent items with
// timestamps for the adaptive WIP computation.
type State struct {
	WIPLimit     int      `json:"wip_limit"`
	Active       []Item   `json:"active"`
	Queued       []Item   `json:"queued"`
	CompletedIDs []string `json:"completed_ids"`
	Completed    []Item   `json:"completed,omitempty"`
}

// TransitionError reports an attempted state-machine violation. The
// persisted state is left untouched when one is returned.
type TransitionError struct {
	ID   string
	From Status
	To   Status
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("invalid work item transition %s: %s → %s", e.ID, e.From, e.To)
}

// CorruptStateError reports an unreadable state file. Operations refuse to
// run rather than overwrite what is on disk.
type CorruptStateError struct {
	Path string
	Err  error
}

func (e *CorruptStateError) Error() string {
	return fmt.Sprintf("corrupt work queue state at %s: %v", e.Path, e.Err)
}

func (e *CorruptStateError) Unwrap() error { return e.Err }

// NotFoundError reports an unknown work item id.
type NotFoundError struct {
	ID string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("work item not found: %s", e.ID)
}
