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
package hooks

import (
	"bufio"
	"context"
	"fmt"
	"os"

	"github.com/pkoukk/tiktoken-go"
	"go.uber.org/zap"

	"github.com/teradata-labs/switchboard/pkg/sessionstate"
)

// tokensPerTurn is the coarse per-turn estimate applied to the host
// transcript. The transcript holds one JSON object per turn; counting turns
// is cheap and errs on the generous side.
const tokensPerTurn = 1000

// checkContextThreshold estimates conversation size from the host
// transcript and warns once per session when the configured fraction of the
// context window is consumed.
func (d *Dispatcher) checkContextThreshold(ctx context.Context, env *hookEnv, in *Input) {
	if in.TranscriptPath == "" {
		return
	}

	estimated := estimateTranscriptTokens(in.TranscriptPath) + estimateTokens(in.Prompt)
	threshold := int(float64(env.settings.ContextWindowTokens) * env.settings.ContextWarnFraction)
	if threshold <= 0 || estimated < threshold {
		return
	}

	flags, err := sessionstate.Open(env.proj, d.logger)
	if err != nil {
		d.logger.Warn("session flags unavailable, skipping context warning", zap.Error(err))
		return
	}
	first, err := flags.MarkContextWarned(ctx)
	if err != nil || !first {
		return
	}

	percent := 100 * estimated / env.settings.ContextWindowTokens
	fmt.Fprintf(d.stderr,
		"switchboard: context is ~%d%% full (~%d of %d tokens); consider wrapping up or starting a continuation\n",
		percent, estimated, env.settings.ContextWindowTokens)
	d.frame(FrameContextAdvisory, fmt.Sprintf(
		"Estimated context usage is %d of %d tokens (%d%%). Offer to draft a continuation prompt before quality degrades.",
		estimated, env.settings.ContextWindowTokens, percent))
}

// estimateTranscriptTokens counts transcript turns (one JSON line each) and
// applies the per-turn heuristic. Unreadable transcripts estimate to zero.
func estimateTranscriptTokens(path string) int {
	f, err := os.Open(path)
	if err != nil {
		return 0
	}
	defer f.Close()

	turns := 0
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		if len(scanner.Bytes()) > 0 {
			turns++
		}
	}
	return turns * tokensPerTurn
}

// estimateTokens tokenizes text with the cl100k_base encoding, falling back
// to the four-characters-per-token rule when the encoder is unavailable
// (first use downloads its vocabulary).
func estimateTokens(text string) int {
	if text == "" {
		return 0
	}
	enc, err := tiktoken.GetEncoding("cl100k_base")
	if err != nil {
		return len(text) / 4
	}
	return len(enc.Encode(text, nil, nil))
}
