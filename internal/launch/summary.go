package launch

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
)

// UsageStats holds token usage extracted from a stream-json log.
type UsageStats struct {
	InputTokens  int
	OutputTokens int
	Model        string
}

// streamEvent is used for initial type dispatch.
type streamEvent struct {
	Type string `json:"type"`
}

// resultEvent extracts usage from result events.
type resultEvent struct {
	Usage struct {
		InputTokens  int `json:"input_tokens"`
		OutputTokens int `json:"output_tokens"`
	} `json:"usage"`
}

// assistantEvent extracts the model from assistant events.
type assistantEvent struct {
	Message struct {
		Model string `json:"model"`
	} `json:"message"`
}

// ParseUsage scans stream-json lines and extracts token usage and
// model information. It sums across multiple result events and
// ignores anything that is not a JSON object line.
func ParseUsage(content string) UsageStats {
	var stats UsageStats

	for _, line := range strings.Split(content, "\n") {
		line = strings.TrimSpace(line)
		if len(line) == 0 || line[0] != '{' {
			continue
		}

		var evt streamEvent
		if err := json.Unmarshal([]byte(line), &evt); err != nil {
			continue
		}

		switch evt.Type {
		case "result":
			var r resultEvent
			if err := json.Unmarshal([]byte(line), &r); err == nil {
				stats.InputTokens += r.Usage.InputTokens
				stats.OutputTokens += r.Usage.OutputTokens
			}
		case "assistant":
			var a assistantEvent
			if err := json.Unmarshal([]byte(line), &a); err == nil && a.Message.Model != "" {
				stats.Model = a.Message.Model
			}
		}
	}

	return stats
}

// Summary reads a launch log and extracts its usage stats.
func Summary(logPath string) (UsageStats, error) {
	data, err := os.ReadFile(logPath)
	if err != nil {
		return UsageStats{}, fmt.Errorf("launch: read log: %w", err)
	}
	return ParseUsage(string(data)), nil
}
