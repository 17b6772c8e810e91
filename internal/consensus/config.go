package consensus

import "strings"

// ModelEndpoint is one entry in the consensus model table (§4.11): a
// named OpenAI-compatible endpoint with a weight applied during
// aggregation. Models absent from an explicit weight table default to 1.0.
type ModelEndpoint struct {
	Name    string
	BaseURL string
	Weight  float64
}

// defaultWeight is applied to any configured model the deployment hasn't
// given an explicit weight.
const defaultWeight = 1.0

// ParseModels parses config.Config's ConsensusModels string: comma-
// separated "name=url" pairs, e.g.
// "gpt-4o=https://api.openai.com/v1,local-r1=http://localhost:11434/v1".
func ParseModels(raw string) []ModelEndpoint {
	var out []ModelEndpoint
	for _, pair := range strings.Split(raw, ",") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		name, url, ok := strings.Cut(pair, "=")
		if !ok || name == "" || url == "" {
			continue
		}
		out = append(out, ModelEndpoint{Name: name, BaseURL: url, Weight: defaultWeight})
	}
	return out
}
