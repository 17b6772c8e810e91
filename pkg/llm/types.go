package llm

import "time"

// Message is one turn in an OpenAI chat-completions request.
type Message struct {
	Role    string `json:"role"` // "system", "user", "assistant"
	Content string `json:"content"`
}

// ChatRequest is the OpenAI chat-completions wire request. Any endpoint
// speaking the same wire format (self-hosted vLLM, Ollama's OpenAI-
// compatible route, OpenAI itself) accepts this unmodified.
type ChatRequest struct {
	Model       string    `json:"model"`
	Messages    []Message `json:"messages"`
	Temperature float64   `json:"temperature,omitempty"`
	MaxTokens   int       `json:"max_tokens,omitempty"`
}

// ChatResponse is the OpenAI chat-completions wire response, trimmed to
// the fields the consensus engine reads.
type ChatResponse struct {
	ID      string `json:"id"`
	Model   string `json:"model"`
	Choices []struct {
		Message      Message `json:"message"`
		FinishReason string  `json:"finish_reason"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
		TotalTokens      int `json:"total_tokens"`
	} `json:"usage"`
}

// HealthStatus reports the outcome of a lightweight ping request.
type HealthStatus struct {
	Healthy      bool          `json:"healthy"`
	Latency      time.Duration `json:"latency_ms"`
	ErrorMessage string        `json:"error_message,omitempty"`
	CheckedAt    time.Time     `json:"checked_at"`
}
