package models

import "time"

type Conversation struct {
	ID        string    `json:"id"`
	UserID    string    `json:"-"`
	Title     string    `json:"title"`
	Messages  []Message `json:"messages,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

type Message struct {
	ID               string    `json:"id"`
	ConversationID   string    `json:"-"`
	Role             string    `json:"role"`
	Content          string    `json:"content"`
	Model            *string   `json:"model,omitempty"`
	PromptTokens     int64     `json:"promptTokens,omitempty"`
	CompletionTokens int64     `json:"completionTokens,omitempty"`
	CreatedAt        time.Time `json:"createdAt"`
}

type UsageEvent struct {
	ID               string
	UserID           string
	Model            string
	PromptTokens     int64
	CompletionTokens int64
	CreatedAt        time.Time
}

// UsageSummary aggregates a user's recorded usage events.
type UsageSummary struct {
	TotalPromptTokens     int64        `json:"totalPromptTokens"`
	TotalCompletionTokens int64        `json:"totalCompletionTokens"`
	TotalMessages         int64        `json:"totalMessages"`
	ByModel               []ModelUsage `json:"byModel"`
}

type ModelUsage struct {
	Model            string `json:"model"`
	PromptTokens     int64  `json:"promptTokens"`
	CompletionTokens int64  `json:"completionTokens"`
	Messages         int64  `json:"messages"`
}
