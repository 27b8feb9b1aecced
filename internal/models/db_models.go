package models

import (
	"time"

	"github.com/uptrace/bun"
)

type UserDB struct {
	bun.BaseModel `bun:"table:users,alias:u"`

	ID       string  `bun:"id,pk" json:"id"`
	Email    string  `bun:"email,notnull,unique" json:"email"`
	Provider string  `bun:"provider,notnull" json:"provider"`
	GoogleID *string `bun:"google_id,unique,nullzero" json:"google_id,omitempty"`
	AppleID  *string `bun:"apple_id,unique,nullzero" json:"apple_id,omitempty"`
	Name     *string `bun:"name" json:"name,omitempty"`
	Picture  *string `bun:"picture" json:"picture,omitempty"`

	Onboarded     bool    `bun:"onboarded,notnull,default:false" json:"onboarded"`
	Age           *int    `bun:"age" json:"age,omitempty"`
	Gender        *string `bun:"gender" json:"gender,omitempty"`
	AlphaLevel    *string `bun:"alpha_level" json:"alpha_level,omitempty"`
	Notifications *bool   `bun:"notifications" json:"notifications,omitempty"`

	StripeCustomerID     *string    `bun:"stripe_customer_id" json:"stripe_customer_id,omitempty"`
	StripeSubscriptionID *string    `bun:"stripe_subscription_id,nullzero" json:"stripe_subscription_id,omitempty"`
	Subscribed           bool       `bun:"subscribed,notnull,default:false" json:"subscribed"`
	SubscriptionPlan     *string    `bun:"subscription_plan" json:"subscription_plan,omitempty"`
	SubscriptionStatus   *string    `bun:"subscription_status" json:"subscription_status,omitempty"`
	SubscriptionEndsAt   *time.Time `bun:"subscription_ends_at" json:"subscription_ends_at,omitempty"`
	SubscriptionEventAt  *time.Time `bun:"subscription_event_at" json:"subscription_event_at,omitempty"`

	CreatedAt time.Time `bun:"created_at,notnull,default:current_timestamp" json:"created_at"`
	UpdatedAt time.Time `bun:"updated_at,notnull,default:current_timestamp" json:"updated_at"`
}

func (u *UserDB) ToUser() *User {
	return &User{
		ID:                   u.ID,
		Email:                u.Email,
		Provider:             u.Provider,
		GoogleID:             u.GoogleID,
		AppleID:              u.AppleID,
		Name:                 u.Name,
		Picture:              u.Picture,
		Onboarded:            u.Onboarded,
		Age:                  u.Age,
		Gender:               u.Gender,
		AlphaLevel:           u.AlphaLevel,
		Notifications:        u.Notifications,
		StripeCustomerID:     u.StripeCustomerID,
		StripeSubscriptionID: u.StripeSubscriptionID,
		Subscribed:           u.Subscribed,
		SubscriptionPlan:     u.SubscriptionPlan,
		SubscriptionStatus:   u.SubscriptionStatus,
		SubscriptionEndsAt:   u.SubscriptionEndsAt,
		SubscriptionEventAt:  u.SubscriptionEventAt,
		CreatedAt:            u.CreatedAt,
		UpdatedAt:            u.UpdatedAt,
	}
}

func UserFromDomain(u *User) *UserDB {
	return &UserDB{
		ID:                   u.ID,
		Email:                u.Email,
		Provider:             u.Provider,
		GoogleID:             u.GoogleID,
		AppleID:              u.AppleID,
		Name:                 u.Name,
		Picture:              u.Picture,
		Onboarded:            u.Onboarded,
		Age:                  u.Age,
		Gender:               u.Gender,
		AlphaLevel:           u.AlphaLevel,
		Notifications:        u.Notifications,
		StripeCustomerID:     u.StripeCustomerID,
		StripeSubscriptionID: u.StripeSubscriptionID,
		Subscribed:           u.Subscribed,
		SubscriptionPlan:     u.SubscriptionPlan,
		SubscriptionStatus:   u.SubscriptionStatus,
		SubscriptionEndsAt:   u.SubscriptionEndsAt,
		SubscriptionEventAt:  u.SubscriptionEventAt,
		CreatedAt:            u.CreatedAt,
		UpdatedAt:            u.UpdatedAt,
	}
}

type VerificationTokenDB struct {
	bun.BaseModel `bun:"table:verification_tokens,alias:vt"`

	Identifier string    `bun:"identifier,notnull" json:"identifier"`
	Token      string    `bun:"token,notnull" json:"token"`
	Expires    time.Time `bun:"expires,notnull" json:"expires"`
}

type ConversationDB struct {
	bun.BaseModel `bun:"table:conversations,alias:c"`

	ID        string       `bun:"id,pk" json:"id"`
	UserID    string       `bun:"user_id,notnull" json:"user_id"`
	Title     string       `bun:"title,notnull" json:"title"`
	Messages  []*MessageDB `bun:"rel:has-many,join:id=conversation_id" json:"messages,omitempty"`
	CreatedAt time.Time    `bun:"created_at,notnull,default:current_timestamp" json:"created_at"`
	UpdatedAt time.Time    `bun:"updated_at,notnull,default:current_timestamp" json:"updated_at"`
}

func (c *ConversationDB) ToConversation() *Conversation {
	conv := &Conversation{
		ID:        c.ID,
		UserID:    c.UserID,
		Title:     c.Title,
		CreatedAt: c.CreatedAt,
		UpdatedAt: c.UpdatedAt,
	}
	for _, m := range c.Messages {
		conv.Messages = append(conv.Messages, *m.ToMessage())
	}
	return conv
}

type MessageDB struct {
	bun.BaseModel `bun:"table:messages,alias:m"`

	ID               string    `bun:"id,pk" json:"id"`
	ConversationID   string    `bun:"conversation_id,notnull" json:"conversation_id"`
	Role             string    `bun:"role,notnull" json:"role"`
	Content          string    `bun:"content,notnull" json:"content"`
	Model            *string   `bun:"model" json:"model,omitempty"`
	PromptTokens     int64     `bun:"prompt_tokens,notnull,default:0" json:"prompt_tokens"`
	CompletionTokens int64     `bun:"completion_tokens,notnull,default:0" json:"completion_tokens"`
	CreatedAt        time.Time `bun:"created_at,notnull,default:current_timestamp" json:"created_at"`
}

func (m *MessageDB) ToMessage() *Message {
	return &Message{
		ID:               m.ID,
		ConversationID:   m.ConversationID,
		Role:             m.Role,
		Content:          m.Content,
		Model:            m.Model,
		PromptTokens:     m.PromptTokens,
		CompletionTokens: m.CompletionTokens,
		CreatedAt:        m.CreatedAt,
	}
}

func MessageFromDomain(conversationID string, m *Message) *MessageDB {
	return &MessageDB{
		ID:               m.ID,
		ConversationID:   conversationID,
		Role:             m.Role,
		Content:          m.Content,
		Model:            m.Model,
		PromptTokens:     m.PromptTokens,
		CompletionTokens: m.CompletionTokens,
		CreatedAt:        m.CreatedAt,
	}
}

type UsageEventDB struct {
	bun.BaseModel `bun:"table:usage_events,alias:ue"`

	ID               string    `bun:"id,pk" json:"id"`
	UserID           string    `bun:"user_id,notnull" json:"user_id"`
	Model            string    `bun:"model,notnull" json:"model"`
	PromptTokens     int64     `bun:"prompt_tokens,notnull,default:0" json:"prompt_tokens"`
	CompletionTokens int64     `bun:"completion_tokens,notnull,default:0" json:"completion_tokens"`
	CreatedAt        time.Time `bun:"created_at,notnull,default:current_timestamp" json:"created_at"`
}
