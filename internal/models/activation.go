package models

import "time"

type ActivationState string

const (
	ActivationPending  ActivationState = "pending"
	ActivationRedeemed ActivationState = "redeemed"
	ActivationExpired  ActivationState = "expired"
)

type ActivationToken struct {
	ID        string
	UserID    string
	Used      bool
	ExpiresAt time.Time
	CreatedAt time.Time
	UpdatedAt time.Time
}

// State derives the lifecycle state; expired is never stored.
func (t ActivationToken) State(now time.Time) ActivationState {
	switch {
	case t.Used:
		return ActivationRedeemed
	case !now.Before(t.ExpiresAt):
		return ActivationExpired
	default:
		return ActivationPending
	}
}

func (t ActivationToken) Redeemable(now time.Time) bool {
	return t.State(now) == ActivationPending
}

func (t ActivationToken) Fields() map[string]any {
	return map[string]any{
		"id":         t.ID,
		"user_id":    t.UserID,
		"used":       t.Used,
		"expires_at": t.ExpiresAt,
		"created_at": t.CreatedAt,
		"updated_at": t.UpdatedAt,
	}
}
