package models

import "time"

const (
	FeatureReadActivationToken = "read:activation_token"
	FeatureCreateSession       = "create:session"
	FeatureReadSession         = "read:session"
	FeatureUpdateUser          = "update:user"
	FeatureCreateUser          = "create:user"
	FeatureReadUser            = "read:user"
	FeatureReadUserSelf        = "read:user:self"
)

type User struct {
	ID           string
	Username     string
	Email        string
	PasswordHash string
	Features     []string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

func (u User) HasFeature(feature string) bool {
	for _, f := range u.Features {
		if f == feature {
			return true
		}
	}
	return false
}

// Fields exposes every column by its wire name. Output filtering decides what leaves the process.
func (u User) Fields() map[string]any {
	return map[string]any{
		"id":            u.ID,
		"username":      u.Username,
		"email":         u.Email,
		"password_hash": u.PasswordHash,
		"features":      u.Features,
		"created_at":    u.CreatedAt,
		"updated_at":    u.UpdatedAt,
	}
}
