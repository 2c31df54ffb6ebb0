// Package authorization implements capability-based access control. An actor
// holds a set of feature strings; a declarative table maps each feature to the
// fields it lets the actor set and see.
package authorization

import (
	"net/http"

	"userhub/api/internal/apperr"
	"userhub/api/internal/models"
)

const LocationFeatureNotFound = "MODEL:AUTHORIZATION:CAN_REQUEST:FEATURE_NOT_FOUND"

var anonymousFeatures = []string{
	models.FeatureReadActivationToken,
	models.FeatureCreateSession,
	models.FeatureCreateUser,
}

type Actor struct {
	// ID is empty for anonymous actors.
	ID       string
	Features []string
}

func Anonymous() Actor {
	features := make([]string, len(anonymousFeatures))
	copy(features, anonymousFeatures)
	return Actor{Features: features}
}

func FromUser(u models.User) Actor {
	return Actor{ID: u.ID, Features: u.Features}
}

func (a Actor) IsAnonymous() bool { return a.ID == "" }

// Record is anything that can be projected through filterOutput.
type Record interface {
	Fields() map[string]any
}

type FieldRule struct {
	Writable []string
	Readable []string
	// SelfOnly restricts Readable to records owned by the actor; others fall back to Fallback.
	SelfOnly bool
	Fallback string
}

var rules = map[string]FieldRule{
	models.FeatureCreateUser: {
		Writable: []string{"username", "email", "password"},
	},
	models.FeatureReadUser: {
		Readable: []string{"id", "username", "features", "created_at", "updated_at"},
	},
	models.FeatureReadUserSelf: {
		Readable: []string{"id", "username", "email", "features", "created_at", "updated_at"},
		SelfOnly: true,
		Fallback: models.FeatureReadUser,
	},
	models.FeatureUpdateUser: {
		Writable: []string{"username", "email", "password"},
	},
	models.FeatureCreateSession: {
		Writable: []string{"email", "password"},
	},
	models.FeatureReadSession: {
		Readable: []string{"id", "expires_at", "created_at", "updated_at"},
	},
	models.FeatureReadActivationToken: {
		Writable: []string{"token_id"},
		Readable: []string{"id", "user_id", "used", "expires_at", "created_at", "updated_at"},
	},
}

// Can reports whether the actor holds capability.
func Can(actor Actor, capability string) bool {
	for _, f := range actor.Features {
		if f == capability {
			return true
		}
	}
	return false
}

// Authorize fails with a not-found-shaped ForbiddenError when the actor lacks capability.
func Authorize(actor Actor, capability string) error {
	if Can(actor, capability) {
		return nil
	}
	return apperr.Forbidden(
		"The requested resource was not found.",
		LocationFeatureNotFound,
		apperr.WithStatus(http.StatusNotFound),
		apperr.WithAction("Check that the address and the required feature are correct."),
		apperr.WithContext(map[string]any{"feature": capability, "actor_id": actor.ID}),
	)
}

// FilterInput keeps only the fields capability lets the actor set. An actor
// without the capability can set nothing.
func FilterInput(actor Actor, capability string, raw map[string]any) map[string]any {
	out := map[string]any{}
	if !Can(actor, capability) {
		return out
	}
	for _, key := range rules[capability].Writable {
		if v, ok := raw[key]; ok {
			out[key] = v
		}
	}
	return out
}

// FilterOutput projects record onto the fields capability exposes to actor.
// Fields outside the table, such as password_hash, never appear.
//
// Unlike FilterInput it does not check Can: capability names a view, and the
// caller picks it after authorizing the operation itself. An anonymous actor
// creating a user still gets the read:user view of the result.
func FilterOutput(actor Actor, capability string, record Record) map[string]any {
	fields := record.Fields()
	rule, ok := rules[capability]
	if !ok {
		return map[string]any{}
	}
	if rule.SelfOnly && (actor.ID == "" || fields["id"] != actor.ID) {
		return FilterOutput(actor, rule.Fallback, record)
	}

	out := make(map[string]any, len(rule.Readable))
	for _, key := range rule.Readable {
		if v, ok := fields[key]; ok {
			out[key] = v
		}
	}
	return out
}
