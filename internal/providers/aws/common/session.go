package common

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/aws"
)

// Session is a resolved AWS identity: the credentials chain for one profile,
// the account it belongs to, and the home region used for global calls.
type Session struct {
	// Profile is the shared-config profile name, or "default".
	Profile string

	// AccountID is the account the credentials resolve to (via STS).
	AccountID string

	// HomeRegion is the profile's configured region, us-east-1 if unset.
	HomeRegion string

	// Config is the loaded SDK configuration for HomeRegion.
	Config aws.Config
}

// SessionLoader establishes sessions and maps them onto regions. It is the
// only place credentials are handled; collectors receive ready clients.
type SessionLoader interface {
	// Load returns a Session for the named profile. An empty name loads the
	// default credential chain.
	Load(ctx context.Context, profile string) (*Session, error)

	// ActiveRegions returns the regions enabled for the session's account.
	ActiveRegions(ctx context.Context, s *Session) ([]string, error)

	// ConfigForRegion returns a copy of the session config bound to region.
	ConfigForRegion(s *Session, region string) aws.Config
}
