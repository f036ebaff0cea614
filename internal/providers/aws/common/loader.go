package common

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsmiddleware "github.com/aws/aws-sdk-go-v2/aws/middleware"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	"github.com/aws/aws-sdk-go-v2/service/sts"
	"github.com/aws/smithy-go/middleware"
)

// fallbackRegion is used when a profile has no region configured.
const fallbackRegion = "us-east-1"

type configLoaderFunc func(ctx context.Context, optFns ...func(*awsconfig.LoadOptions) error) (aws.Config, error)

// DefaultSessionLoader is the production SessionLoader. It reads the
// standard shared config and credentials files through the SDK.
type DefaultSessionLoader struct {
	factory     identityClientFactory
	loadConfig  configLoaderFunc
	endpointURL string
	logger      *slog.Logger
}

// LoaderOption configures a DefaultSessionLoader.
type LoaderOption func(*DefaultSessionLoader)

// WithEndpointURL points every client at a single endpoint, e.g. LocalStack.
func WithEndpointURL(url string) LoaderOption {
	return func(l *DefaultSessionLoader) { l.endpointURL = url }
}

// WithAPICallLogging logs the operation name of every SDK call at debug
// level on logger.
func WithAPICallLogging(logger *slog.Logger) LoaderOption {
	return func(l *DefaultSessionLoader) { l.logger = logger }
}

// NewDefaultSessionLoader returns a loader backed by the real SDK.
func NewDefaultSessionLoader(opts ...LoaderOption) *DefaultSessionLoader {
	l := &DefaultSessionLoader{
		factory:    newIdentityClients,
		loadConfig: awsconfig.LoadDefaultConfig,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Load implements SessionLoader.
func (l *DefaultSessionLoader) Load(ctx context.Context, profile string) (*Session, error) {
	var opts []func(*awsconfig.LoadOptions) error
	if profile != "" {
		opts = append(opts, awsconfig.WithSharedConfigProfile(profile))
	}
	if l.endpointURL != "" {
		opts = append(opts, awsconfig.WithBaseEndpoint(l.endpointURL))
	}

	cfg, err := l.loadConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load AWS profile %q: %w", profileDisplayName(profile), err)
	}
	if cfg.Region == "" {
		cfg.Region = fallbackRegion
	}
	if l.logger != nil {
		cfg.APIOptions = append(cfg.APIOptions, apiCallLogger(l.logger))
	}

	accountID, err := resolveAccountID(ctx, l.factory(cfg).STS)
	if err != nil {
		return nil, fmt.Errorf("resolve account ID for profile %q: %w", profileDisplayName(profile), err)
	}

	return &Session{
		Profile:    profileDisplayName(profile),
		AccountID:  accountID,
		HomeRegion: cfg.Region,
		Config:     cfg,
	}, nil
}

// ActiveRegions implements SessionLoader. DescribeRegions without
// AllRegions returns only the regions the account has opted into.
func (l *DefaultSessionLoader) ActiveRegions(ctx context.Context, s *Session) ([]string, error) {
	out, err := l.factory(s.Config).EC2.DescribeRegions(ctx, &ec2.DescribeRegionsInput{
		AllRegions: aws.Bool(false),
	})
	if err != nil {
		return nil, fmt.Errorf("describe regions for profile %q: %w", s.Profile, err)
	}

	regions := make([]string, 0, len(out.Regions))
	for _, r := range out.Regions {
		if r.RegionName != nil {
			regions = append(regions, *r.RegionName)
		}
	}
	sort.Strings(regions)
	return regions, nil
}

// ConfigForRegion implements SessionLoader.
func (l *DefaultSessionLoader) ConfigForRegion(s *Session, region string) aws.Config {
	cfg := s.Config.Copy()
	cfg.Region = region
	return cfg
}

// SelectRegions narrows active to the requested regions, keeping the
// requested order. An empty request selects every active region. Requested
// regions that are not active are returned separately so the caller can
// report them.
func SelectRegions(requested, active []string) (selected, unknown []string) {
	if len(requested) == 0 {
		return append([]string(nil), active...), nil
	}
	enabled := make(map[string]bool, len(active))
	for _, r := range active {
		enabled[r] = true
	}
	seen := make(map[string]bool, len(requested))
	for _, r := range requested {
		if seen[r] {
			continue
		}
		seen[r] = true
		if enabled[r] {
			selected = append(selected, r)
		} else {
			unknown = append(unknown, r)
		}
	}
	return selected, unknown
}

func profileDisplayName(profile string) string {
	if profile == "" {
		return "default"
	}
	return profile
}

func resolveAccountID(ctx context.Context, client STSClient) (string, error) {
	out, err := client.GetCallerIdentity(ctx, &sts.GetCallerIdentityInput{})
	if err != nil {
		return "", fmt.Errorf("STS GetCallerIdentity: %w", err)
	}
	if out.Account == nil {
		return "", fmt.Errorf("STS GetCallerIdentity returned nil account")
	}
	return aws.ToString(out.Account), nil
}

func apiCallLogger(logger *slog.Logger) func(*middleware.Stack) error {
	return func(stack *middleware.Stack) error {
		return stack.Initialize.Add(middleware.InitializeMiddlewareFunc("InventoryCallLogger", func(
			ctx context.Context, in middleware.InitializeInput, next middleware.InitializeHandler,
		) (middleware.InitializeOutput, middleware.Metadata, error) {
			logger.DebugContext(ctx, "aws api call",
				"service", awsmiddleware.GetServiceID(ctx),
				"operation", middleware.GetOperationName(ctx),
			)
			return next.HandleInitialize(ctx, in)
		}), middleware.Before)
	}
}
