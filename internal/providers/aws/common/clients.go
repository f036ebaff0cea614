package common

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	"github.com/aws/aws-sdk-go-v2/service/sts"
)

// STSClient is the subset of STS used to resolve the account id.
type STSClient interface {
	GetCallerIdentity(ctx context.Context, params *sts.GetCallerIdentityInput, optFns ...func(*sts.Options)) (*sts.GetCallerIdentityOutput, error)
}

// EC2RegionClient is the subset of EC2 used for region discovery.
type EC2RegionClient interface {
	DescribeRegions(ctx context.Context, params *ec2.DescribeRegionsInput, optFns ...func(*ec2.Options)) (*ec2.DescribeRegionsOutput, error)
}

// identityClients bundles the clients the loader itself needs.
type identityClients struct {
	STS STSClient
	EC2 EC2RegionClient
}

// identityClientFactory builds identityClients from a config.
// Tests replace it to avoid real SDK clients.
type identityClientFactory func(cfg aws.Config) *identityClients

func newIdentityClients(cfg aws.Config) *identityClients {
	return &identityClients{
		STS: sts.NewFromConfig(cfg),
		EC2: ec2.NewFromConfig(cfg),
	}
}
