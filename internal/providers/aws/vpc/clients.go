package vpc

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
)

// API is the narrow EC2 interface the network collector uses. Listing calls
// with SDK paginators are embedded as their paginator client interfaces.
type API interface {
	ec2.DescribeVpcsAPIClient
	ec2.DescribeVpcPeeringConnectionsAPIClient
	ec2.DescribeVpcEndpointsAPIClient
	ec2.DescribeRouteTablesAPIClient
	ec2.DescribeFlowLogsAPIClient
	DescribeVpcEndpointServices(ctx context.Context, params *ec2.DescribeVpcEndpointServicesInput, optFns ...func(*ec2.Options)) (*ec2.DescribeVpcEndpointServicesOutput, error)
	DescribeVpcEndpointServicePermissions(ctx context.Context, params *ec2.DescribeVpcEndpointServicePermissionsInput, optFns ...func(*ec2.Options)) (*ec2.DescribeVpcEndpointServicePermissionsOutput, error)
}

// NewAPI is the production client factory for one regional config.
func NewAPI(cfg aws.Config) API {
	return ec2.NewFromConfig(cfg)
}
