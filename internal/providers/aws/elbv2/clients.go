package elbv2

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/aws"
	elbv2svc "github.com/aws/aws-sdk-go-v2/service/elasticloadbalancingv2"
)

// API is the narrow Elastic Load Balancing v2 interface the collector uses.
// It embeds the paginator client interfaces so SDK paginators can drive it.
type API interface {
	elbv2svc.DescribeLoadBalancersAPIClient
	elbv2svc.DescribeListenersAPIClient
	DescribeRules(ctx context.Context, params *elbv2svc.DescribeRulesInput, optFns ...func(*elbv2svc.Options)) (*elbv2svc.DescribeRulesOutput, error)
	DescribeLoadBalancerAttributes(ctx context.Context, params *elbv2svc.DescribeLoadBalancerAttributesInput, optFns ...func(*elbv2svc.Options)) (*elbv2svc.DescribeLoadBalancerAttributesOutput, error)
}

// NewAPI is the production client factory for one regional config.
func NewAPI(cfg aws.Config) API {
	return elbv2svc.NewFromConfig(cfg)
}
