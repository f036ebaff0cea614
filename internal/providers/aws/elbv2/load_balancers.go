package elbv2

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	elbv2svc "github.com/aws/aws-sdk-go-v2/service/elasticloadbalancingv2"
	elbv2types "github.com/aws/aws-sdk-go-v2/service/elasticloadbalancingv2/types"

	"github.com/pankaj-dahiya-devops/cloud-inventory/internal/collect"
	"github.com/pankaj-dahiya-devops/cloud-inventory/internal/models"
	"github.com/pankaj-dahiya-devops/cloud-inventory/internal/scope"
)

// describeLoadBalancers pages through every load balancer of every region
// and keeps the ones in scope.
func (r *run) describeLoadBalancers(ctx context.Context) {
	lbs := collect.Gather(ctx, r.exec, passLoadBalancers, r.c.clients,
		func(ctx context.Context, region string, api API) ([]models.LoadBalancer, error) {
			paginator := elbv2svc.NewDescribeLoadBalancersPaginator(api, &elbv2svc.DescribeLoadBalancersInput{})

			var out []models.LoadBalancer
			for paginator.HasMorePages() {
				page, err := paginator.NextPage(ctx)
				if err != nil {
					return nil, fmt.Errorf("DescribeLoadBalancers page: %w", err)
				}
				for _, raw := range page.LoadBalancers {
					lb, err := toLoadBalancer(raw, region)
					if err != nil {
						r.exec.Report(ctx, passLoadBalancers, region, err)
						continue
					}
					if !scope.Accept(r.c.filter, lb.ARN, r.c.resources) {
						continue
					}
					out = append(out, lb)
				}
			}
			return out, nil
		})

	r.mu.Lock()
	r.lbs = lbs
	r.mu.Unlock()
}

// toLoadBalancer converts an SDK load balancer. Optional fields are only
// set when the response carries them.
func toLoadBalancer(raw elbv2types.LoadBalancer, region string) (models.LoadBalancer, error) {
	if raw.LoadBalancerArn == nil {
		return models.LoadBalancer{}, collect.MissingField(ResourceLoadBalancer, "LoadBalancerArn")
	}
	if raw.LoadBalancerName == nil {
		return models.LoadBalancer{}, collect.MissingField(ResourceLoadBalancer, "LoadBalancerName")
	}

	lb := models.LoadBalancer{
		ARN:       aws.ToString(raw.LoadBalancerArn),
		Name:      aws.ToString(raw.LoadBalancerName),
		Region:    region,
		Type:      string(raw.Type),
		DNSName:   raw.DNSName,
		Listeners: []models.Listener{},
	}
	if raw.Scheme != "" {
		lb.Scheme = aws.String(string(raw.Scheme))
	}
	return lb, nil
}
