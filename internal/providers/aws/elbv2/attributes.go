package elbv2

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	elbv2svc "github.com/aws/aws-sdk-go-v2/service/elasticloadbalancingv2"

	"github.com/pankaj-dahiya-devops/cloud-inventory/internal/collect"
	"github.com/pankaj-dahiya-devops/cloud-inventory/internal/models"
)

// attributeFields maps load balancer attribute keys onto model fields.
// Keys not listed here are ignored.
var attributeFields = map[string]func(lb *models.LoadBalancer, v *string){
	"routing.http.desync_mitigation_mode":             func(lb *models.LoadBalancer, v *string) { lb.DesyncMitigationMode = v },
	"deletion_protection.enabled":                     func(lb *models.LoadBalancer, v *string) { lb.DeletionProtection = v },
	"access_logs.s3.enabled":                          func(lb *models.LoadBalancer, v *string) { lb.AccessLogs = v },
	"routing.http.drop_invalid_header_fields.enabled": func(lb *models.LoadBalancer, v *string) { lb.DropInvalidHeaderFields = v },
}

type attributeBatch struct {
	lb    int
	attrs map[string]string
}

// describeAttributes enriches every accepted load balancer with its
// recognised attributes. It never adds or removes load balancers.
func (r *run) describeAttributes(ctx context.Context) {
	batches := collect.Gather(ctx, r.exec, passAttributes, r.c.clients,
		func(ctx context.Context, region string, api API) ([]attributeBatch, error) {
			var out []attributeBatch
			for _, ref := range r.inRegion(region) {
				resp, err := api.DescribeLoadBalancerAttributes(ctx, &elbv2svc.DescribeLoadBalancerAttributesInput{
					LoadBalancerArn: aws.String(ref.arn),
				})
				if err != nil {
					err = collect.NotFound(fmt.Errorf("DescribeLoadBalancerAttributes %s: %w", ref.arn, err), codeLoadBalancerNotFound)
					if collect.IsNotFound(err) {
						r.exec.Report(ctx, passAttributes, region, err)
						continue
					}
					return nil, err
				}
				attrs := make(map[string]string)
				for _, a := range resp.Attributes {
					if a.Key == nil || a.Value == nil {
						continue
					}
					if _, known := attributeFields[*a.Key]; known {
						attrs[*a.Key] = *a.Value
					}
				}
				out = append(out, attributeBatch{lb: ref.index, attrs: attrs})
			}
			return out, nil
		})

	r.mu.Lock()
	defer r.mu.Unlock()
	for _, b := range batches {
		for key, value := range b.attrs {
			attributeFields[key](&r.lbs[b.lb], aws.String(value))
		}
	}
}
