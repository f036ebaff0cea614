package vpc

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	ec2types "github.com/aws/aws-sdk-go-v2/service/ec2/types"

	"github.com/pankaj-dahiya-devops/cloud-inventory/internal/collect"
	"github.com/pankaj-dahiya-devops/cloud-inventory/internal/models"
)

// amazonOwner is the Owner value of AWS-managed endpoint services, which
// are not inventoried.
const amazonOwner = "amazon"

func (r *run) describeEndpoints(ctx context.Context) {
	endpoints := collect.Gather(ctx, r.exec, passEndpoints, r.c.clients,
		func(ctx context.Context, region string, api API) ([]models.VPCEndpoint, error) {
			paginator := ec2.NewDescribeVpcEndpointsPaginator(api, &ec2.DescribeVpcEndpointsInput{})

			var out []models.VPCEndpoint
			for paginator.HasMorePages() {
				page, err := paginator.NextPage(ctx)
				if err != nil {
					return nil, fmt.Errorf("DescribeVpcEndpoints page: %w", err)
				}
				for _, raw := range page.VpcEndpoints {
					if raw.VpcEndpointId == nil {
						r.exec.Report(ctx, passEndpoints, region, collect.MissingField(ResourceEndpoint, "VpcEndpointId"))
						continue
					}
					if !r.accept(*raw.VpcEndpointId) {
						continue
					}
					ep, err := toEndpoint(raw, region)
					if err != nil {
						r.exec.Report(ctx, passEndpoints, region, err)
					}
					out = append(out, ep)
				}
			}
			return out, nil
		})

	r.mu.Lock()
	r.endpoints = endpoints
	r.mu.Unlock()
}

// toEndpoint converts an SDK endpoint. A policy that is not valid JSON is
// reported through the returned error; the endpoint is still usable with a
// nil PolicyDocument.
func toEndpoint(raw ec2types.VpcEndpoint, region string) (models.VPCEndpoint, error) {
	ep := models.VPCEndpoint{
		ID:      aws.ToString(raw.VpcEndpointId),
		Region:  region,
		VPCID:   aws.ToString(raw.VpcId),
		State:   string(raw.State),
		OwnerID: aws.ToString(raw.OwnerId),
	}
	if aws.ToString(raw.PolicyDocument) == "" {
		return ep, nil
	}
	var doc map[string]any
	if err := json.Unmarshal([]byte(*raw.PolicyDocument), &doc); err != nil {
		return ep, collect.Undecodable(ResourceEndpoint, ep.ID+" PolicyDocument", err)
	}
	ep.PolicyDocument = doc
	return ep, nil
}

func (r *run) describeEndpointServices(ctx context.Context) {
	services := collect.Gather(ctx, r.exec, passEndpointServices, r.c.clients,
		func(ctx context.Context, region string, api API) ([]models.VPCEndpointService, error) {
			in := &ec2.DescribeVpcEndpointServicesInput{}

			var out []models.VPCEndpointService
			for {
				page, err := api.DescribeVpcEndpointServices(ctx, in)
				if err != nil {
					return nil, fmt.Errorf("DescribeVpcEndpointServices page: %w", err)
				}
				for _, raw := range page.ServiceDetails {
					if aws.ToString(raw.Owner) == amazonOwner {
						continue
					}
					if raw.ServiceId == nil {
						r.exec.Report(ctx, passEndpointServices, region, collect.MissingField(ResourceEndpointService, "ServiceId"))
						continue
					}
					if !r.accept(*raw.ServiceId) {
						continue
					}
					out = append(out, models.VPCEndpointService{
						ID:                aws.ToString(raw.ServiceId),
						Region:            region,
						ServiceName:       aws.ToString(raw.ServiceName),
						OwnerID:           aws.ToString(raw.Owner),
						AllowedPrincipals: []string{},
					})
				}
				if aws.ToString(page.NextToken) == "" || aws.ToString(page.NextToken) == aws.ToString(in.NextToken) {
					return out, nil
				}
				in.NextToken = page.NextToken
			}
		})

	r.mu.Lock()
	r.services = services
	r.mu.Unlock()
}

// describeEndpointServicePermissions lists the principals allowed to connect
// to each collected endpoint service.
func (r *run) describeEndpointServicePermissions(ctx context.Context) {
	collect.Sequential(ctx, r.exec, passPermissions, r.c.clients, len(r.services),
		func(i int) string { return r.services[i].Region },
		func(ctx context.Context, api API, i int) error {
			id := r.services[i].ID
			in := &ec2.DescribeVpcEndpointServicePermissionsInput{ServiceId: aws.String(id)}

			var principals []string
			for {
				page, err := api.DescribeVpcEndpointServicePermissions(ctx, in)
				if err != nil {
					return collect.NotFound(fmt.Errorf("DescribeVpcEndpointServicePermissions %s: %w", id, err), codeEndpointServiceNotFound)
				}
				for _, p := range page.AllowedPrincipals {
					if p.Principal != nil {
						principals = append(principals, *p.Principal)
					}
				}
				if aws.ToString(page.NextToken) == "" || aws.ToString(page.NextToken) == aws.ToString(in.NextToken) {
					break
				}
				in.NextToken = page.NextToken
			}

			r.mu.Lock()
			r.services[i].AllowedPrincipals = append(r.services[i].AllowedPrincipals, principals...)
			r.mu.Unlock()
			return nil
		})
}
