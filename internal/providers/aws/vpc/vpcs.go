package vpc

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	ec2types "github.com/aws/aws-sdk-go-v2/service/ec2/types"

	"github.com/pankaj-dahiya-devops/cloud-inventory/internal/collect"
	"github.com/pankaj-dahiya-devops/cloud-inventory/internal/models"
)

func (r *run) describeVPCs(ctx context.Context) {
	vpcs := collect.Gather(ctx, r.exec, passVPCs, r.c.clients,
		func(ctx context.Context, region string, api API) ([]models.VPC, error) {
			paginator := ec2.NewDescribeVpcsPaginator(api, &ec2.DescribeVpcsInput{})

			var out []models.VPC
			for paginator.HasMorePages() {
				page, err := paginator.NextPage(ctx)
				if err != nil {
					return nil, fmt.Errorf("DescribeVpcs page: %w", err)
				}
				for _, raw := range page.Vpcs {
					if raw.VpcId == nil {
						r.exec.Report(ctx, passVPCs, region, collect.MissingField(ResourceVPC, "VpcId"))
						continue
					}
					if !r.accept(*raw.VpcId) {
						continue
					}
					out = append(out, toVPC(raw, region))
				}
			}
			return out, nil
		})

	r.mu.Lock()
	r.vpcs = vpcs
	r.mu.Unlock()
}

func toVPC(raw ec2types.Vpc, region string) models.VPC {
	return models.VPC{
		ID:        aws.ToString(raw.VpcId),
		Region:    region,
		Default:   aws.ToBool(raw.IsDefault),
		CIDRBlock: aws.ToString(raw.CidrBlock),
	}
}

// describeFlowLogs sets FlowLog on every collected VPC. A VPC whose lookup
// fails keeps a nil FlowLog so the consumer can tell "none" from "unknown".
func (r *run) describeFlowLogs(ctx context.Context) {
	collect.Sequential(ctx, r.exec, passFlowLogs, r.c.clients, len(r.vpcs),
		func(i int) string { return r.vpcs[i].Region },
		func(ctx context.Context, api API, i int) error {
			id := r.vpcs[i].ID
			paginator := ec2.NewDescribeFlowLogsPaginator(api, &ec2.DescribeFlowLogsInput{
				Filter: []ec2types.Filter{{Name: aws.String("resource-id"), Values: []string{id}}},
			})
			found := false
			for paginator.HasMorePages() && !found {
				page, err := paginator.NextPage(ctx)
				if err != nil {
					return collect.NotFound(fmt.Errorf("DescribeFlowLogs %s: %w", id, err), codeVPCNotFound)
				}
				found = len(page.FlowLogs) > 0
			}

			r.mu.Lock()
			r.vpcs[i].FlowLog = aws.Bool(found)
			r.mu.Unlock()
			return nil
		})
}
