package elbv2

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	elbv2svc "github.com/aws/aws-sdk-go-v2/service/elasticloadbalancingv2"
	elbv2types "github.com/aws/aws-sdk-go-v2/service/elasticloadbalancingv2/types"

	"github.com/pankaj-dahiya-devops/cloud-inventory/internal/collect"
	"github.com/pankaj-dahiya-devops/cloud-inventory/internal/models"
)

// listenerBatch is the listener list of one load balancer, produced inside
// a regional unit and attached after the barrier.
type listenerBatch struct {
	lb        int
	listeners []models.Listener
}

// ruleBatch is the rule list of one listener.
type ruleBatch struct {
	lb, listener int
	rules        []models.ListenerRule
}

// describeListeners lists the listeners of every accepted load balancer,
// one unit per region, parents in collection order.
func (r *run) describeListeners(ctx context.Context) {
	batches := collect.Gather(ctx, r.exec, passListeners, r.c.clients,
		func(ctx context.Context, region string, api API) ([]listenerBatch, error) {
			var out []listenerBatch
			for _, ref := range r.inRegion(region) {
				ls, err := listListeners(ctx, api, ref.arn, region, func(err error) {
					r.exec.Report(ctx, passListeners, region, err)
				})
				if err != nil {
					if err = collect.NotFound(err, codeLoadBalancerNotFound); collect.IsNotFound(err) {
						r.exec.Report(ctx, passListeners, region, err)
						continue
					}
					return nil, err
				}
				out = append(out, listenerBatch{lb: ref.index, listeners: ls})
			}
			return out, nil
		})

	r.mu.Lock()
	defer r.mu.Unlock()
	for _, b := range batches {
		r.lbs[b.lb].Listeners = append(r.lbs[b.lb].Listeners, b.listeners...)
	}
}

// listListeners pages through the listeners of one load balancer. Records
// without an ARN are handed to skip and left out.
func listListeners(ctx context.Context, api API, lbARN, region string, skip func(error)) ([]models.Listener, error) {
	paginator := elbv2svc.NewDescribeListenersPaginator(api, &elbv2svc.DescribeListenersInput{
		LoadBalancerArn: aws.String(lbARN),
	})

	var out []models.Listener
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("DescribeListeners %s: %w", lbARN, err)
		}
		for _, raw := range page.Listeners {
			if raw.ListenerArn == nil {
				skip(collect.MissingField(ResourceListener, "ListenerArn"))
				continue
			}
			out = append(out, toListener(raw, lbARN, region))
		}
	}
	return out, nil
}

func toListener(raw elbv2types.Listener, lbARN, region string) models.Listener {
	l := models.Listener{
		ARN:             aws.ToString(raw.ListenerArn),
		LoadBalancerARN: lbARN,
		Region:          region,
		Port:            raw.Port,
		SSLPolicy:       raw.SslPolicy,
		Rules:           []models.ListenerRule{},
	}
	if raw.Protocol != "" {
		l.Protocol = aws.String(string(raw.Protocol))
	}
	return l
}

// describeRules lists the rules of every collected listener. It starts only
// after describeListeners has attached listeners for all regions.
func (r *run) describeRules(ctx context.Context) {
	batches := collect.Gather(ctx, r.exec, passRules, r.c.clients,
		func(ctx context.Context, region string, api API) ([]ruleBatch, error) {
			var out []ruleBatch
			for _, ref := range r.inRegion(region) {
				for j, listenerARN := range r.listenerARNs(ref.index) {
					rules, err := listRules(ctx, api, listenerARN, func(err error) {
						r.exec.Report(ctx, passRules, region, err)
					})
					if err != nil {
						if err = collect.NotFound(err, codeListenerNotFound); collect.IsNotFound(err) {
							r.exec.Report(ctx, passRules, region, err)
							continue
						}
						return nil, err
					}
					out = append(out, ruleBatch{lb: ref.index, listener: j, rules: rules})
				}
			}
			return out, nil
		})

	r.mu.Lock()
	defer r.mu.Unlock()
	for _, b := range batches {
		l := &r.lbs[b.lb].Listeners[b.listener]
		l.Rules = append(l.Rules, b.rules...)
	}
}

func (r *run) listenerARNs(lb int) []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	arns := make([]string, len(r.lbs[lb].Listeners))
	for i, l := range r.lbs[lb].Listeners {
		arns[i] = l.ARN
	}
	return arns
}

// listRules follows NextMarker until the listener's rules are exhausted.
// Rules without an ARN are handed to skip and left out.
func listRules(ctx context.Context, api API, listenerARN string, skip func(error)) ([]models.ListenerRule, error) {
	in := &elbv2svc.DescribeRulesInput{ListenerArn: aws.String(listenerARN)}

	var out []models.ListenerRule
	for {
		page, err := api.DescribeRules(ctx, in)
		if err != nil {
			return nil, fmt.Errorf("DescribeRules %s: %w", listenerARN, err)
		}
		for _, raw := range page.Rules {
			if raw.RuleArn == nil {
				skip(collect.MissingField(ResourceRule, "RuleArn"))
				continue
			}
			out = append(out, toRule(raw))
		}
		if page.NextMarker == nil || aws.ToString(page.NextMarker) == aws.ToString(in.Marker) {
			return out, nil
		}
		in.Marker = page.NextMarker
	}
}

func toRule(raw elbv2types.Rule) models.ListenerRule {
	rule := models.ListenerRule{
		ARN:        aws.ToString(raw.RuleArn),
		Priority:   raw.Priority,
		IsDefault:  aws.ToBool(raw.IsDefault),
		Actions:    make([]models.RuleAction, 0, len(raw.Actions)),
		Conditions: make([]models.RuleCondition, 0, len(raw.Conditions)),
	}
	for _, a := range raw.Actions {
		action := models.RuleAction{
			Type:           string(a.Type),
			Order:          a.Order,
			TargetGroupARN: a.TargetGroupArn,
		}
		if a.RedirectConfig != nil {
			action.RedirectProtocol = a.RedirectConfig.Protocol
			action.RedirectPort = a.RedirectConfig.Port
		}
		rule.Actions = append(rule.Actions, action)
	}
	for _, c := range raw.Conditions {
		values := c.Values
		if values == nil {
			values = []string{}
		}
		rule.Conditions = append(rule.Conditions, models.RuleCondition{
			Field:  aws.ToString(c.Field),
			Values: values,
		})
	}
	return rule
}
