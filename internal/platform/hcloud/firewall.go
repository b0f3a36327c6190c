package hcloud

import (
	"context"
	"fmt"
	"net"
	"strconv"

	"github.com/hetznercloud/hcloud-go/v2/hcloud"

	"github.com/imamik/facets/internal/platform/cloud"
	"github.com/imamik/facets/internal/util/tags"
)

var anywhere = []string{"0.0.0.0/0", "::/0"}

// EnsureSecurityGroup implements cloud.Provider with a firewall whose
// rules are replaced on every call. Firewalls cannot admit traffic by the
// group of its source, so group rules are skipped.
func (p *Provider) EnsureSecurityGroup(ctx context.Context, group cloud.SecurityGroupSpec) error {
	rules, err := firewallRules(group)
	if err != nil {
		return err
	}

	_, _, err = (&EnsureOperation[*hcloud.Firewall, hcloud.FirewallCreateOpts, hcloud.FirewallSetRulesOpts]{
		Name:         group.Name,
		ResourceType: "firewall",
		Get:          p.client.Firewall.Get,
		Create:       p.createFirewall,
		Update:       p.client.Firewall.SetRules,
		CreateOptsMapper: func() hcloud.FirewallCreateOpts {
			return hcloud.FirewallCreateOpts{
				Name:   group.Name,
				Rules:  rules,
				Labels: map[string]string{tags.KeyManagedBy: tags.ManagedBy},
			}
		},
		UpdateOptsMapper: func(_ *hcloud.Firewall) hcloud.FirewallSetRulesOpts {
			return hcloud.FirewallSetRulesOpts{Rules: rules}
		},
	}).Execute(ctx, p)
	return err
}

func (p *Provider) createFirewall(ctx context.Context, opts hcloud.FirewallCreateOpts) (*CreateResult[*hcloud.Firewall], *hcloud.Response, error) {
	res, resp, err := p.client.Firewall.Create(ctx, opts)
	if err != nil {
		return nil, resp, err
	}
	return &CreateResult[*hcloud.Firewall]{
		Resource: res.Firewall,
		Actions:  res.Actions,
	}, resp, nil
}

// firewallRules maps ingress rules to firewall rules.
func firewallRules(group cloud.SecurityGroupSpec) ([]hcloud.FirewallRule, error) {
	rules := make([]hcloud.FirewallRule, 0, len(group.Rules))
	for _, r := range group.Rules {
		if r.Group != "" {
			continue
		}

		protocol, err := firewallProtocol(r.Protocol)
		if err != nil {
			return nil, fmt.Errorf("security group %s: %w", group.Name, err)
		}

		cidrs := anywhere
		if r.CIDR != "" {
			cidrs = []string{r.CIDR}
		}
		sources := make([]net.IPNet, 0, len(cidrs))
		for _, c := range cidrs {
			_, ipnet, err := net.ParseCIDR(c)
			if err != nil {
				return nil, fmt.Errorf("security group %s: invalid cidr %q: %w", group.Name, c, err)
			}
			sources = append(sources, *ipnet)
		}

		rule := hcloud.FirewallRule{
			Direction: hcloud.FirewallRuleDirectionIn,
			Protocol:  protocol,
			SourceIPs: sources,
		}
		if protocol != hcloud.FirewallRuleProtocolICMP {
			rule.Port = hcloud.Ptr(portRange(r.FromPort, r.ToPort))
		}
		if group.Description != "" {
			rule.Description = hcloud.Ptr(group.Description)
		}
		rules = append(rules, rule)
	}
	return rules, nil
}

func firewallProtocol(p string) (hcloud.FirewallRuleProtocol, error) {
	switch p {
	case "", "tcp":
		return hcloud.FirewallRuleProtocolTCP, nil
	case "udp":
		return hcloud.FirewallRuleProtocolUDP, nil
	case "icmp":
		return hcloud.FirewallRuleProtocolICMP, nil
	}
	return "", fmt.Errorf("unsupported protocol %q", p)
}

func portRange(from, to int) string {
	if to == 0 || to == from {
		return strconv.Itoa(from)
	}
	return strconv.Itoa(from) + "-" + strconv.Itoa(to)
}
