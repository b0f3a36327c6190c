package config

import (
	"errors"
	"fmt"
	"net"
	"strings"
)

// ValidProviders lists the provider names a definition may select.
var ValidProviders = map[string]bool{
	"hcloud": true,
	"ec2":    true,
	"fake":   true,
}

// Validate checks the definition for structural errors. All problems are
// reported together.
func (d *Definition) Validate() error {
	if d.Name == "" {
		return fmt.Errorf("name is required")
	}
	if strings.ContainsAny(d.Name, " /") {
		return fmt.Errorf("invalid cluster name %q: must not contain spaces or slashes", d.Name)
	}
	if d.Provider != "" && !ValidProviders[d.Provider] {
		return fmt.Errorf("invalid provider %q: must be one of hcloud, ec2, fake", d.Provider)
	}
	if len(d.Facets) == 0 {
		return fmt.Errorf("at least one facet is required")
	}

	var errs []error
	if err := d.Compute.validate("cluster"); err != nil {
		errs = append(errs, err)
	}

	seen := make(map[string]bool, len(d.Facets))
	for i := range d.Facets {
		f := &d.Facets[i]
		if f.Name == "" {
			errs = append(errs, fmt.Errorf("facet %d: name is required", i))
			continue
		}
		if seen[f.Name] {
			errs = append(errs, fmt.Errorf("facet %q: duplicate name", f.Name))
			continue
		}
		seen[f.Name] = true
		if err := f.validate(); err != nil {
			errs = append(errs, err)
		}
	}

	for i := range d.Facets {
		f := &d.Facets[i]
		if f.Coordinator != nil && !seen[f.Coordinator.Facet] {
			errs = append(errs, fmt.Errorf("facet %q: coordinator facet %q is not declared", f.Name, f.Coordinator.Facet))
		}
	}

	return errors.Join(errs...)
}

func (f *FacetSpec) validate() error {
	if strings.ContainsAny(f.Name, " /") {
		return fmt.Errorf("facet %q: name must not contain spaces or slashes", f.Name)
	}
	if f.Instances < 0 {
		return fmt.Errorf("facet %q: instances must not be negative, got %d", f.Name, f.Instances)
	}
	if err := f.Compute.validate("facet " + f.Name); err != nil {
		return err
	}
	if f.Coordinator != nil && len(f.Coordinator.Attributes) == 0 {
		return fmt.Errorf("facet %q: coordinator requires at least one attribute key", f.Name)
	}
	for idx, srv := range f.Servers {
		if idx < 0 || idx >= f.Instances {
			return fmt.Errorf("facet %q: server override index %d out of range [0,%d)", f.Name, idx, f.Instances)
		}
		if err := srv.validate(fmt.Sprintf("facet %s server %d", f.Name, idx)); err != nil {
			return err
		}
	}
	return nil
}

func (c *Compute) validate(scope string) error {
	for name, v := range c.Volumes {
		if v.Size < 0 {
			return fmt.Errorf("%s: volume %q: size must not be negative", scope, name)
		}
		if v.Device != "" && !strings.HasPrefix(v.Device, "/dev/") {
			return fmt.Errorf("%s: volume %q: device %q must start with /dev/", scope, name, v.Device)
		}
	}
	for name, sg := range c.SecurityGroups {
		for _, p := range sg.Ports {
			if err := p.validate(); err != nil {
				return fmt.Errorf("%s: security group %q: %w", scope, name, err)
			}
		}
	}
	return nil
}

func (p PortSpec) validate() error {
	if p.From < 1 || p.From > 65535 {
		return fmt.Errorf("port %d out of range", p.From)
	}
	if p.To != 0 && (p.To < p.From || p.To > 65535) {
		return fmt.Errorf("invalid port range %d-%d", p.From, p.To)
	}
	if p.CIDR != "" {
		if _, _, err := net.ParseCIDR(p.CIDR); err != nil {
			return fmt.Errorf("invalid cidr %q: %w", p.CIDR, err)
		}
	}
	return nil
}
