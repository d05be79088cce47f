package policy

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
	"gopkg.in/yaml.v3"

	"github.com/ledgerline/tenantguard/pkg/roles"
)

// Config is the on-disk policy configuration.
type Config struct {
	Version   string           `yaml:"version"`
	Resources []ResourceConfig `yaml:"resources"`
}

// ResourceConfig declares one resource's policy. Role lists are optional:
// tenant-scoped resources default to the standard template sets, public
// resources default to read-only.
type ResourceConfig struct {
	Name        string   `yaml:"name"`
	Scope       string   `yaml:"scope"`
	InsertRoles []string `yaml:"insert_roles,omitempty"`
	UpdateRoles []string `yaml:"update_roles,omitempty"`
	DeleteRoles []string `yaml:"delete_roles,omitempty"`
}

// LoadConfig reads and parses a policy configuration file.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read policy config: %w", err)
	}

	config := &Config{}
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse policy config: %w", err)
	}
	return config, nil
}

// Policies converts the configuration into resource policies.
func (c *Config) Policies() ([]*ResourcePolicy, error) {
	policies := make([]*ResourcePolicy, 0, len(c.Resources))
	for _, rc := range c.Resources {
		p, err := rc.policy()
		if err != nil {
			return nil, err
		}
		policies = append(policies, p)
	}
	return policies, nil
}

// ApplyTo validates the configuration and swaps it into the registry.
func (c *Config) ApplyTo(r *Registry) error {
	policies, err := c.Policies()
	if err != nil {
		return err
	}
	return r.Load(policies)
}

func (rc *ResourceConfig) policy() (*ResourcePolicy, error) {
	var p *ResourcePolicy
	switch Scope(rc.Scope) {
	case ScopeTenant:
		p = TenantScoped(rc.Name)
	case ScopeOwner:
		p = OwnerScoped(rc.Name)
	case ScopePublic:
		p = PublicRead(rc.Name)
	default:
		return nil, fmt.Errorf("%w: resource %q has unknown scope %q", ErrInvalidPolicy, rc.Name, rc.Scope)
	}

	if rc.InsertRoles != nil {
		p.InsertRoles = parseRoles(rc.InsertRoles)
	}
	if rc.UpdateRoles != nil {
		p.UpdateRoles = parseRoles(rc.UpdateRoles)
	}
	if rc.DeleteRoles != nil {
		p.DeleteRoles = parseRoles(rc.DeleteRoles)
	}

	if err := p.Validate(); err != nil {
		return nil, fmt.Errorf("%w: resource %q: %v", ErrInvalidPolicy, rc.Name, err)
	}
	return p, nil
}

func parseRoles(names []string) roles.Set {
	set := roles.Set{}
	for _, name := range names {
		set[roles.Role(name)] = struct{}{}
	}
	return set
}

// Watch reloads the configuration file into the registry whenever it
// changes on disk. A file that fails to parse or validate is skipped and
// the previous policies keep serving; onError, when non-nil, observes the
// failure. Watch blocks until ctx is cancelled.
func Watch(ctx context.Context, path string, registry *Registry, onError func(error)) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	defer watcher.Close()

	// Watch the directory: editors replace files on save, which drops a
	// watch held on the file itself.
	if err := watcher.Add(filepath.Dir(path)); err != nil {
		return fmt.Errorf("failed to watch config directory: %w", err)
	}

	reload := func() {
		config, err := LoadConfig(path)
		if err == nil {
			err = config.ApplyTo(registry)
		}
		if err != nil && onError != nil {
			onError(err)
		}
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) != 0 && filepath.Clean(event.Name) == filepath.Clean(path) {
				reload()
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			if onError != nil {
				onError(err)
			}
		}
	}
}
