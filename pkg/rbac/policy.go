package rbac

import (
	"fmt"
	"os"
	"sort"

	"gopkg.in/yaml.v3"
)

// Route names with a tenant role requirement
const (
	RouteSubscriptionCurrent = "subscriptions.current"
	RouteActivationRedeem    = "subscriptions.activation_codes.redeem"
	RouteShareCreate         = "shares.create"
	RouteProductCreate       = "products.create"
	RouteProductList         = "products.list"
	RouteImageUpload         = "products.images.upload"
	RouteImageSetMain        = "products.images.set_main"
	RouteImageContent        = "products.images.content"
)

// RoutePolicy maps route names to the minimum tenant role they require.
// Routes without an entry require OWNER.
type RoutePolicy struct {
	minimums map[string]Role
}

// DefaultRoutePolicy returns the built-in route minimums
func DefaultRoutePolicy() *RoutePolicy {
	return &RoutePolicy{minimums: map[string]Role{
		RouteSubscriptionCurrent: RoleViewer,
		RouteActivationRedeem:    RoleOwner,
		RouteShareCreate:         RoleEditor,
		RouteProductCreate:       RoleEditor,
		RouteProductList:         RoleViewer,
		RouteImageUpload:         RoleEditor,
		RouteImageSetMain:        RoleAdmin,
		RouteImageContent:        RoleViewer,
	}}
}

// Minimum returns the minimum role for route
func (p *RoutePolicy) Minimum(route string) Role {
	if role, ok := p.minimums[route]; ok {
		return role
	}
	return RoleOwner
}

// Set overrides the minimum role for route
func (p *RoutePolicy) Set(route string, role Role) error {
	if !role.Valid() {
		return fmt.Errorf("route %s: unknown role %q", route, role)
	}
	p.minimums[route] = role
	return nil
}

// Routes returns the configured route names in sorted order
func (p *RoutePolicy) Routes() []string {
	routes := make([]string, 0, len(p.minimums))
	for route := range p.minimums {
		routes = append(routes, route)
	}
	sort.Strings(routes)
	return routes
}

type routePolicyFile struct {
	Routes map[string]string `yaml:"routes"`
}

// LoadRoutePolicy reads YAML overrides on top of the default policy:
//
//	routes:
//	  shares.create: ADMIN
func LoadRoutePolicy(path string) (*RoutePolicy, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read route policy: %w", err)
	}
	return ParseRoutePolicy(data)
}

// ParseRoutePolicy parses YAML overrides on top of the default policy
func ParseRoutePolicy(data []byte) (*RoutePolicy, error) {
	var file routePolicyFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse route policy: %w", err)
	}

	policy := DefaultRoutePolicy()
	for route, role := range file.Routes {
		if err := policy.Set(route, Role(role)); err != nil {
			return nil, err
		}
	}
	return policy, nil
}
