package auth0

import (
	"errors"
	"fmt"
	"sort"

	"github.com/golang-jwt/jwt/v5"
)

// PermissionsClaim is the claim Auth0 RBAC writes granted scopes into
const PermissionsClaim = "permissions"

// Claims is the decoded payload of a verified token.
// Values are only produced by Verifier after signature and claim checks pass.
type Claims struct {
	raw            jwt.MapClaims
	permissions    map[string]struct{}
	hasPermissions bool
}

func newClaims(raw jwt.MapClaims) (*Claims, error) {
	c := &Claims{
		raw:         raw,
		permissions: make(map[string]struct{}),
	}

	value, ok := raw[PermissionsClaim]
	if !ok {
		return c, nil
	}
	c.hasPermissions = true

	list, ok := value.([]interface{})
	if !ok {
		return nil, fmt.Errorf("%s claim must be an array, got %T", PermissionsClaim, value)
	}
	for _, item := range list {
		perm, ok := item.(string)
		if !ok {
			return nil, errors.New("permissions claim must contain only strings")
		}
		c.permissions[perm] = struct{}{}
	}

	return c, nil
}

// Get returns a single claim value
func (c *Claims) Get(name string) (interface{}, bool) {
	v, ok := c.raw[name]
	return v, ok
}

// Map returns a copy of the full claim mapping
func (c *Claims) Map() map[string]interface{} {
	out := make(map[string]interface{}, len(c.raw))
	for k, v := range c.raw {
		out[k] = v
	}
	return out
}

// Subject returns the sub claim
func (c *Claims) Subject() string {
	sub, _ := c.raw.GetSubject()
	return sub
}

// Issuer returns the iss claim
func (c *Claims) Issuer() string {
	iss, _ := c.raw.GetIssuer()
	return iss
}

// HasPermissionsClaim reports whether the token carried a permissions attribute at all
func (c *Claims) HasPermissionsClaim() bool {
	return c.hasPermissions
}

// HasPermission reports exact membership in the permission set
func (c *Claims) HasPermission(permission string) bool {
	_, ok := c.permissions[permission]
	return ok
}

// Permissions returns the permission set in sorted order
func (c *Claims) Permissions() []string {
	perms := make([]string, 0, len(c.permissions))
	for p := range c.permissions {
		perms = append(perms, p)
	}
	sort.Strings(perms)
	return perms
}
