package identity

import "github.com/wb-go/wbf/ginext"

const principalKey = "identity.principal"

func WithPrincipal(c *ginext.Context, p *Principal) {
	c.Set(principalKey, p)
}

// FromContext returns the principal set by the auth middleware, if any.
func FromContext(c *ginext.Context) (*Principal, bool) {
	v, ok := c.Get(principalKey)
	if !ok {
		return nil, false
	}
	p, ok := v.(*Principal)
	return p, ok && p != nil
}
