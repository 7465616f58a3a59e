package bridge

import (
	"context"
)

// Group namespaces methods and topics under a common prefix.
type Group struct {
	m      *Manager
	prefix string
}

func (m *Manager) Group(prefix string) *Group {
	return &Group{m: m, prefix: prefix}
}

func (g *Group) sub(name string) string {
	if g.prefix == "" || name == "" {
		if name == "" {
			return g.prefix
		}
		return name
	}
	return g.prefix + "." + name
}

func (g *Group) Group(suffix string) *Group {
	return &Group{m: g.m, prefix: g.sub(suffix)}
}

func (g *Group) Invoke(ctx context.Context, method string, params any, opts ...CallOption) (*Reply, error) {
	return g.m.Invoke(ctx, g.sub(method), params, opts...)
}

func (g *Group) InvokeSync(method string, params any) (*Reply, error) {
	return g.m.InvokeSync(g.sub(method), params)
}

func (g *Group) Subscribe(topic string, h EventHandler) func() {
	return g.m.Subscribe(g.sub(topic), h)
}
