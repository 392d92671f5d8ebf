package graph

import "fmt"

// Handle is implemented by *Node and by every schema wrapper that embeds
// *Node.
type Handle interface {
	Base() *Node
}

// Class describes a concrete node wrapper. Classes are compared by
// identity, so each one should be created once and shared.
type Class struct {
	Label string
	Wrap  func(*Node) Handle
}

// NewClass creates a wrapper class.
func NewClass(label string, wrap func(*Node) Handle) *Class {
	return &Class{Label: label, Wrap: wrap}
}

// NodeClass is the plain untyped node class.
var NodeClass = &Class{Label: "Node", Wrap: func(n *Node) Handle { return n }}

func (c *Class) String() string { return c.Label }

func (c *Class) wrap(n *Node) Handle {
	if c == nil || c.Wrap == nil {
		return n
	}
	return c.Wrap(n)
}

// TypeRef names a node type either by its type name or by its class.
type TypeRef interface {
	typeRef()
}

// TypeName is a type string used as a TypeRef.
type TypeName string

func (TypeName) typeRef() {}
func (*Class) typeRef()   {}

// Schema maps type names to node classes and back.
type Schema interface {
	NodeClass(typeName string) (*Class, error)
	ClassAndType(ref TypeRef) (*Class, string, error)
	NodeFactory(g *Graph, oid OID, typeName string, class *Class) (Handle, error)
}

// NoSchema resolves every type name to NodeClass.
type NoSchema struct{}

func (NoSchema) NodeClass(string) (*Class, error) {
	return NodeClass, nil
}

func (NoSchema) ClassAndType(ref TypeRef) (*Class, string, error) {
	if name, ok := ref.(TypeName); ok {
		return NodeClass, string(name), nil
	}
	return nil, "", fmt.Errorf("%w: no schema for class %v", ErrUnknownType, ref)
}

func (NoSchema) NodeFactory(g *Graph, oid OID, _ string, class *Class) (Handle, error) {
	if class == nil {
		class = NodeClass
	}
	return class.wrap(&Node{graph: g, oid: oid}), nil
}

// Registration binds a type name to a class.
type Registration struct {
	Name  string
	Class *Class
}

// Register is shorthand for building a Registration.
func Register(name string, class *Class) Registration {
	return Registration{Name: name, Class: class}
}

// Registry is a Schema built from a fixed set of registrations.
type Registry struct {
	classes map[*Class]string
	names   map[string]*Class
}

// NewRegistry builds a registry. Registering the same class or the same
// type name twice fails with ErrDuplicateRegistration.
func NewRegistry(regs ...Registration) (*Registry, error) {
	r := &Registry{
		classes: make(map[*Class]string, len(regs)),
		names:   make(map[string]*Class, len(regs)),
	}
	for _, reg := range regs {
		if reg.Class == nil {
			return nil, fmt.Errorf("registering %q: nil class", reg.Name)
		}
		if prev, ok := r.classes[reg.Class]; ok {
			return nil, fmt.Errorf("%w: class %s already registered as %q", ErrDuplicateRegistration, reg.Class, prev)
		}
		if _, ok := r.names[reg.Name]; ok {
			return nil, fmt.Errorf("%w: type name %q", ErrDuplicateRegistration, reg.Name)
		}
		r.names[reg.Name] = reg.Class
		r.classes[reg.Class] = reg.Name
	}
	return r, nil
}

// MustRegistry is like NewRegistry but panics on error. It is meant for
// package-level schema variables.
func MustRegistry(regs ...Registration) *Registry {
	r, err := NewRegistry(regs...)
	if err != nil {
		panic(err)
	}
	return r
}

func (r *Registry) NodeClass(typeName string) (*Class, error) {
	class, ok := r.names[typeName]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownType, typeName)
	}
	return class, nil
}

func (r *Registry) ClassAndType(ref TypeRef) (*Class, string, error) {
	switch v := ref.(type) {
	case TypeName:
		class, err := r.NodeClass(string(v))
		if err != nil {
			return nil, "", err
		}
		return class, string(v), nil
	case *Class:
		name, ok := r.classes[v]
		if !ok {
			return nil, "", fmt.Errorf("%w: class %v is not registered", ErrUnknownType, v)
		}
		return v, name, nil
	}
	return nil, "", fmt.Errorf("%w: unsupported type reference %T", ErrUnknownType, ref)
}

func (r *Registry) NodeFactory(g *Graph, oid OID, typeName string, class *Class) (Handle, error) {
	if class == nil {
		var err error
		if class, err = r.NodeClass(typeName); err != nil {
			return nil, err
		}
	}
	return class.wrap(&Node{graph: g, oid: oid}), nil
}
