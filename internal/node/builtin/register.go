package builtin

import "github.com/loomwork/loom/internal/node"

// RegisterAll registers every bundled node type into r as universal nodes
// (available to every tenant, never removable at runtime). Call once at
// process start, before any workflow interprets.
func RegisterAll(r *node.Registry) {
	r.RegisterUniversal(MathDescriptor, NewMath)
	r.RegisterUniversal(LogicDescriptor, NewLogic)
	r.RegisterUniversal(LogDescriptor, NewLog)
	r.RegisterUniversal(EditFieldsDescriptor, NewEditFields)
	r.RegisterUniversal(HTTPRequestDescriptor, NewHTTPRequest)
	r.RegisterUniversal(DelayDescriptor, NewDelay)
	r.RegisterUniversal(NoopDescriptor, NewNoop)
	r.RegisterUniversal(TransformDescriptor, NewTransform)
	r.RegisterUniversal(SwitchDescriptor, NewSwitch)
}
