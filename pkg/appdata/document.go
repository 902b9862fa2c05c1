package appdata

import (
	"fmt"

	"github.com/uhyunpark/hookorder/pkg/hook"
)

const (
	// LatestVersion is the app-data schema version written by NewDocument
	LatestVersion = "1.1.0"

	// DefaultAppCode identifies the front end that produced the order
	DefaultAppCode = "CoW Swap"
)

// DocumentParams describes a standard app-data document
type DocumentParams struct {
	Version     string // Schema version, LatestVersion when empty
	AppCode     string // DefaultAppCode when empty
	Environment string // Optional ("production", "staging", ...)
	PreHooks    []hook.CallDescriptor

	// Extra metadata sections merged next to "hooks" (e.g. "referrer", "quote")
	Metadata map[string]Value
}

// NewDocument assembles {appCode, environment?, metadata: {hooks: {pre: [...]}, ...}, version}
func NewDocument(p DocumentParams) *Object {
	version := p.Version
	if version == "" {
		version = LatestVersion
	}
	appCode := p.AppCode
	if appCode == "" {
		appCode = DefaultAppCode
	}

	metadata := NewObject()
	for k, v := range p.Metadata {
		metadata.Set(k, v)
	}
	if len(p.PreHooks) > 0 {
		pre := make([]Value, len(p.PreHooks))
		for i, h := range p.PreHooks {
			pre[i] = HookValue(h)
		}
		metadata.Set("hooks", ObjectValue(NewObject().Set("pre", Array(pre...))))
	}

	doc := NewObject().
		Set("appCode", String(appCode)).
		Set("metadata", ObjectValue(metadata)).
		Set("version", String(version))
	if p.Environment != "" {
		doc.Set("environment", String(p.Environment))
	}
	return doc
}

// HookValue renders a call descriptor as {target, callData, gasLimit}
func HookValue(h hook.CallDescriptor) Value {
	w := h.ToWire()
	return ObjectValue(NewObject().
		Set("target", String(w.Target)).
		Set("callData", String(w.CallData)).
		Set("gasLimit", String(w.GasLimit)))
}

// PreHooks extracts metadata.hooks.pre from a document. A document without hooks
// yields an empty slice.
func PreHooks(doc *Object) ([]hook.CallDescriptor, error) {
	v, ok := doc.Lookup("metadata", "hooks", "pre")
	if !ok {
		return nil, nil
	}
	elems, ok := v.AsArray()
	if !ok {
		return nil, fmt.Errorf("metadata.hooks.pre is %s, want array", v.Kind())
	}

	hooks := make([]hook.CallDescriptor, 0, len(elems))
	for i, elem := range elems {
		obj, ok := elem.AsObject()
		if !ok {
			return nil, fmt.Errorf("metadata.hooks.pre[%d] is %s, want object", i, elem.Kind())
		}
		var w hook.Wire
		fields := []struct {
			name string
			dst  *string
		}{
			{"target", &w.Target},
			{"callData", &w.CallData},
			{"gasLimit", &w.GasLimit},
		}
		for _, f := range fields {
			fv, _ := obj.Get(f.name)
			s, ok := fv.AsString()
			if !ok {
				return nil, fmt.Errorf("metadata.hooks.pre[%d].%s must be a string", i, f.name)
			}
			*f.dst = s
		}
		desc, err := w.ToDescriptor()
		if err != nil {
			return nil, fmt.Errorf("metadata.hooks.pre[%d]: %w", i, err)
		}
		hooks = append(hooks, desc)
	}
	return hooks, nil
}
