package fragment

// Document is the serializable view of a fragment, with each plugin tagged by
// its kind.
type Document struct {
	Fragment `yaml:",inline" json:",inline"`
	Plugins  []PluginDoc `yaml:"plugins,omitempty" json:"plugins,omitempty"`
}

// PluginDoc pairs a plugin with its kind.
type PluginDoc struct {
	Kind string `yaml:"kind" json:"kind"`
	Spec Plugin `yaml:"spec" json:"spec"`
}

// Document returns the serializable view of f.
func (f Fragment) Document() Document {
	doc := Document{Fragment: f}
	for _, p := range f.Plugins {
		doc.Plugins = append(doc.Plugins, PluginDoc{Kind: p.Kind(), Spec: p})
	}
	return doc
}
