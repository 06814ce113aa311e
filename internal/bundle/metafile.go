package bundle

import (
	"encoding/json"
	"sort"
)

// BuildMetadata is the part of esbuild's metafile the driver reads.
type BuildMetadata struct {
	Outputs map[string]OutputInfo `json:"outputs"`
}

type OutputInfo struct {
	EntryPoint string               `json:"entryPoint"`
	Imports    []ImportInfo         `json:"imports"`
	Inputs     map[string]InputInfo `json:"inputs"`
	CSSBundle  string               `json:"cssBundle"`
	Bytes      int                  `json:"bytes"`
}

type ImportInfo struct {
	Path     string `json:"path"`
	Kind     string `json:"kind"`
	External bool   `json:"external"`
}

type InputInfo struct {
	BytesInOutput int `json:"bytesInOutput"`
}

func parseMetafile(raw string) (*BuildMetadata, error) {
	var meta BuildMetadata
	if raw == "" {
		return &BuildMetadata{Outputs: map[string]OutputInfo{}}, nil
	}
	if err := json.Unmarshal([]byte(raw), &meta); err != nil {
		return nil, err
	}
	if meta.Outputs == nil {
		meta.Outputs = map[string]OutputInfo{}
	}
	return &meta, nil
}

// scripts returns the output for an entry point followed by every chunk it
// statically imports, depth first.
func (m *BuildMetadata) scripts(outputPath string) []string {
	scripts := []string{outputPath}
	visited := map[string]bool{outputPath: true}
	m.addDependencies(m.Outputs[outputPath], &scripts, visited)
	return scripts
}

func (m *BuildMetadata) addDependencies(output OutputInfo, scripts *[]string, visited map[string]bool) {
	for _, imp := range output.Imports {
		if imp.External || imp.Kind != "import-statement" || visited[imp.Path] {
			continue
		}
		visited[imp.Path] = true
		*scripts = append(*scripts, imp.Path)

		if chunkInfo, exists := m.Outputs[imp.Path]; exists {
			m.addDependencies(chunkInfo, scripts, visited)
		}
	}
}

// chunks lists outputs that are neither entry points nor stylesheets or
// assets, sorted.
func (m *BuildMetadata) chunks() []string {
	var out []string
	for outputPath, info := range m.Outputs {
		if info.EntryPoint == "" && isScript(outputPath) {
			out = append(out, outputPath)
		}
	}
	sort.Strings(out)
	return out
}

// inputs returns the sorted input paths bundled into outputPath.
func (m *BuildMetadata) inputs(outputPath string) []string {
	info := m.Outputs[outputPath]
	out := make([]string, 0, len(info.Inputs))
	for in := range info.Inputs {
		out = append(out, in)
	}
	sort.Strings(out)
	return out
}

// importers counts the entry outputs that reach target through static
// imports.
func (m *BuildMetadata) importers(target string) int {
	n := 0
	for outputPath, info := range m.Outputs {
		if info.EntryPoint == "" || !isScript(outputPath) {
			continue
		}
		for _, s := range m.scripts(outputPath)[1:] {
			if s == target {
				n++
				break
			}
		}
	}
	return n
}
