package argo

import (
	"fmt"

	"dario.cat/mergo"
)

// Parameter is one {name, value} entry in a workflow's argument list.
type Parameter struct {
	Name  string `json:"name"  yaml:"name"`
	Value string `json:"value" yaml:"value"`
}

// SubmitData carries the caller-supplied arguments and metadata merged into a
// workflow definition at submission time.
type SubmitData struct {
	Parameters  []Parameter
	Artifacts   []map[string]any
	Labels      map[string]string
	Annotations map[string]string
}

// MergeSubmitData merges caller data into a workflow definition in place and
// returns it. Unrelated parts of the template are left untouched. Argument
// lists are last-writer-wins at the parameters/artifacts key: a non-empty
// caller list fully replaces any template default, never a per-entry union.
// Labels and annotations merge per key, caller values winning.
func MergeSubmitData(def map[string]any, data *SubmitData) (map[string]any, error) {
	if def == nil {
		def = map[string]any{}
	}
	if data == nil {
		return def, nil
	}
	if err := mergeMetadata(def, data); err != nil {
		return nil, err
	}
	mergeArguments(def, data)
	return def, nil
}

func mergeMetadata(def map[string]any, data *SubmitData) error {
	if len(data.Labels) == 0 && len(data.Annotations) == 0 {
		return nil
	}
	metadata := childMap(def, "metadata")
	if len(data.Labels) > 0 {
		if err := mergeStringMap(metadata, "labels", data.Labels); err != nil {
			return err
		}
	}
	if len(data.Annotations) > 0 {
		if err := mergeStringMap(metadata, "annotations", data.Annotations); err != nil {
			return err
		}
	}
	return nil
}

func mergeArguments(def map[string]any, data *SubmitData) {
	if len(data.Parameters) == 0 && len(data.Artifacts) == 0 {
		return
	}
	arguments := childMap(childMap(def, "spec"), "arguments")
	if len(data.Parameters) > 0 {
		params := make([]any, 0, len(data.Parameters))
		for _, p := range data.Parameters {
			params = append(params, map[string]any{"name": p.Name, "value": p.Value})
		}
		arguments["parameters"] = params
	}
	if len(data.Artifacts) > 0 {
		artifacts := make([]any, 0, len(data.Artifacts))
		for _, a := range data.Artifacts {
			artifacts = append(artifacts, a)
		}
		arguments["artifacts"] = artifacts
	}
}

func mergeStringMap(parent map[string]any, key string, overlay map[string]string) error {
	existing := map[string]string{}
	if raw, ok := parent[key]; ok {
		if m, ok := raw.(map[string]any); ok {
			for k, v := range m {
				existing[k] = fmt.Sprint(v)
			}
		}
	}
	if err := mergo.Merge(&existing, overlay, mergo.WithOverride); err != nil {
		return fmt.Errorf("failed to merge %s: %w", key, err)
	}
	merged := make(map[string]any, len(existing))
	for k, v := range existing {
		merged[k] = v
	}
	parent[key] = merged
	return nil
}

// childMap returns the map at key, creating it (and replacing non-map junk)
// when absent.
func childMap(parent map[string]any, key string) map[string]any {
	if m, ok := parent[key].(map[string]any); ok {
		return m
	}
	m := map[string]any{}
	parent[key] = m
	return m
}
