package extractor

import "strings"

// translateJSONPath converts a selector's dollar/bracket JSONPath-like
// dialect (e.g. "$[*].name", "$.friends[*].first") to gjson's own path
// dialect ("#.name", "friends.#.first"). gjson has no JSONPath mode of its
// own, so selector expressions are translated rather than hand-evaluated;
// the translation covers the subset Processor definitions actually use:
// root "$", dotted field access, and "[*]" wildcard array flattening.
func translateJSONPath(expr string) string {
	s := strings.TrimPrefix(expr, "$")
	s = strings.ReplaceAll(s, "[*]", ".#")
	s = strings.TrimPrefix(s, ".")
	for strings.Contains(s, "..") {
		s = strings.ReplaceAll(s, "..", ".")
	}
	return s
}

// setDotted assigns value at the dotted path key within obj, creating any
// intermediate objects as needed. A non-object value already occupying an
// intermediate segment is overwritten, since Selector keys are defined by
// the Processor author and expected not to collide.
func setDotted(obj map[string]any, key string, value any) {
	parts := strings.Split(key, ".")
	cur := obj
	for i, part := range parts {
		if i == len(parts)-1 {
			cur[part] = value
			return
		}
		next, ok := cur[part].(map[string]any)
		if !ok {
			next = map[string]any{}
			cur[part] = next
		}
		cur = next
	}
}
