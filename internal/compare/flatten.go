package compare

import (
	"fmt"
	"sort"
	"strconv"

	"docbench/internal/domain"
)

// Flatten converts a decoded JSON tree into a map from leaf path to leaf.
// Object keys are joined with "." and array indices are appended as "[i]".
// A scalar root is stored under the empty path. Empty objects and arrays
// contribute no leaves.
func Flatten(v any) (map[string]Value, error) {
	out := make(map[string]Value)
	if err := flatten(v, "", out); err != nil {
		return nil, err
	}
	return out, nil
}

func flatten(v any, prefix string, out map[string]Value) error {
	switch t := v.(type) {
	case map[string]any:
		// Sorted so that colliding paths ("a.b" key vs nested a -> b)
		// resolve the same way on every run.
		keys := make([]string, 0, len(t))
		for k := range t {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			key := k
			if prefix != "" {
				key = prefix + "." + k
			}
			if err := flatten(t[k], key, out); err != nil {
				return err
			}
		}
	case []any:
		for i, child := range t {
			if err := flatten(child, prefix+"["+strconv.Itoa(i)+"]", out); err != nil {
				return err
			}
		}
	default:
		leaf, err := ValueOf(v)
		if err != nil {
			return fmt.Errorf("%w: path %q: %v", domain.ErrComparison, prefix, err)
		}
		out[prefix] = leaf
	}
	return nil
}

// Paths returns the sorted keys of a flattened tree.
func Paths(flat map[string]Value) []string {
	paths := make([]string, 0, len(flat))
	for p := range flat {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths
}
