package qdrant

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

// buildFilter turns an exact-match predicate into a Qdrant filter scoped to
// namespace. It returns nil when there is nothing to filter on.
func buildFilter(namespace string, predicate map[string]any) (map[string]any, error) {
	must := make([]any, 0, len(predicate)+1)
	if ns := strings.TrimSpace(namespace); ns != "" {
		must = append(must, matchCondition(payloadNamespaceKey, ns))
	}

	keys := make([]string, 0, len(predicate))
	for k := range predicate {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, key := range keys {
		k := strings.TrimSpace(key)
		if k == "" {
			continue
		}
		scalar, ok := toScalarValue(predicate[key])
		if !ok {
			return nil, opErr(
				"filter_translate",
				OperationErrorUnsupportedFilter,
				fmt.Sprintf("field %q expects a scalar value, got %T", k, predicate[key]),
				nil,
			)
		}
		must = append(must, matchCondition(k, scalar))
	}
	if len(must) == 0 {
		return nil, nil
	}
	return map[string]any{"must": must}, nil
}

func matchCondition(key string, value any) map[string]any {
	return map[string]any{
		"key":   key,
		"match": map[string]any{"value": value},
	}
}

func toScalarValue(value any) (any, bool) {
	switch typed := value.(type) {
	case string, bool, int, int64, uint, uint64, float64:
		return typed, true
	case int32:
		return int(typed), true
	case uint32:
		return uint(typed), true
	case float32:
		return float64(typed), true
	case json.Number:
		if i, err := typed.Int64(); err == nil {
			return i, true
		}
		if f, err := typed.Float64(); err == nil {
			return f, true
		}
		return nil, false
	default:
		return nil, false
	}
}
