package evaluator

import (
	"encoding/json"
	"fmt"
	"strings"
)

// 列表项为对象时，依次尝试这些字段作为键和值
var (
	itemKeyFields   = []string{"skill", "name", "header", "title", "strength", "weakness"}
	itemValueFields = []string{"reason", "description", "detail", "evidence", "explanation"}
)

// NormalizeField 把模型返回的技能/优缺点统一成 {名称: 说明}。
// 支持对象、对象列表、字符串列表；字符串列表的说明为空串
func NormalizeField(raw json.RawMessage) map[string]string {
	out := map[string]string{}
	if len(raw) == 0 {
		return out
	}

	var obj map[string]any
	if err := json.Unmarshal(raw, &obj); err == nil {
		mergeObject(out, obj)
		return out
	}

	var list []any
	if err := json.Unmarshal(raw, &list); err != nil {
		return out
	}
	for _, item := range list {
		switch v := item.(type) {
		case string:
			if k := strings.TrimSpace(v); k != "" {
				if _, exists := out[k]; !exists {
					out[k] = ""
				}
			}
		case map[string]any:
			if k, val, ok := keyedItem(v); ok {
				out[k] = val
				continue
			}
			mergeObject(out, v)
		}
	}
	return out
}

func keyedItem(item map[string]any) (string, string, bool) {
	key := firstString(item, itemKeyFields)
	if key == "" {
		return "", "", false
	}
	return key, firstString(item, itemValueFields), true
}

func firstString(item map[string]any, fields []string) string {
	for _, f := range fields {
		if s := stringify(item[f]); s != "" {
			return s
		}
	}
	return ""
}

func mergeObject(out map[string]string, obj map[string]any) {
	for k, v := range obj {
		key := strings.TrimSpace(k)
		val := stringify(v)
		if key != "" && val != "" {
			out[key] = val
		}
	}
}

func stringify(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(t)
	case float64, bool:
		return fmt.Sprint(t)
	default:
		b, err := json.Marshal(t)
		if err != nil {
			return ""
		}
		return string(b)
	}
}
