package content

import (
	"fmt"
	"sort"
	"strings"
)

// checkSequence reports positions that do not form the contiguous sequence
// 1..N, where N is the number of items.
func checkSequence(r *report, list, field string, values []int) {
	n := len(values)
	if n == 0 {
		return
	}
	seen := make(map[int]int, n)
	for i, v := range values {
		if v < 1 {
			// already reported by the gte=1 tag
			continue
		}
		if v > n {
			r.add(fmt.Sprintf("%s[%d].%s", list, i, field), "%s %d is outside 1..%d", field, v, n)
			continue
		}
		if first, dup := seen[v]; dup {
			r.add(fmt.Sprintf("%s[%d].%s", list, i, field), "duplicate %s %d (also at index %d)", field, v, first)
			continue
		}
		seen[v] = i
	}
	var missing []string
	for want := 1; want <= n; want++ {
		if _, ok := seen[want]; !ok {
			missing = append(missing, fmt.Sprint(want))
		}
	}
	if len(missing) > 0 {
		r.add(list, "%s values must form 1..%d without gaps; missing %s", field, n, strings.Join(missing, ", "))
	}
}

// checkUnique reports repeated non-empty values of an item field.
func checkUnique(r *report, list, field string, values []string) {
	seen := make(map[string]int, len(values))
	for i, v := range values {
		if v == "" {
			continue
		}
		if first, dup := seen[v]; dup {
			r.add(fmt.Sprintf("%s[%d].%s", list, i, field), "duplicate %s (also at index %d)", field, first)
			continue
		}
		seen[v] = i
	}
}

func checkImage(r *report, m *Media) {
	if m != nil && m.Kind != "" && m.Kind != "image" {
		r.add("image.kind", "must be image")
	}
}

func checkDistinct(r *report, path, a, b string) {
	if a == "" || b == "" {
		return
	}
	if strings.EqualFold(strings.TrimSpace(a), strings.TrimSpace(b)) {
		r.add(path, "must differ from its counterpart")
	}
}

func stepOrders(steps []Step) []int {
	out := make([]int, len(steps))
	for i, s := range steps {
		out[i] = s.Order
	}
	return out
}

func positions(items []Positioned) []int {
	out := make([]int, len(items))
	for i, it := range items {
		out[i] = it.Position
	}
	return out
}

func sortedKeys(m map[int]bool) []int {
	keys := make([]int, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Ints(keys)
	return keys
}
