package domain

import (
	"encoding/json"
	"fmt"
	"reflect"
	"sort"
	"strings"
)

// DiffChangeType classifies one VersionDiff entry.
type DiffChangeType string

const (
	DiffAdded    DiffChangeType = "added"
	DiffRemoved  DiffChangeType = "removed"
	DiffModified DiffChangeType = "modified"
)

var diffChangeRank = map[DiffChangeType]int{
	DiffAdded:    0,
	DiffRemoved:  1,
	DiffModified: 2,
}

// VersionDiff is one unit of difference between two content trees.
// Scalar modifications carry a textual Diff alongside OldItem/NewItem;
// composite values carry the full subtree in OldItem/NewItem only.
type VersionDiff struct {
	Section    string         `json:"section"`
	ChangeType DiffChangeType `json:"change_type"`
	Diff       string         `json:"diff,omitempty"`
	OldItem    any            `json:"old_item,omitempty"`
	NewItem    any            `json:"new_item,omitempty"`
}

// CompareContent computes the ordered structural diff between two content
// trees. It is a pure function: identical inputs always produce identical
// output, and CompareContent(a, a) is empty.
func CompareContent(oldContent, newContent map[string]any) []VersionDiff {
	diffs := compareMappings("", oldContent, newContent)

	sort.SliceStable(diffs, func(i, j int) bool {
		if diffs[i].Section != diffs[j].Section {
			return diffs[i].Section < diffs[j].Section
		}
		return diffChangeRank[diffs[i].ChangeType] < diffChangeRank[diffs[j].ChangeType]
	})

	return diffs
}

func compareMappings(prefix string, oldMap, newMap map[string]any) []VersionDiff {
	var diffs []VersionDiff

	keys := make([]string, 0, len(oldMap)+len(newMap))
	seen := map[string]bool{}
	for key := range oldMap {
		keys = append(keys, key)
		seen[key] = true
	}
	for key := range newMap {
		if !seen[key] {
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)

	for _, key := range keys {
		path := key
		if prefix != "" {
			path = prefix + "." + key
		}

		oldValue, inOld := oldMap[key]
		newValue, inNew := newMap[key]

		switch {
		case !inOld:
			diffs = append(diffs, VersionDiff{Section: path, ChangeType: DiffAdded, NewItem: newValue})
		case !inNew:
			diffs = append(diffs, VersionDiff{Section: path, ChangeType: DiffRemoved, OldItem: oldValue})
		default:
			diffs = append(diffs, compareValues(path, oldValue, newValue)...)
		}
	}

	return diffs
}

func compareValues(path string, oldValue, newValue any) []VersionDiff {
	if reflect.DeepEqual(oldValue, newValue) {
		return nil
	}

	oldMap, oldIsMap := oldValue.(map[string]any)
	newMap, newIsMap := newValue.(map[string]any)
	if oldIsMap && newIsMap {
		return compareMappings(path, oldMap, newMap)
	}

	oldList, oldIsList := oldValue.([]any)
	newList, newIsList := newValue.([]any)
	if oldIsList && newIsList {
		return compareLists(path, oldList, newList)
	}

	if oldIsMap || newIsMap || oldIsList || newIsList {
		// Type changed; report the full subtrees rather than recursing.
		return []VersionDiff{{Section: path, ChangeType: DiffModified, OldItem: oldValue, NewItem: newValue}}
	}

	return []VersionDiff{{
		Section:    path,
		ChangeType: DiffModified,
		Diff:       scalarDiff(oldValue, newValue),
		OldItem:    oldValue,
		NewItem:    newValue,
	}}
}

func compareLists(path string, oldList, newList []any) []VersionDiff {
	oldIDs, oldByID := indexByIdentity(oldList)
	newIDs, newByID := indexByIdentity(newList)
	if oldByID != nil && newByID != nil {
		return compareListsByIdentity(path, oldIDs, oldByID, newIDs, newByID)
	}
	return compareListsByPosition(path, oldList, newList)
}

// indexByIdentity indexes list elements by their "id" field when every
// element is a mapping carrying a distinct scalar id; otherwise nil.
func indexByIdentity(list []any) ([]string, map[string]any) {
	if len(list) == 0 {
		return nil, nil
	}
	ids := make([]string, 0, len(list))
	byID := make(map[string]any, len(list))
	for _, item := range list {
		mapping, ok := item.(map[string]any)
		if !ok {
			return nil, nil
		}
		raw, ok := mapping["id"]
		if !ok {
			return nil, nil
		}
		var id string
		switch typed := raw.(type) {
		case string:
			id = typed
		case float64:
			id = strings.TrimRight(strings.TrimRight(fmt.Sprintf("%f", typed), "0"), ".")
		default:
			return nil, nil
		}
		if _, dup := byID[id]; dup {
			return nil, nil
		}
		ids = append(ids, id)
		byID[id] = mapping
	}
	return ids, byID
}

func compareListsByIdentity(path string, oldIDs []string, oldByID map[string]any, newIDs []string, newByID map[string]any) []VersionDiff {
	var diffs []VersionDiff

	for _, id := range oldIDs {
		elemPath := fmt.Sprintf("%s[id=%s]", path, id)
		newItem, inNew := newByID[id]
		if !inNew {
			diffs = append(diffs, VersionDiff{Section: elemPath, ChangeType: DiffRemoved, OldItem: oldByID[id]})
			continue
		}
		if !reflect.DeepEqual(oldByID[id], newItem) {
			diffs = append(diffs, VersionDiff{Section: elemPath, ChangeType: DiffModified, OldItem: oldByID[id], NewItem: newItem})
		}
	}

	for _, id := range newIDs {
		if _, inOld := oldByID[id]; !inOld {
			elemPath := fmt.Sprintf("%s[id=%s]", path, id)
			diffs = append(diffs, VersionDiff{Section: elemPath, ChangeType: DiffAdded, NewItem: newByID[id]})
		}
	}

	return diffs
}

func compareListsByPosition(path string, oldList, newList []any) []VersionDiff {
	var diffs []VersionDiff

	shared := len(oldList)
	if len(newList) < shared {
		shared = len(newList)
	}

	for i := 0; i < shared; i++ {
		diffs = append(diffs, compareValues(fmt.Sprintf("%s[%d]", path, i), oldList[i], newList[i])...)
	}
	for i := shared; i < len(oldList); i++ {
		diffs = append(diffs, VersionDiff{Section: fmt.Sprintf("%s[%d]", path, i), ChangeType: DiffRemoved, OldItem: oldList[i]})
	}
	for i := shared; i < len(newList); i++ {
		diffs = append(diffs, VersionDiff{Section: fmt.Sprintf("%s[%d]", path, i), ChangeType: DiffAdded, NewItem: newList[i]})
	}

	return diffs
}

// scalarDiff renders a line-oriented textual diff between two scalar
// values, in unified prefix form.
func scalarDiff(oldValue, newValue any) string {
	ops := diffLines(scalarLines(oldValue), scalarLines(newValue))

	var builder strings.Builder
	for i, op := range ops {
		if i > 0 {
			builder.WriteString("\n")
		}
		builder.WriteString(op.prefix)
		builder.WriteString(op.line)
	}
	return builder.String()
}

func scalarLines(value any) []string {
	if value == nil {
		return nil
	}
	if text, ok := value.(string); ok {
		return splitLines(text)
	}
	encoded, err := json.Marshal(value)
	if err != nil {
		return []string{fmt.Sprintf("%v", value)}
	}
	return []string{string(encoded)}
}

func splitLines(input string) []string {
	lines := strings.Split(input, "\n")
	if len(lines) > 0 && lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}
	return lines
}

type diffOp struct {
	prefix string
	line   string
}

// diffLines walks a longest-common-subsequence table to emit keep,
// remove, and add operations.
func diffLines(base, target []string) []diffOp {
	m := len(base)
	n := len(target)
	dp := make([][]int, m+1)
	for i := range dp {
		dp[i] = make([]int, n+1)
	}

	for i := m - 1; i >= 0; i-- {
		for j := n - 1; j >= 0; j-- {
			if base[i] == target[j] {
				dp[i][j] = dp[i+1][j+1] + 1
			} else if dp[i+1][j] >= dp[i][j+1] {
				dp[i][j] = dp[i+1][j]
			} else {
				dp[i][j] = dp[i][j+1]
			}
		}
	}

	ops := make([]diffOp, 0, m+n)
	i, j := 0, 0
	for i < m && j < n {
		if base[i] == target[j] {
			ops = append(ops, diffOp{prefix: " ", line: base[i]})
			i++
			j++
			continue
		}

		if dp[i+1][j] >= dp[i][j+1] {
			ops = append(ops, diffOp{prefix: "-", line: base[i]})
			i++
		} else {
			ops = append(ops, diffOp{prefix: "+", line: target[j]})
			j++
		}
	}

	for i < m {
		ops = append(ops, diffOp{prefix: "-", line: base[i]})
		i++
	}

	for j < n {
		ops = append(ops, diffOp{prefix: "+", line: target[j]})
		j++
	}

	return ops
}
