package domain

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// CloneContent deep-copies a content tree so callers can mutate freely.
func CloneContent(input map[string]any) map[string]any {
	if input == nil {
		return map[string]any{}
	}
	out := make(map[string]any, len(input))
	for key, value := range input {
		out[key] = cloneValue(value)
	}
	return out
}

func cloneValue(value any) any {
	switch typed := value.(type) {
	case map[string]any:
		return CloneContent(typed)
	case []any:
		out := make([]any, len(typed))
		for i, item := range typed {
			out[i] = cloneValue(item)
		}
		return out
	default:
		return typed
	}
}

// FlattenContent flattens a content tree into sorted "path: value" pairs.
// Nested keys join with dots, list elements use [idx] suffixes.
func FlattenContent(content map[string]any) ([]string, map[string]string, error) {
	flattened := map[string]string{}
	if len(content) > 0 {
		if err := flattenValue("", content, flattened); err != nil {
			return nil, nil, err
		}
	}

	keys := make([]string, 0, len(flattened))
	for key := range flattened {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	return keys, flattened, nil
}

func flattenValue(prefix string, value any, acc map[string]string) error {
	switch typed := value.(type) {
	case map[string]any:
		if len(typed) == 0 {
			if prefix != "" {
				acc[prefix] = "{}"
			}
			return nil
		}
		keys := make([]string, 0, len(typed))
		for key := range typed {
			keys = append(keys, key)
		}
		sort.Strings(keys)
		for _, key := range keys {
			nextPrefix := key
			if prefix != "" {
				nextPrefix = prefix + "." + key
			}
			if err := flattenValue(nextPrefix, typed[key], acc); err != nil {
				return err
			}
		}
	case []any:
		if len(typed) == 0 {
			if prefix != "" {
				acc[prefix] = "[]"
			}
			return nil
		}
		for idx, item := range typed {
			nextPrefix := fmt.Sprintf("%s[%d]", prefix, idx)
			if prefix == "" {
				nextPrefix = fmt.Sprintf("[%d]", idx)
			}
			if err := flattenValue(nextPrefix, item, acc); err != nil {
				return err
			}
		}
	case nil:
		if prefix != "" {
			acc[prefix] = "null"
		}
	default:
		if prefix == "" {
			return fmt.Errorf("content key missing for value %v", typed)
		}
		encoded, err := json.Marshal(typed)
		if err != nil {
			acc[prefix] = fmt.Sprintf("%v", typed)
		} else {
			acc[prefix] = string(encoded)
		}
	}

	return nil
}

type pathSegment struct {
	key   string
	index int
	isIdx bool
}

func parseSectionPath(section string) ([]pathSegment, error) {
	section = strings.TrimSpace(section)
	if section == "" {
		return nil, fmt.Errorf("%w: empty section path", ErrValidation)
	}

	var segments []pathSegment
	for _, part := range strings.Split(section, ".") {
		if part == "" {
			return nil, fmt.Errorf("%w: malformed section path %q", ErrValidation, section)
		}
		key := part
		var indexes []int
		for strings.HasSuffix(key, "]") {
			open := strings.LastIndex(key, "[")
			if open < 0 {
				return nil, fmt.Errorf("%w: malformed section path %q", ErrValidation, section)
			}
			idx, err := strconv.Atoi(key[open+1 : len(key)-1])
			if err != nil || idx < 0 {
				return nil, fmt.Errorf("%w: malformed list index in section path %q", ErrValidation, section)
			}
			indexes = append([]int{idx}, indexes...)
			key = key[:open]
		}
		if key == "" {
			return nil, fmt.Errorf("%w: malformed section path %q", ErrValidation, section)
		}
		segments = append(segments, pathSegment{key: key})
		for _, idx := range indexes {
			segments = append(segments, pathSegment{index: idx, isIdx: true})
		}
	}

	return segments, nil
}

// ApplyChange returns a copy of content with proposedText applied at the
// section path. Supported change types: replace (set the value), append
// (extend a string or list), remove (delete the mapping key).
func ApplyChange(content map[string]any, section string, changeType ProposalChangeType, proposedText string) (map[string]any, error) {
	segments, err := parseSectionPath(section)
	if err != nil {
		return nil, err
	}

	updated := CloneContent(content)

	// Walk to the parent of the target node.
	var parent any = updated
	for _, seg := range segments[:len(segments)-1] {
		parent, err = descend(parent, seg, section)
		if err != nil {
			return nil, err
		}
	}

	last := segments[len(segments)-1]
	switch changeType {
	case ProposalChangeReplace:
		if err := setAt(parent, last, proposedText, section, false); err != nil {
			return nil, err
		}
	case ProposalChangeAppend:
		if err := setAt(parent, last, proposedText, section, true); err != nil {
			return nil, err
		}
	case ProposalChangeRemove:
		if err := removeAt(parent, last, section); err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("%w: unsupported change type %q", ErrValidation, changeType)
	}

	return updated, nil
}

func descend(node any, seg pathSegment, section string) (any, error) {
	if seg.isIdx {
		list, ok := node.([]any)
		if !ok {
			return nil, fmt.Errorf("%w: section path %q indexes a non-list value", ErrValidation, section)
		}
		if seg.index >= len(list) {
			return nil, fmt.Errorf("%w: section path %q index out of range", ErrValidation, section)
		}
		return list[seg.index], nil
	}

	mapping, ok := node.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("%w: section path %q traverses a non-mapping value", ErrValidation, section)
	}
	child, exists := mapping[seg.key]
	if !exists {
		return nil, fmt.Errorf("%w: section path %q not present in content", ErrValidation, section)
	}
	return child, nil
}

func setAt(parent any, seg pathSegment, text string, section string, appendMode bool) error {
	if seg.isIdx {
		list, ok := parent.([]any)
		if !ok {
			return fmt.Errorf("%w: section path %q indexes a non-list value", ErrValidation, section)
		}
		if seg.index >= len(list) {
			return fmt.Errorf("%w: section path %q index out of range", ErrValidation, section)
		}
		list[seg.index] = combined(list[seg.index], text, appendMode)
		return nil
	}

	mapping, ok := parent.(map[string]any)
	if !ok {
		return fmt.Errorf("%w: section path %q traverses a non-mapping value", ErrValidation, section)
	}

	existing, exists := mapping[seg.key]
	if appendMode && exists {
		if list, isList := existing.([]any); isList {
			mapping[seg.key] = append(list, text)
			return nil
		}
		mapping[seg.key] = combined(existing, text, true)
		return nil
	}
	mapping[seg.key] = text
	return nil
}

func combined(existing any, text string, appendMode bool) any {
	if !appendMode {
		return text
	}
	if current, ok := existing.(string); ok && current != "" {
		return current + "\n\n" + text
	}
	return text
}

func removeAt(parent any, seg pathSegment, section string) error {
	if seg.isIdx {
		return fmt.Errorf("%w: removing list elements by index is not supported at %q", ErrValidation, section)
	}
	mapping, ok := parent.(map[string]any)
	if !ok {
		return fmt.Errorf("%w: section path %q traverses a non-mapping value", ErrValidation, section)
	}
	if _, exists := mapping[seg.key]; !exists {
		return fmt.Errorf("%w: section path %q not present in content", ErrValidation, section)
	}
	delete(mapping, seg.key)
	return nil
}

// LookupSection returns the value at a section path, if present.
func LookupSection(content map[string]any, section string) (any, bool) {
	segments, err := parseSectionPath(section)
	if err != nil {
		return nil, false
	}
	var node any = content
	for _, seg := range segments {
		next, err := descend(node, seg, section)
		if err != nil {
			return nil, false
		}
		node = next
	}
	return node, true
}
