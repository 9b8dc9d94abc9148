package sections

import (
	"encoding/json"
	"fmt"
)

// TopicDecode is the result of validating one element of the topic list.
// It is either a ValidTopic or a RejectedTopic.
type TopicDecode interface {
	topicDecode()
}

// ValidTopic is a topic record that passed validation.
type ValidTopic struct {
	Index int // 1-based position in the input
	Topic RawTopic
	// BadRefs holds identifier entries that were not strings.
	BadRefs []any
}

// RejectedTopic is an input element that does not look like a topic record.
type RejectedTopic struct {
	Index  int
	Reason string
}

func (ValidTopic) topicDecode()    {}
func (RejectedTopic) topicDecode() {}

// DecodeTopics validates every element of input. input may be a decoded JSON
// array ([]any), a slice of JSON objects, a []RawTopic, or raw JSON bytes.
// Anything that is not an array yields ErrInvalidSpecStructure.
func DecodeTopics(input any) ([]TopicDecode, error) {
	switch v := input.(type) {
	case []RawTopic:
		out := make([]TopicDecode, len(v))
		for i, t := range v {
			out[i] = decodeTyped(i+1, t)
		}
		return out, nil
	case []map[string]any:
		out := make([]TopicDecode, len(v))
		for i, m := range v {
			out[i] = decodeObject(i+1, m)
		}
		return out, nil
	case []any:
		out := make([]TopicDecode, len(v))
		for i, el := range v {
			m, ok := el.(map[string]any)
			if !ok {
				out[i] = RejectedTopic{Index: i + 1, Reason: fmt.Sprintf("element is %T, not an object", el)}
				continue
			}
			out[i] = decodeObject(i+1, m)
		}
		return out, nil
	case json.RawMessage:
		return decodeRaw(v)
	case []byte:
		return decodeRaw(v)
	default:
		return nil, fmt.Errorf("%w: got %T", ErrInvalidSpecStructure, input)
	}
}

func decodeRaw(data []byte) ([]TopicDecode, error) {
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSpecStructure, err)
	}
	if _, ok := v.([]any); !ok {
		return nil, fmt.Errorf("%w: got %T", ErrInvalidSpecStructure, v)
	}
	return DecodeTopics(v)
}

func decodeTyped(index int, t RawTopic) TopicDecode {
	if t.Title == "" && t.Anchor == "" {
		return RejectedTopic{Index: index, Reason: "missing title and anchor"}
	}
	return ValidTopic{Index: index, Topic: t}
}

func decodeObject(index int, m map[string]any) TopicDecode {
	title, _ := m["title"].(string)
	anchor, _ := m["anchor"].(string)
	if title == "" && anchor == "" {
		return RejectedTopic{Index: index, Reason: "missing title and anchor"}
	}

	raw, present := m["identifiers"]
	if !present {
		return RejectedTopic{Index: index, Reason: "missing identifiers"}
	}
	list, ok := raw.([]any)
	if !ok {
		if strs, isStrings := raw.([]string); isStrings {
			return ValidTopic{Index: index, Topic: RawTopic{Title: title, Anchor: anchor, Identifiers: strs}}
		}
		return RejectedTopic{Index: index, Reason: fmt.Sprintf("identifiers is %T, not an array", raw)}
	}

	vt := ValidTopic{Index: index, Topic: RawTopic{Title: title, Anchor: anchor}}
	vt.Topic.Identifiers = make([]string, 0, len(list))
	for _, ref := range list {
		s, ok := ref.(string)
		if !ok {
			vt.BadRefs = append(vt.BadRefs, ref)
			continue
		}
		vt.Topic.Identifiers = append(vt.Topic.Identifiers, s)
	}
	return vt
}
