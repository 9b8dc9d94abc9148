package sections

import (
	"errors"
	"fmt"
)

// ErrInvalidSpecStructure is returned when the builder input is not an array of topic records.
var ErrInvalidSpecStructure = errors.New("invalid spec structure: expected an array of topic records")

// TopicProcessingError describes a topic that was skipped during a build pass.
type TopicProcessingError struct {
	Index  int // 1-based position in the input
	Reason string
}

func (e *TopicProcessingError) Error() string {
	return fmt.Sprintf("topic %d skipped: %s", e.Index, e.Reason)
}

// IdentifierResolutionError describes a raw identifier that produced no config type.
type IdentifierResolutionError struct {
	Topic string
	Ref   any
}

func (e *IdentifierResolutionError) Error() string {
	return fmt.Sprintf("identifier %v in topic %q could not be resolved", e.Ref, e.Topic)
}
