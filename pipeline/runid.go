// ABOUTME: Run and invocation identifiers.
// ABOUTME: Run ids are ULIDs so they sort by start time; step invocations use random UUIDs.
package pipeline

import (
	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
)

// NewRunID returns a new lexically sortable run id.
func NewRunID() string {
	return ulid.Make().String()
}

// NewInvocationID returns a unique id for one step execution.
func NewInvocationID() string {
	return uuid.NewString()
}
