// Package types defines the work item and the collaborator interfaces the
// queue protocol is built around.
package types

import (
	"context"
)

// WorkItem is one unit of work or a sentinel. It is a value type and is
// copied into and out of the queue.
type WorkItem struct {
	// Source is the file to read
	Source string

	// Destination is the file to write
	Destination string

	sentinel bool
}

// NewWorkItem creates a work item for a source/destination pair
func NewWorkItem(source, destination string) WorkItem {
	return WorkItem{Source: source, Destination: destination}
}

// Sentinel returns the in-band "no more work" marker
func Sentinel() WorkItem {
	return WorkItem{sentinel: true}
}

// IsSentinel reports whether the item is a termination marker
func (w WorkItem) IsSentinel() bool {
	return w.sentinel
}

// Eligibility decides whether a discovered file becomes a work item
type Eligibility interface {
	IsEligible(path string) bool
}

// EligibilityFunc adapts a function to Eligibility
type EligibilityFunc func(path string) bool

// IsEligible calls f(path)
func (f EligibilityFunc) IsEligible(path string) bool {
	return f(path)
}

// PathMapper derives the destination for a source file. Failures are
// recoverable: the producer logs and skips the entry. ctx carries the
// producer's task marker.
type PathMapper interface {
	MapOutputPath(ctx context.Context, source string) (string, error)
}

// PathMapperFunc adapts a function to PathMapper
type PathMapperFunc func(ctx context.Context, source string) (string, error)

// MapOutputPath calls f(ctx, source)
func (f PathMapperFunc) MapOutputPath(ctx context.Context, source string) (string, error) {
	return f(ctx, source)
}

// Transform executes the domain operation for one work item. A returned
// error is a per-item failure and never stops the worker.
type Transform interface {
	Transform(ctx context.Context, source, destination string) error
}

// TransformFunc adapts a function to Transform
type TransformFunc func(ctx context.Context, source, destination string) error

// Transform calls f(ctx, source, destination)
func (f TransformFunc) Transform(ctx context.Context, source, destination string) error {
	return f(ctx, source, destination)
}
