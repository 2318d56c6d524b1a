// Package producer discovers work by walking a directory tree.
//
// A Producer registers itself as the queue's single producer when started,
// walks its root in lexical order and pushes one work item per regular file
// accepted by its Eligibility filter. Files whose destination cannot be
// mapped are logged and skipped; unreadable directories are logged and their
// subtree abandoned. Neither stops the walk.
//
// Whether the walk ends naturally or through Stop or context cancellation,
// the producer pushes exactly one sentinel and then calls ProducerFinished,
// in that order. Stop is idempotent and also stops the queue.
package producer
