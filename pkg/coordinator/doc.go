// Package coordinator runs one image batch job end to end.
//
// Run creates the queue, the producer and the worker pool, starts the
// producer, waits StartGrace, then starts the pool and polls every
// PollInterval. The run completes naturally once the producer has finished
// and the queue is drained.
//
// Cancelling the context passed to Run, or a fatal failure under FailFast,
// triggers the shutdown sequence instead:
//
//  1. stop the producer
//  2. push one sentinel per worker
//  3. ask every worker to stop
//  4. wait DrainWait
//  5. stop the queue
//
// The producer and then every worker are always joined before Run returns
// its Summary. Every log line of a run carries the run_id attribute.
package coordinator
