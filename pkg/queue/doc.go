/*
Package queue provides the shared work queue between a producer and a pool of workers.

# Overview

Queue is a FIFO mailbox guarded by a single mutex and condition variables. Besides the
items themselves it tracks how many producers are still active and whether the queue
has been stopped, which together decide when a blocked Pop must give up.

# Termination Signals

Two independent signals tell workers that no more work will follow:

  - Producer completion: SetProducerCount registers the expected producers and each
    ProducerFinished call decrements the count. When it reaches zero every blocked
    popper is woken, and Pop on an empty queue returns false.
  - Sentinels: AddSentinel pushes an in-band marker. A worker that pops one exits
    without processing it.

Stop is the third, unconditional path used during cancellation: an empty stopped
queue never blocks.

# Capacity

The default queue is unbounded, so a fast producer can grow it without limit.
WithCapacity enables backpressure: Push waits for room, and Stop releases any
pusher still waiting.

# Usage

	q := queue.New(queue.WithCapacity(256))
	if err := q.SetProducerCount(1); err != nil {
		return err
	}

	go func() {
		for _, item := range items {
			_ = q.Push(item)
		}
		_ = q.AddSentinel()
		_ = q.ProducerFinished()
	}()

	for {
		item, ok := q.Pop()
		if !ok || item.IsSentinel() {
			break
		}
		process(item)
	}

Size, IsFinished and Stats are snapshots intended for progress reporting only.
*/
package queue
