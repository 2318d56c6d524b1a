/*
Package worker drains a work queue with a fixed set of goroutines.

# Worker

Each Worker loops over its queue:

  - a failed Pop means no more work will arrive, and the worker exits
  - a sentinel ends the worker without being processed
  - an item popped after Stop is counted as skipped
  - any other item is run through the Transform

The transform is executed by a retry.RetryExecutor with panic recovery. A
panic becomes a *types.ItemError with reason panic. Failures are passed to
an ErrorHandler from internal/errors. If the handler returns an error the
worker reports it through OnFatal and keeps draining; the caller decides
whether to abort the run.

Stop is a non-blocking request. It is observed at the top of the loop, so an
item already being transformed always completes. Stop also cancels the
transform context, which aborts a retry back-off in progress.

# Pool

Pool starts Size workers against one queue and aggregates their counters.
Workers are numbered from zero.

	pool, err := worker.NewPool(q, &worker.PoolConfig{
		Size:      4,
		Transform: imaging.NewInverter(),
	})
	if err != nil {
		return err
	}
	if err := pool.Start(ctx); err != nil {
		return err
	}
	defer pool.Stop()
	return pool.Wait(ctx)
*/
package worker
