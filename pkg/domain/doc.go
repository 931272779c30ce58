/*
Package domain contains the core types shared by the PIE worker runtime.

It defines the lifecycle states of a worker, the communication and parallelism
specs it is configured with, the message and vote shapes exchanged at every
superstep barrier, and the structured error taxonomy returned across the worker
boundary. The package is free of I/O and of any transport or storage concern.

# Key Entities

  - WorkerState: Uninitialized -> Ready -> Evaluating -> Ready ... -> Finalized,
    with Poisoned as the sink for fatal failures.
  - CommSpec / ParallelSpec: group membership and intra-worker concurrency.
  - Message, Vote, RoundOutcome: what crosses the barrier each round.
  - Error: a kind (configuration, communication, program, argument, internal)
    plus cause.
  - ResultView: a published snapshot of a finished Context.
*/
package domain
