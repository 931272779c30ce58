/*
Package ports defines the driven ports (interfaces) of the PIE worker runtime.

These interfaces decouple the worker from graph storage, message transport and
result publication, so the same worker runs in-process, across processes, or
against test doubles.

# Key Interfaces

  - Fragment: a read-only graph partition with global/local id mapping.
  - Transport / Endpoint: group membership and the barrier-synchronized exchange.
  - ResultStore: keyed publication of finished Context snapshots.
  - DistributedLocker: cross-process mutual exclusion (guards the program loader).
*/
package ports
