/*
Package observability turns worker lifecycle hooks into Prometheus metrics and
structured log records.

Both producers return a domain.LifecycleHooks value; combine them with
LifecycleHooks.Merge and pass the result to pie.WithLifecycleHooks.
*/
package observability
