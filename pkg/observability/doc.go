/*
Package observability provides tools for monitoring a mosaic engine.

It exposes Prometheus metrics and structured logging as lifecycle hooks, so
both can be attached to an engine with mosaic.WithLifecycleHooks.
*/
package observability
