// Package async provides goroutine helpers for background work.
//
// SafeGo runs a single fire-and-forget task with a timeout and panic
// recovery, logging failures through the application logger.
//
// WorkerPool runs queued tasks on a fixed set of workers. The audit
// package uses it to move sink writes off the request path, and Shutdown
// drains whatever is still queued so that events are not lost on exit.
package async
