// Package audit moves audit events off the request path.
//
// A [Dispatcher] owns a bounded queue and a single worker that feeds a
// [Sink]. When the queue is full the dispatcher either drops and counts the
// event or waits for room, depending on [Config.DropIfFull].
//
// Events describe outcomes only. Plaintext passwords, hashes, reset codes,
// OAuth states and tokens never appear in them.
package audit
