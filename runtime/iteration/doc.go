// Package iteration executes the branches of a for-each activity.
//
// A Plan binds the static for-each node to evaluated bounds, a Counter hands
// out distinct counter values to concurrent branches and a Tracker applies
// the completion condition as branches report back. Driver ties them
// together for sequential and parallel execution.
package iteration
