// Package competition implements the competition-mode task scheduler.
//
// A Runtime multiplexes the robot's lifecycle phases (never-connected,
// disconnected, connected, and the disabled/autonomous/driver match modes)
// onto a single piece of user-owned shared state. Exactly one phase task is
// alive at any instant; the previous task is always cancelled and discarded
// before the next one is constructed, so the current task has exclusive
// access to the shared state for its whole life.
//
// The Runtime is driven cooperatively: each Step polls the status source,
// polls the running task at most once, and reconstructs the task on phase
// changes, always in that order. Run hosts the step loop on a ticker.
//
// Phase behavior can be supplied either as five per-phase task factories on
// a Builder, or as a behavior object implementing Compete.
package competition
