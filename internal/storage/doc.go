// Package storage persists the match event log: phase transitions, task
// faults and practice match markers, keyed by boot session so a post-match
// review can reconstruct what the robot did and when.
package storage
