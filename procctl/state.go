// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package procctl

import "fmt"

// State is the progress of a launch through the controller.
type State int

const (
	Unresolved State = iota
	PackagesFlattened
	EnvironmentComposed
	ActionsApplied
	ActionsRolledBack
	Replaced
	SpawnedRunning
	SpawnedDone
	// Detached is the launched state of a sibling process.
	Detached
)

func (s State) String() string {
	switch s {
	case Unresolved:
		return "unresolved"
	case PackagesFlattened:
		return "packages-flattened"
	case EnvironmentComposed:
		return "environment-composed"
	case ActionsApplied:
		return "actions-applied"
	case ActionsRolledBack:
		return "actions-rolled-back"
	case Replaced:
		return "replaced"
	case SpawnedRunning:
		return "spawned-running"
	case SpawnedDone:
		return "spawned-done"
	case Detached:
		return "detached"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Launched reports whether a process was started.
func (s State) Launched() bool {
	return s >= Replaced
}
