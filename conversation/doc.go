// Package conversation implements the turn-taking orchestration core: the
// state machine that decides who speaks next, what context they receive, how
// termination is detected, and how provider failures are surfaced without
// corrupting conversation state. One Orchestrator owns one conversation; the
// Manager keys orchestrators by id for the HTTP boundary.
package conversation
