// Package schedule fires catalog schedule entries as workflow triggers.
//
// Each entry runs on its cron expression through the same workflow
// handler the socket path uses, inheriting its per-call timeout and
// no-retry behavior. Outcomes are logged and counted per workflow.
package schedule
