// Package scheduler turns schedules (cron, interval, one-shot) into tasks on the
// task engine. It only triggers; execution, overlap and retries belong to
// internal/task/engine.
package scheduler
