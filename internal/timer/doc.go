// Package timer provides the in-process job registry used by the reminder
// coordinator and housekeeping tasks.
//
// Jobs are registered under a logical id (e.g. "bump:<guild>" or
// "reminders:cleanup"). Ids are intended to be stable and human readable so
// that jobs can be replaced (upserted) and removed deterministically.
//
// Two job kinds share one registry map:
//
//   - Repeating jobs, driven by robfig/cron. Specs accept 5-field cron
//     expressions and descriptors like "@hourly" or "@every 55m".
//   - One-shot jobs, driven by time.AfterFunc. A negative or zero delay fires
//     as soon as possible.
//
// Registering either kind under an existing id stops and replaces the old job.
// Task failures and panics are contained and logged; they never affect other
// jobs or the registry itself.
package timer
