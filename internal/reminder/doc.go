// Package reminder implements the guild-scoped bump reminder lifecycle.
//
// # Overview
//
// A guild is either unarmed or armed. Arming persists a pending record and
// registers a one-shot job in the timer registry; firing delivers the
// reminder and moves the record to a terminal status (sent or cancelled).
// A second arm for the same guild supersedes the first.
//
// Two views of state exist on purpose:
//
//   - The coordinator's in-memory map answers "is a reminder armed right now".
//     It is rebuilt empty on every restart.
//   - The durable pending record answers "what should happen after a restart".
//     RestoreOnStartup reconciles the two: duplicates are collapsed to the
//     newest record, overdue reminders fire immediately, future ones re-arm.
//
// Pending records are never deleted, only transitioned, so a crash cannot
// silently lose a scheduled reminder.
package reminder
