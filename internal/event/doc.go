// Package event provides the foundational types for the quill event log.
//
// This package contains the event envelope, the versioned payload types,
// canonical JSON serialization, and content hashing. All other internal
// packages import event; event imports nothing internal. This ensures the
// event vocabulary remains the foundational layer with no circular
// dependencies.
//
// Key design constraints:
//   - Events are immutable facts; nothing in this package mutates state
//   - Payloads carry only primitive values - a payload must be sufficient
//     to derive state without a side lookup against derived tables
//   - All ordering uses the log's seq (logical clock), never timestamps;
//     timestamps on events are data, not ordering
//   - NO float types anywhere - use int64 for numbers
//   - All JSON tags use camelCase to match the wire schema
package event
