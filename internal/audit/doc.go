// Package audit classifies each host's final rotation state and records it.
//
// Every run produces one CSV file, <dir>/<tag>_rsa_regenerate.csv, with one
// ';'-separated row per host:
//
//	host;installed;verified;oldKeyExisted;oldKeyRemoved;comment
//
// The comment column carries the terminal [Outcome] label, followed by any
// host-scoped vault problem that needs manual attention.
//
// When an [Auditor] is configured the same rows are also stored in the
// rotation_records table so past runs can be queried, and entries older than
// the retention period are purged with [Auditor.PurgeOlderThan].
//
// Audit log lines use the [audit] prefix.
package audit
