// Package syncer owns a reconciliation run end to end: fetch both
// libraries, resolve identity for unmatched entries, generate the
// changelog, apply it, and report what happened. The Report is the
// operator-facing outcome; logs exist for forensics, not for results.
package syncer
