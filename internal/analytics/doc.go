// Package analytics derives client-visible training metrics from plan,
// session and payment records: a per-day training volume series, a monthly
// adherence ratio and a lesson-credit balance.
//
// Every function is a pure computation over already-materialized records.
// Nothing here performs I/O, keeps shared state or logs; problems found in
// the data are returned to the caller as values.
package analytics
