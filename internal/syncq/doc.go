// Package syncq delivers locally saved entries to the remote sync endpoint.
//
// # Triggers
//
// A run is started by connectivity restoration, the periodic background
// sync ticker, or an explicit SYNC_NOW message. Runs never overlap: a
// trigger that arrives mid-run waits for the run to finish and then reads
// the pending set again.
//
// # Delivery
//
// Each pending entry is POSTed on its own, oldest first, as JSON:
//
//	POST <endpoint>
//	Content-Type: application/json
//	Idempotency-Key: <entry uuid>
//
//	{"date":"2025-03-14T09:30:00Z","moodValue":7,"mood":"calm",...}
//
// Any 2xx marks the entry synced. Anything else is logged and the entry
// stays pending for the next run.
//
// # Remote Contract
//
// The endpoint must treat repeated deliveries with the same Idempotency-Key
// as one. An entry can be delivered twice when the process dies between a
// successful POST and the local mark. Within one process, the Ledger remembers
// such entries for a TTL so a retry only re-marks them.
package syncq
