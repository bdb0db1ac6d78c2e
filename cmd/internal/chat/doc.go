// Package chat contains Courier's conversation and message delivery core.
//
// It owns the domain model (two-party conversations, text-or-image messages
// with monotonic delivery status, per-participant unread counters), the
// durable Store boundary with memory/Postgres/Mongo implementations, and the
// delivery pipeline shared by the realtime gateway and the HTTP API so both
// paths stay in lockstep.
//
// The package is transport-free: fan-out happens through the Events seam,
// implemented by the realtime layer.
package chat
