// Package enrich runs the bounded-concurrency enrichment pipeline: it loads
// every person ID from an IdentifierSource, fans the IDs out to a fixed pool
// of workers that each fetch one attribute per ID, and fans the successful
// attributes back into a single mapping.
//
// # Pipeline
//
//	IdentifierSource → WorkQueue → W workers → ResultStore → Result
//
// The queue is filled once before any worker starts, so workers never wait
// for new work: a worker exits the first time TryDequeue reports empty.
//
// # Failures
//
// A failure fetching a single ID is logged, counted and recorded in
// Result.Failures; the run carries on with the next ID. Only a failure of the
// IdentifierSource aborts the run (ErrSourceUnavailable). Setting
// Config.FailFast switches to abort-on-first-failure.
//
// # Backoff
//
// When the attribute service answers with a rate-limit error, the worker
// pauses the shared ratelimit.Gate for the requested duration. Every worker
// checks the gate before claiming the next ID, so the whole pool backs off
// together. The rate-limited ID is retried by the same worker once the gate
// opens.
//
// # Usage
//
//	e := enrich.New(src, c, nil, enrich.DefaultConfig())
//	ages, err := e.GetPeopleInfo(ctx)
package enrich
