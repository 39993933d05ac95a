// Package live orchestrates a two-channel transcription session: the
// user's microphone ("Me") and the system's loopback audio ("Them").
//
// # Data Flow
//
//	Mic PCM ───→ Echo Canceller ──→ Me recognition session ──┐
//	System PCM ─┬─────────────────→ Them recognition session ─┤
//	            └─ (echo reference)                           │
//	                                          merged events    │
//	                                               │           │
//	                                         Turn Debouncer ◄──┘
//	                                               │
//	                                     Conversation Ledger
//	                                               │
//	                                      Analysis Scheduler
//
// The Manager is the single control surface: it starts and stops the
// pipeline, accepts audio frames, and publishes typed events (status,
// transcripts, analysis results) on one buffered egress channel.
package live
