// Package inbound routes decoded webhook events to per-type handlers.
//
// Events that carry a delivery key are claimed before their handler runs and
// completed afterwards, so a redelivered webhook is acknowledged without
// re-applying its side effect. A failed handler releases its claim so the
// sender's retry is processed.
package inbound
