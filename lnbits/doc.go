// Package lnbits models LNbits payment webhooks. The payload carries no type
// marker; a body is a PaymentEvent when every required field is present and
// well typed, and Unsupported otherwise.
package lnbits
