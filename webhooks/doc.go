// Package webhooks contains the inbound HTTP pipeline shared by every payment
// processor route.
//
// A request moves through a fixed sequence:
// header check -> raw body capture -> signature verification -> decode ->
// dispatch. Verification always runs over the captured bytes, and the body is
// restored so the decoder reads exactly what was signed.
package webhooks
