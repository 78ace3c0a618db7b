// Package core holds the contracts shared by the webhook pipeline: the event
// and decoder interfaces, the configuration model, the error envelope and the
// generic structured value used for open payload fields. Processor packages
// (btcpay, lnbits) and the transport shell depend on core; core depends on
// neither.
package core
