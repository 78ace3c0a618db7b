// Package btcpay models BTCPay Server webhooks. Payloads are a union tagged
// on "type"; tags outside the known set decode to Unsupported. The package
// also carries the Greenfield invoice lookup used to enrich settlement
// events.
package btcpay
