// Package lightning assembles the webhook receiver: BTCPay Server and LNbits
// routes, the health endpoint, and the grant pipeline behind them.
package lightning
