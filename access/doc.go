// Package access records that an identity paid for a piece of content. Grants
// are idempotent on (identity, content) so webhook redelivery never creates a
// second row or a second notification.
package access
