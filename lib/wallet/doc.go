// Package wallet maps wallet names to stores. A wallet counts as initialized
// once a record below FederationPrefix exists, which is written when the
// wallet joins its first federation.
package wallet
