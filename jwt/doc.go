// Package jwt manages access-token issuance and stateless verification
// using configured signing keys and strict validation semantics suitable
// for low-latency authorization paths.
package jwt
