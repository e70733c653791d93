// Package token issues and verifies short-lived bearer tokens.
//
// Tokens are compact JWTs carrying sub, iat, exp and a random jti. They are
// stateless: validity is a pure function of the signature, the claims and the
// current time. Expiry is strict, a token is rejected once now >= exp and no
// clock-skew leeway is applied.
package token
