// Package oauth builds the outbound authorization redirect for a third-party
// OAuth 2.0 provider and parses its callback.
//
// The package never contacts the token endpoint. Exchanging the returned code
// is left to the caller, who can use OAuth2Config for it.
package oauth
