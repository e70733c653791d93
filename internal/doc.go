// Package internal holds random code and state generation plus secret
// digests used by the credkit stores.
package internal
