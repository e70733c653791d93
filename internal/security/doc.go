// Package security derives the posture report returned by
// credkit.Engine.SecurityReport from a flattened view of the configuration.
//
// # What this package must NOT do
//
//   - Import credkit or read secrets. Inputs carry only non-secret settings.
package security
