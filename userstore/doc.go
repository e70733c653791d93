// Package userstore groups credkit.UserProvider implementations.
//
//   - memstore keeps records in process memory, for tests and single-node
//     deployments.
//   - postgres persists records in PostgreSQL through pgx with goose
//     migrations.
package userstore
