// Package permission defines the fixed role set and the authority strings
// each role grants.
//
// # Roles
//
//   - [RoleUser]: read-only access.
//   - [RoleHR], [RoleManager]: read and update.
//   - [RoleAdmin]: read, create and update.
//   - [RoleSuperUser]: everything, including delete.
//
// The table is immutable and defined at compile time. Lookups are pure and
// safe for concurrent use.
//
// # What this package must NOT do
//
//   - Access a repository, the network or any clock.
//   - Import portalauth, jwt or middleware.
package permission
