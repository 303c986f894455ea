// Package catalog defines the domain types, collaborator interfaces, and error
// taxonomy shared by the distribution catalog acquisition pipeline.
package catalog
