// Package analytics implements the clustering pipeline behind the dashboard's
// clustered map: mean imputation, standardization and k-means with k-means++
// seeding.
//
// Everything is deterministic for a given Options.Seed.
package analytics
