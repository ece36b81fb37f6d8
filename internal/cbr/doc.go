// Package cbr provides a scope-based client for the REST interface of a myCBR
// similarity server.
//
// Usage:
//
//	client, err := cbr.New(ctx, "http://localhost:8080", cbr.WithTimeout(30*time.Second))
//	client.SetCasebase("cars")
//	client.SetFunction("default function")
//	hits, err := client.Retrieval().ByCaseID(ctx, "car_42", cbr.TopK(10))
//	attrs, err := client.Concepts().Attributes(ctx, cbr.InConcept("Car"))
//	ssm, err := client.Casebases().SelfSimilarity(ctx)
//
// Identifiers a call does not name are taken from the client's Defaults.
// Results are *table.Table values; similarity values are rounded to
// DefaultPrecision decimals unless Precision says otherwise.
package cbr
