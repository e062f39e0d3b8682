// Package insights recovers structured meeting insights from free-form model
// output.
//
// Small local models often return JSON that is truncated, double-encoded or
// missing quotes. Parse tries a strict decode first, then brace and key
// repair, then extraction from the first '{', and finally falls back to a
// fixed-shape result built from the raw text.
package insights
