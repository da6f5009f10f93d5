// Package external talks to the third-party services the journal uses:
// Open-Meteo for the weather snapshot stored with each entry, a list of
// quote providers for the daily quote, and ipapi for the user's country.
//
// All calls are bounded by a timeout (5s by default) and resolve to a
// fallback instead of failing the caller: the last known weather, a quote
// from a fixed list, or a default location.
package external
