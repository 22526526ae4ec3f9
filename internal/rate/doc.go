// Package rate locks out repeated failed logins on the development server
// using Redis fixed-window counters.
//
// Each failure INCRs a per-username and, when known, a per-IP key; the first
// hit in a window sets the key's TTL. Keys live under "<prefix>:login:u:" and
// "<prefix>:login:ip:".
package rate
