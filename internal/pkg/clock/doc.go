// Package clock provides a tiny time abstraction.
//
// Anything that compares timestamps (code windows, rate windows, session
// expiry) reads time through Clocker so tests can move time explicitly.
package clock
