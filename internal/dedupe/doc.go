// Package dedupe suppresses redelivered gateway events using a
// time-bounded cache of recently processed message keys.
package dedupe
