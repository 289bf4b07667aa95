// Package storage provides the key-value store backing engine state:
// tracked-post mappings, comment caps (TTL-bound), and the applied config
// snapshot. Backends: sqlite (default), postgres, memory.
package storage
