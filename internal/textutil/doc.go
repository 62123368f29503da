// Package textutil turns provider-supplied strings into safe file name
// tokens.
package textutil
