// Package language normalizes narration and caption language codes.
//
// Codes arrive from briefs and configuration as ISO 639-1, ISO 639-2, BCP 47
// tags or English names. Everything is reduced to ISO 639-1 before it reaches
// the translator or the caption renderer, and casing follows the target
// language.
package language
