// Package config loads, normalizes, and validates mmoto configuration data.
//
// It supplies repository defaults for every assembly, reconcile, caption and
// timing threshold, expands user paths (including tilde shortcuts), reads TOML
// files, and honours environment fallbacks such as PEXELS_API_KEY and
// OPENAI_API_KEY.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths, canonical log formats, and clear validation errors.
package config
