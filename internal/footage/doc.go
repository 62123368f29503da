// Package footage searches stock-video providers and downloads clips into the
// run's project folder.
//
// PexelsClient and PixabayClient implement Provider. Fetcher fans out one
// search per keyword and provider, retries transient failures with backoff,
// downloads a bounded number of candidates per keyword concurrently and
// probes every file. Provider failures never abort a run: a keyword that
// yields nothing is dropped and reported as a degradation.
package footage
