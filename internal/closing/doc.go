// Package closing appends an optional closing clip to the captioned video.
//
// Appending walks a chain of join strategies from the most compatible (a
// re-encoding concat filter that also scales the closing clip and fills
// missing audio with silence) down to stream-copy joins. When every join
// fails the main video is copied through so the run still ends with a file.
package closing
