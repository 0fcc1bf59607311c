// Package timeline merges pages from a remote feed into a local timeline.
//
// Two engines share one contract:
//
//   - CachedEngine merges into the durable store and detects server-side
//     deletions during Refresh.
//   - VolatileEngine merges into a caller-owned in-memory List and skips
//     deletion detection.
//
// # Directions
//
// Load takes a Direction. Refresh pulls the newest page, Append pages
// older content below the bottom row, and Prepend is a no-op (new content
// only ever arrives through Refresh).
//
// # Gaps
//
// When a Refresh page is full and does not reach the previously cached top,
// the content between them is unknown. The engine writes the page minus its
// oldest item and puts a gap placeholder at that oldest item's id. A
// placeholder at X means X exists remotely and everything from X down to
// the next cached row is unknown. FillGap(X) re-fetches X and below.
//
// # Concurrency
//
// All loads for one account run one at a time through a Gate; identical
// concurrent requests share one execution. Fetches stop once every caller
// sharing them has cancelled. Once the first write starts, the merge runs
// to completion.
package timeline
