// Package favicon resolves, validates, converts and persists website favicons.
//
// Pipeline overview:
//   - Normalizer turns dataset entries into IconTasks; entries without an absolute http(s) URL are excluded
//     before any work starts.
//   - Locator walks the fallback chain for one site: the well-known /favicon.ico path first, then <link> hints
//     in the site's HTML. Every candidate response must pass the same validity check (success status, minimum
//     body size, icon or PNG content type).
//   - Adapter passes icon payloads through untouched and re-encodes PNG payloads into a 32x32 icon container.
//   - Downloader runs the skip-if-exists, locate, confirm, adapt, persist cycle for one task and never returns
//     an error: every failure becomes a failed Outcome with a reason.
//   - Runner drives tasks sequentially in input order and folds outcomes into a BatchResult.
//
// Network access goes through the Fetcher interface and persistence through Sink, so the same pipeline works
// against the pooled colly fetcher, local disk, GCS, or in-memory fakes.
package favicon
