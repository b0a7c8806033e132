// Package proxy implements the cache-aware fetch pipeline at the heart of
// the gateway.
//
// For each inbound request the pipeline resolves the route's upstream
// target, consults the response cache (GET only), performs the upstream
// call, runs the rate-limit retry state machine on 429/403 responses,
// optionally converts PDF bodies to images, caches eligible results, and
// streams or buffers the response back to the client:
//
//	ReceiveRequest → CacheLookup (GET only)
//	    → CacheHit  → Respond
//	    → CacheMiss → Fetch → FetchResult
//	        → RateLimited → RetryLoop → {response | fallback}
//	        → Other       → ResponseReady
//	            → GET+200:  Buffer → maybe Convert → Cache → Respond
//	            → else:     Stream → Respond
//
// The retry loop runs inside a 60 second wall-clock budget with delays of
// 1s, 2s, 4s, 8s, then 10s per further attempt. When the budget is
// exhausted the client receives HTTP 429 with a bundled fallback image; the
// upstream's own rate-limit body is never forwarded.
//
// CORS headers from the route's resolved policy are applied to every
// terminal response, cached, fetched, fallback, or error.
package proxy
