// Package main hosts the sourcechat service entrypoint.
//
// Architecture overview:
//   - HTTP API: internal/api.Server exposes health, metrics, and POST {prefix}/chat. Every path under the prefix is
//     admitted by internal/admission first; the gate counts requests per client address in a shared store (Redis, or
//     an in-process store for single-instance runs) over a fixed window.
//   - Orchestration: internal/chat validates the body, reporting every bad URL at once, then hands the URLs to the
//     grounding Aggregator and the question plus rendered context to the completion client.
//   - Extraction: each URL is read twice, concurrently. The static strategy fetches markup with Colly and reads the
//     heading with goquery. The dynamic strategy renders the page in headless Chrome through chromedp, waits for a
//     bounded network-idle window, and reads the same element from the DOM. Failures become placeholder text.
//   - Completion: an OpenAI-compatible endpoint (Groq by default) or the Anthropic Messages API. No retries.
//
// Operational notes:
//   - Secrets (completion.api_key, redis.password) have no defaults and come from the config file or SOURCECHAT_*
//     environment variables.
//   - admission.fail_open decides whether a broken counter store lets traffic through or answers 503.
//   - The process drains in-flight requests on SIGINT/SIGTERM, then closes the browser allocator and Redis.
//
// Run locally: SOURCECHAT_COMPLETION_API_KEY=... go run ./cmd/sourcechat -config config.yaml
package main
