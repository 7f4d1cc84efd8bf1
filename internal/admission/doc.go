// Package admission gates API requests per client identity with a fixed-window
// counter held in a shared store.
//
// Each request increments the counter at "{prefix}{identity}". The increment
// that creates the counter (result 1) also sets its expiry to the window
// length; later increments never touch the expiry, so the window does not
// slide. Once the counter exceeds the limit, requests are denied until the key
// expires and the next request starts a new window at 1.
//
// The gate depends on the store's increment being atomic across processes.
// Under that assumption exactly one caller per window observes the value 1 and
// exactly one expiry is set per window. If the process dies between the
// increment and the expiry, the key can be left without a TTL; that case is
// accepted rather than paying for a second round trip on every request.
//
// Store failures fail open by default: the request is admitted and the error
// is only logged.
package admission
