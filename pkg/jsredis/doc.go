// Package jsredis is a typed convenience layer over a Redis-like key-value
// store.
//
// Items stores single JSON-encoded values under string keys, optionally with
// a store-native expiry. Sets manages membership of native sets and emulates
// a per-member expiry, which Redis sets do not support: an expiring member
// gets a shadow record
//
//	exp::<set-key>::<base64(JSON(member))>
//
// holding its deadline. The deadline is enforced lazily when the member is
// checked; an expired member is removed together with its shadow record as a
// side effect of the check.
//
// Nothing is cached in process. Composite operations span several store
// commands and are not atomic; see Sets for the consequences.
package jsredis
