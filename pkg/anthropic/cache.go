package anthropic

// CachedSystem builds a single system block with a cache breakpoint. The
// reasoning prompts are identical across entries, so every call after the
// first reads them from the prompt cache.
func CachedSystem(text, ttl string) []SystemBlock {
	return []SystemBlock{{
		Text:         text,
		CacheControl: &CacheControl{TTL: ttl},
	}}
}
