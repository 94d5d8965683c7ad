package anthropic

const metadataUserIdKey = "user_id"

var allowedCompletionKeys = map[string]struct{}{
	"metadata":             {},
	"model":                {},
	"prompt":               {},
	"max_tokens_to_sample": {},
	"temperature":          {},
	"top_p":                {},
	"top_k":                {},
	"stream":               {},
}

// FilterCompletionRequest reduces a decoded completion request body to the
// fields that are forwarded upstream. Values are not type checked. metadata
// survives only as an object holding nothing but user_id. The input is left
// untouched.
func FilterCompletionRequest(body map[string]interface{}) map[string]interface{} {
	filtered := map[string]interface{}{}

	for k, v := range body {
		if _, ok := allowedCompletionKeys[k]; ok {
			filtered[k] = v
		}
	}

	raw, ok := filtered["metadata"]
	if !ok {
		return filtered
	}

	delete(filtered, "metadata")

	metadata, ok := raw.(map[string]interface{})
	if !ok {
		return filtered
	}

	if userId, found := metadata[metadataUserIdKey]; found {
		filtered["metadata"] = map[string]interface{}{
			metadataUserIdKey: userId,
		}
	}

	return filtered
}
