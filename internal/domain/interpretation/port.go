package interpretation

import "context"

// ModelClient sends one image + prompt to the vision model and returns the raw completion text.
type ModelClient interface {
	Invoke(ctx context.Context, img Image, prompt Prompt) (string, error)
}

// ImagePreparer validates raw upload bytes and normalizes them for the model.
type ImagePreparer interface {
	Prepare(data []byte) (Image, error)
}

// PromptBuilder resolves a variant into its prompt pair.
type PromptBuilder interface {
	Build(v Variant) (Prompt, error)
}

// ImageSource loads image bytes that were uploaded somewhere else (object storage).
type ImageSource interface {
	Fetch(ctx context.Context, key string) ([]byte, string, error)
}
