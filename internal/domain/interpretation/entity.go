package interpretation

// Variant selects the instruction template (tone / persona) sent to the model.
type Variant string

const (
	VariantDefault Variant = "default"
	VariantPlayful Variant = "playful"
	VariantCalm    Variant = "calm"
	VariantTrainer Variant = "trainer"
)

// Request is one interpretation call. Image must be non-empty.
type Request struct {
	Image         []byte
	PromptVariant Variant
}

// Result is only built by Parser after the model text passed validation.
type Result struct {
	Explanation  string  `json:"explanation"`
	Confidence   float64 `json:"confidence"`
	RawModelText string  `json:"-"`
}

// Image is image data that already decoded as a supported format.
type Image struct {
	Data     []byte
	MIMEType string
	Width    int
	Height   int
}

// Prompt is the instruction pair sent alongside the image.
type Prompt struct {
	System string
	User   string
}
