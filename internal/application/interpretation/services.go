package interpretation

import (
	"context"
	"log"

	"github.com/bryanwahyu/pawspeak/internal/application"
	domain "github.com/bryanwahyu/pawspeak/internal/domain/interpretation"
)

const rawLogLimit = 200

// Service runs the interpretation pipeline: prepare image → build prompt →
// call model → parse. It holds no per-request state and is safe for concurrent use.
type Service struct {
	Client  domain.ModelClient
	Images  domain.ImagePreparer
	Prompts domain.PromptBuilder
	Parser  *domain.Parser
	Clock   application.Clock
}

func NewService(client domain.ModelClient, images domain.ImagePreparer, prompts domain.PromptBuilder, parser *domain.Parser) *Service {
	return &Service{
		Client:  client,
		Images:  images,
		Prompts: prompts,
		Parser:  parser,
		Clock:   application.SystemClock{},
	}
}

// Interpret returns a validated result or an error carrying a domain.Kind.
func (s *Service) Interpret(ctx context.Context, req domain.Request) (*domain.Result, error) {
	start := s.Clock.Now()

	if len(req.Image) == 0 {
		return nil, domain.NewError(domain.KindInvalidInput, "image is required", nil)
	}
	img, err := s.Images.Prepare(req.Image)
	if err != nil {
		return nil, ensureKind(err, domain.KindInvalidInput)
	}
	prompt, err := s.Prompts.Build(req.PromptVariant)
	if err != nil {
		return nil, ensureKind(err, domain.KindInvalidInput)
	}

	text, err := s.Client.Invoke(ctx, img, prompt)
	if err != nil {
		err = ensureKind(err, domain.KindUpstreamUnavailable)
		log.Printf("interpretation failed stage=model kind=%s variant=%s duration=%s err=%v",
			domain.KindOf(err), variantName(req.PromptVariant), s.Clock.Now().Sub(start), err)
		return nil, err
	}
	// caller went away while the model was answering
	if err := ctx.Err(); err != nil {
		return nil, domain.NewError(domain.KindUpstreamUnavailable, "request cancelled", err)
	}

	res, err := s.Parser.Parse(text)
	if err != nil {
		log.Printf("interpretation failed stage=parse kind=%s variant=%s raw=%q",
			domain.KindOf(err), variantName(req.PromptVariant), truncate(text, rawLogLimit))
		return nil, err
	}

	log.Printf("interpretation ok variant=%s confidence=%.2f size=%dx%d duration=%s",
		variantName(req.PromptVariant), res.Confidence, img.Width, img.Height, s.Clock.Now().Sub(start))
	return res, nil
}

// ensureKind keeps classified errors as they are and wraps anything else.
func ensureKind(err error, fallback domain.Kind) error {
	if domain.KindOf(err) != "" {
		return err
	}
	return domain.NewError(fallback, "", err)
}

func variantName(v domain.Variant) string {
	if v == "" {
		return string(domain.VariantDefault)
	}
	return string(v)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
