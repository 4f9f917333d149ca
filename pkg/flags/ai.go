package flags

import (
	"github.com/spf13/pflag"

	"github.com/pnibot/pnibot/pkg/ai"
)

// AIFlags contains flags for the OpenAI-compatible LLM endpoint and the two
// models the chat pipeline uses.
type AIFlags struct {
	Endpoint      string
	ClassifyModel string
	GenerateModel string
}

func NewAIFlags() *AIFlags {
	return &AIFlags{}
}

func (f *AIFlags) BindFlags(fs *pflag.FlagSet) {
	fs.StringVar(&f.Endpoint, "ai-endpoint", "https://api.cerebras.ai/v1", "URL for an OpenAI-compatible endpoint. Set OPENAI_API_KEY to specify an API key.")
	fs.StringVar(&f.ClassifyModel, "ai-classify-model", "llama-3.3-70b", "The model used for turn analysis and planning")
	fs.StringVar(&f.GenerateModel, "ai-generate-model", "gpt-oss-120b", "The model used for streamed answer generation")
}

func (f *AIFlags) GetClassifyClient() *ai.LLMClient {
	return ai.NewLLMClient(f.Endpoint, f.ClassifyModel)
}

func (f *AIFlags) GetGenerateClient() *ai.LLMClient {
	return ai.NewLLMClient(f.Endpoint, f.GenerateModel)
}
