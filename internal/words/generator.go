package words

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"google.golang.org/genai"

	"sketchroom/internal/rules"
)

const defaultModel = "gemini-2.5-flash"

const generatePrompt = `You are building the word list for a drawing-and-guessing party game.
Suggest %d distinct words or short phrases (at most three words) in the category %q
that a player could draw without letters or numbers. Difficulty: %s
(easy: everyday concrete nouns; medium: specific objects, animals or places;
hard: compound or abstract ideas that are still drawable).
Respond ONLY with JSON of the form {"words": ["...", "..."]}.`

// Generator suggests new words with a Gemini model. It is used when seeding the
// word store, never while a round is running.
type Generator struct {
	client *genai.Client
	model  string
}

// GeneratorConfig selects the backend: an API key uses the Gemini API,
// otherwise Vertex AI with application default credentials.
type GeneratorConfig struct {
	APIKey   string
	Project  string
	Location string
	Model    string
}

func NewGenerator(ctx context.Context, cfg GeneratorConfig) (*Generator, error) {
	cc := &genai.ClientConfig{
		Project:  cfg.Project,
		Location: cfg.Location,
		Backend:  genai.BackendVertexAI,
	}
	if cfg.APIKey != "" {
		cc = &genai.ClientConfig{APIKey: cfg.APIKey, Backend: genai.BackendGeminiAPI}
	}
	client, err := genai.NewClient(ctx, cc)
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}
	model := cfg.Model
	if model == "" {
		model = defaultModel
	}
	return &Generator{client: client, model: model}, nil
}

// Generate asks for count new words of difficulty d in category.
func (g *Generator) Generate(ctx context.Context, d rules.Difficulty, category string, count int) ([]Entry, error) {
	resp, err := g.client.Models.GenerateContent(ctx, g.model,
		[]*genai.Content{{
			Role:  "user",
			Parts: []*genai.Part{{Text: fmt.Sprintf(generatePrompt, count, category, d)}},
		}},
		&genai.GenerateContentConfig{
			Temperature:      genai.Ptr(float32(0.9)),
			ResponseMIMEType: "application/json",
		},
	)
	if err != nil {
		return nil, fmt.Errorf("gemini generate: %w", err)
	}
	return parseGenerated(resp.Text(), d, category)
}

func parseGenerated(text string, d rules.Difficulty, category string) ([]Entry, error) {
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("empty gemini response")
	}
	var body struct {
		Words []string `json:"words"`
	}
	if err := json.Unmarshal([]byte(text), &body); err != nil {
		return nil, fmt.Errorf("parse words JSON: %w", err)
	}
	seen := make(map[string]bool, len(body.Words))
	out := make([]Entry, 0, len(body.Words))
	for _, w := range body.Words {
		w = strings.ToLower(strings.Join(strings.Fields(w), " "))
		if w == "" || seen[w] || !drawable(w) {
			continue
		}
		seen[w] = true
		out = append(out, Entry{Word: w, Difficulty: d, Category: category, Active: true})
	}
	return out, nil
}

func drawable(w string) bool {
	if len(w) > 40 || len(strings.Fields(w)) > 3 {
		return false
	}
	for _, r := range w {
		if (r < 'a' || r > 'z') && r != ' ' && r != '-' {
			return false
		}
	}
	return true
}
