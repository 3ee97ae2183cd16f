package prompt

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"adreel/internal/providers/genai"
)

// ComposeInput bundles the three narrative sources fused into one generation
// prompt: the product's visual identity, the shot-by-shot breakdown, and the
// word-for-word advertising script.
type ComposeInput struct {
	VisualIdentity  string
	ShotBreakdown   string
	Script          string
	DurationSeconds int
}

// ComposedPrompt is one provider-ready prompt, or an ordered pair of prompts
// for long-form clips generated as two sequential halves. For the pair,
// ContinuityAnchor is the shared frame description closing part one and
// opening part two; the second clip is seeded with the last frame of the
// first, so the anchor is what keeps the stitch invisible.
type ComposedPrompt struct {
	Parts            []string
	ContinuityAnchor string
	Source           string
}

// Split reports whether the prompt describes a two-part generation.
func (p ComposedPrompt) Split() bool {
	return len(p.Parts) == 2
}

type ComposerOptions struct {
	Client         *genai.Client
	SplitThreshold int
	MaxChars       int
	Logger         zerolog.Logger
}

// Composer turns a ComposeInput into dense prose generation prompts. Model
// failures never surface: composition degrades to a deterministic local
// fusion, and missing inputs degrade to the caller's raw prompt.
type Composer struct {
	client         *genai.Client
	splitThreshold int
	maxChars       int
	caser          cases.Caser
	logger         zerolog.Logger
}

const (
	defaultSplitThreshold = 25
	defaultComposeMaxLen  = 3000
)

func NewComposer(opts ComposerOptions) *Composer {
	threshold := opts.SplitThreshold
	if threshold <= 0 {
		threshold = defaultSplitThreshold
	}
	maxChars := opts.MaxChars
	if maxChars <= 0 {
		maxChars = defaultComposeMaxLen
	}
	return &Composer{
		client:         opts.Client,
		splitThreshold: threshold,
		maxChars:       maxChars,
		caser:          cases.Title(language.Und),
		logger:         opts.Logger,
	}
}

// Compose fuses the input into one prompt, or two for durations at or above
// the split threshold. When any of the three inputs is empty the composition
// step is skipped and rawPrompt is returned verbatim.
func (c *Composer) Compose(ctx context.Context, in ComposeInput, rawPrompt string) ComposedPrompt {
	if strings.TrimSpace(in.VisualIdentity) == "" ||
		strings.TrimSpace(in.ShotBreakdown) == "" ||
		strings.TrimSpace(in.Script) == "" {
		return ComposedPrompt{Parts: []string{rawPrompt}, Source: rawProviderName}
	}

	if in.DurationSeconds >= c.splitThreshold {
		return c.composeSplit(ctx, in)
	}
	return c.composeSingle(ctx, in)
}

func (c *Composer) composeSingle(ctx context.Context, in ComposeInput) ComposedPrompt {
	if c.client != nil {
		text, err := c.client.Complete(ctx, c.buildSinglePrompt(in), 0.4)
		if err == nil {
			fused := truncateRunes(stripMarkup(text), c.maxChars)
			if fused != "" {
				return ComposedPrompt{Parts: []string{fused}, Source: geminiProviderName}
			}
		} else {
			c.logger.Warn().Err(err).Msg("compose: model composition failed, using local fusion")
		}
	}
	return c.localSingle(in)
}

type splitPayload struct {
	PartOne       string `json:"part_1"`
	PartTwo       string `json:"part_2"`
	BoundaryFrame string `json:"boundary_frame"`
}

func (c *Composer) composeSplit(ctx context.Context, in ComposeInput) ComposedPrompt {
	if c.client != nil {
		text, err := c.client.CompleteJSON(ctx, c.buildSplitPrompt(in), 0.4)
		if err == nil {
			parsed, perr := parseModelPayload[splitPayload](text)
			if perr == nil {
				prompt := c.assembleSplit(parsed)
				if prompt.Split() {
					return prompt
				}
			} else {
				c.logger.Warn().Err(perr).Msg("compose: split payload unparsable, using local fusion")
			}
		} else {
			c.logger.Warn().Err(err).Msg("compose: model composition failed, using local fusion")
		}
	}
	return c.localSplit(in)
}

func (c *Composer) assembleSplit(p splitPayload) ComposedPrompt {
	partOne := stripMarkup(p.PartOne)
	partTwo := stripMarkup(p.PartTwo)
	anchor := stripMarkup(p.BoundaryFrame)
	if partOne == "" || partTwo == "" || anchor == "" {
		return ComposedPrompt{}
	}
	partOne, partTwo = ensureContinuity(partOne, partTwo, anchor)
	// The anchor must survive truncation on both sides.
	budget := c.maxChars - runeLen(anchor) - 2
	if budget < 0 {
		budget = 0
	}
	if runeLen(partOne) > c.maxChars {
		partOne = strings.TrimSpace(truncateRunes(strings.TrimSuffix(partOne, anchor), budget)) + " " + anchor
	}
	if runeLen(partTwo) > c.maxChars {
		partTwo = anchor + " " + strings.TrimSpace(truncateRunes(strings.TrimPrefix(partTwo, anchor), budget))
	}
	return ComposedPrompt{
		Parts:            []string{partOne, partTwo},
		ContinuityAnchor: anchor,
		Source:           geminiProviderName,
	}
}

// ensureContinuity guarantees the identical frame description ends part one
// and opens part two, regardless of how faithfully the model followed the
// instruction.
func ensureContinuity(partOne, partTwo, anchor string) (string, string) {
	if !strings.Contains(partOne, anchor) {
		partOne = strings.TrimSpace(partOne)
		if !strings.HasSuffix(partOne, ".") {
			partOne += "."
		}
		partOne += " The clip closes on this exact frame: " + anchor
	}
	if !strings.Contains(partTwo, anchor) {
		partTwo = "The clip opens on this exact frame: " + anchor + " " + strings.TrimSpace(partTwo)
	}
	return partOne, partTwo
}

func (c *Composer) buildSinglePrompt(in ComposeInput) string {
	sb := &strings.Builder{}
	fmt.Fprintf(sb, "Fuse the following into one dense cinematic video generation prompt of at most %d characters. ", c.maxChars)
	sb.WriteString("Write flowing prose only: no headings, no bullet points, no rule lines, no markdown. ")
	sb.WriteString("Every sentence of the script must have a corresponding visual beat, and all narration must be reproduced word for word, never paraphrased. ")
	fmt.Fprintf(sb, "Target duration: %d seconds.\n", in.DurationSeconds)
	fmt.Fprintf(sb, "Visual identity: %s\n", in.VisualIdentity)
	fmt.Fprintf(sb, "Shot breakdown: %s\n", in.ShotBreakdown)
	fmt.Fprintf(sb, "Script (verbatim): %s", in.Script)
	return sb.String()
}

func (c *Composer) buildSplitPrompt(in ComposeInput) string {
	half := in.DurationSeconds / 2
	sb := &strings.Builder{}
	sb.WriteString("Fuse the following into two sequential cinematic video generation prompts covering the first and second half of one continuous ad. ")
	sb.WriteString(`Respond strictly with JSON matching this schema: {"part_1":string,"part_2":string,"boundary_frame":string}. `)
	fmt.Fprintf(sb, "Each part is dense prose of at most %d characters with no markdown or structural markup. ", c.maxChars)
	sb.WriteString("boundary_frame describes one exact frame (composition, lighting, palette, tone); part_1 must end on that frame and part_2 must open on it, because the second clip is generated from the last frame of the first. ")
	sb.WriteString("All narration must appear word for word across the two parts. ")
	fmt.Fprintf(sb, "Each half runs %d seconds.\n", half)
	fmt.Fprintf(sb, "Visual identity: %s\n", in.VisualIdentity)
	fmt.Fprintf(sb, "Shot breakdown: %s\n", in.ShotBreakdown)
	fmt.Fprintf(sb, "Script (verbatim): %s", in.Script)
	return sb.String()
}

func (c *Composer) localSingle(in ComposeInput) ComposedPrompt {
	fused := fmt.Sprintf(
		"%s %s Narration, delivered word for word over matching visuals: %s",
		sentence(stripMarkup(in.VisualIdentity)),
		sentence(stripMarkup(in.ShotBreakdown)),
		strings.TrimSpace(in.Script),
	)
	return ComposedPrompt{
		Parts:  []string{truncateRunes(strings.TrimSpace(fused), c.maxChars)},
		Source: localProviderName,
	}
}

func (c *Composer) localSplit(in ComposeInput) ComposedPrompt {
	identity := sentence(stripMarkup(in.VisualIdentity))
	breakdown := sentence(stripMarkup(in.ShotBreakdown))
	firstHalf, secondHalf := splitScript(in.Script)
	anchor := c.localAnchor(in)

	partOne := fmt.Sprintf(
		"%s %s Narration, delivered word for word over matching visuals: %s The clip closes on this exact frame: %s",
		identity, breakdown, sentence(firstHalf), anchor,
	)
	partTwo := fmt.Sprintf(
		"The clip opens on this exact frame: %s %s The scene continues seamlessly. Narration, delivered word for word over matching visuals: %s",
		anchor, identity, sentence(secondHalf),
	)
	return ComposedPrompt{
		Parts: []string{
			truncateLocalPart(partOne, anchor, c.maxChars, false),
			truncateLocalPart(partTwo, anchor, c.maxChars, true),
		},
		ContinuityAnchor: anchor,
		Source:           localProviderName,
	}
}

// localAnchor derives a deterministic boundary-frame description from the
// visual identity so both halves share identical wording.
func (c *Composer) localAnchor(in ComposeInput) string {
	subject := firstClause(stripMarkup(in.VisualIdentity))
	if subject == "" {
		subject = "the product"
	}
	return fmt.Sprintf(
		"%s centered in frame under soft key lighting, warm palette, calm confident tone, composition locked.",
		c.caser.String(subject),
	)
}

func truncateLocalPart(part, anchor string, max int, anchorLeads bool) string {
	if runeLen(part) <= max {
		return part
	}
	budget := max - runeLen(anchor) - 1
	if budget < 1 {
		return truncateRunes(part, max)
	}
	if anchorLeads {
		rest := strings.TrimPrefix(part, "The clip opens on this exact frame: "+anchor)
		head := "The clip opens on this exact frame: " + anchor
		return head + truncateRunes(rest, max-runeLen(head))
	}
	idx := strings.LastIndex(part, "The clip closes on this exact frame: ")
	if idx < 0 {
		return truncateRunes(part, max)
	}
	tail := part[idx:]
	return truncateRunes(part[:idx], max-runeLen(tail)) + tail
}

func sentence(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return s
	}
	if !strings.HasSuffix(s, ".") && !strings.HasSuffix(s, "!") && !strings.HasSuffix(s, "?") {
		s += "."
	}
	return s
}

func firstClause(s string) string {
	s = strings.TrimSpace(s)
	for _, sep := range []string{".", ",", ";", ":"} {
		if idx := strings.Index(s, sep); idx > 0 {
			s = s[:idx]
		}
	}
	words := strings.Fields(s)
	if len(words) > 8 {
		words = words[:8]
	}
	return strings.Join(words, " ")
}

// splitScript divides the narration at the sentence boundary closest to its
// midpoint, falling back to a word split for single-sentence scripts.
func splitScript(script string) (string, string) {
	script = strings.TrimSpace(script)
	sentences := splitSentences(script)
	if len(sentences) >= 2 {
		mid := 0
		total := runeLen(script)
		for i := 0; i < len(sentences)-1; i++ {
			mid += runeLen(sentences[i])
			if mid >= total/2 {
				return strings.TrimSpace(strings.Join(sentences[:i+1], " ")),
					strings.TrimSpace(strings.Join(sentences[i+1:], " "))
			}
		}
	}
	words := strings.Fields(script)
	if len(words) < 2 {
		return script, script
	}
	half := len(words) / 2
	return strings.Join(words[:half], " "), strings.Join(words[half:], " ")
}

func splitSentences(text string) []string {
	var out []string
	var current strings.Builder
	for _, r := range text {
		current.WriteRune(r)
		if r == '.' || r == '!' || r == '?' {
			if s := strings.TrimSpace(current.String()); s != "" {
				out = append(out, s)
			}
			current.Reset()
		}
	}
	if s := strings.TrimSpace(current.String()); s != "" {
		out = append(out, s)
	}
	return out
}
