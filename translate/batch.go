package translate

import (
	"context"
	"strconv"
	"strings"
	"sync"

	"github.com/docxkit/docxtrans/i18n"
	"github.com/docxkit/docxtrans/wordml"
)

// ---------------------------------------------------------------------------
// Per-unit state machine
// ---------------------------------------------------------------------------

type unitStatus int

const (
	statusPending unitStatus = iota
	statusTranslated
	statusMissing // absent from the latest response, attempts counts tries
	statusGivenUp // retries exhausted, original text kept
)

// unitState tracks one translatable unit through the wave/retry loop.
// Position is the unit's slot in the input (and result) slice; the unit's
// Index is the document-order join key carried on the wire.
type unitState struct {
	position int
	unit     wordml.ParagraphUnit
	status   unitStatus
	attempts int
	out      string
}

// ---------------------------------------------------------------------------
// Orchestrator
// ---------------------------------------------------------------------------

// TranslateAll translates every translatable unit and returns a sequence of
// the same length and order as units. Pass-through units (no text, or blank
// simplified text) are copied unchanged and never reach the backend. Units
// still missing after all retry passes keep their original text; that is
// reported through OnError, never as an error return. The only error
// conditions are cancellation and an empty Complete/Provider configuration.
func TranslateAll(ctx context.Context, units []wordml.ParagraphUnit, opts Options) ([]wordml.ParagraphUnit, error) {
	if opts.Registry != nil {
		var cancel context.CancelFunc
		ctx, cancel = context.WithCancel(ctx)
		defer cancel()
		handle := opts.Registry.add(cancel)
		defer opts.Registry.remove(handle)
	}

	result := make([]wordml.ParagraphUnit, len(units))
	copy(result, units)

	var translatable []*unitState
	for i, u := range units {
		if u.HasText && strings.TrimSpace(u.Text) != "" {
			translatable = append(translatable, &unitState{position: i, unit: u})
		}
	}
	if len(translatable) == 0 {
		opts.log(i18n.T("Nothing to translate (%d paragraphs, none with text)"), len(units))
		return result, nil
	}

	opts.log(i18n.T("Translating %d of %d paragraphs to %s"), len(translatable), len(units), opts.TargetLang)

	// Translation memory pass: reuse stored results before any API call.
	if opts.Memory != nil {
		hits := 0
		for _, us := range translatable {
			if out, ok := opts.Memory.Get(opts.TargetLang, us.unit.Text); ok {
				us.status = statusTranslated
				us.out = out
				hits++
			}
		}
		if hits > 0 {
			opts.log(i18n.T("Translation memory: reused %d of %d paragraph(s)"), hits, len(translatable))
		}
	}

	rl := &rateLimitState{}
	complete := opts.complete(rl)
	systemPrompt := opts.resolvedPrompt()

	// Initial pass: full-size batches of everything the memory did not cover.
	if pending := pendingUnits(translatable); len(pending) > 0 {
		if err := runWaves(ctx, splitUnits(pending, opts.effectiveBatchSize()), systemPrompt, complete, &opts); err != nil {
			return nil, err
		}
	}

	// Retry passes: still-missing units one per batch, maximizing the chance
	// of a clean response for each.
	for attempt := 1; attempt <= opts.effectiveMaxRetries(); attempt++ {
		missing := missingUnits(translatable)
		if len(missing) == 0 {
			break
		}
		opts.log(i18n.T("Retry %d/%d for %d paragraph(s): %v"), attempt, opts.effectiveMaxRetries(), len(missing), unitIndices(missing))
		if err := runWaves(ctx, splitUnits(missing, 1), systemPrompt, complete, &opts); err != nil {
			return nil, err
		}
	}

	// Fallback: exhausted units keep their original, untranslated text.
	if missing := missingUnits(translatable); len(missing) > 0 {
		for _, us := range missing {
			us.status = statusGivenUp
		}
		opts.logError(i18n.T("Warning: %d paragraph(s) not translated after retries, keeping original text: %v"),
			len(missing), unitIndices(missing))
	}

	for _, us := range translatable {
		if us.status == statusTranslated {
			result[us.position].Text = us.out
			result[us.position].HasText = true
			if opts.Memory != nil {
				opts.Memory.Put(opts.TargetLang, us.unit.Text, us.out)
			}
		}
	}
	return result, nil
}

func pendingUnits(units []*unitState) []*unitState {
	var pending []*unitState
	for _, us := range units {
		if us.status == statusPending {
			pending = append(pending, us)
		}
	}
	return pending
}

// splitUnits divides units into batches of the given size.
func splitUnits(units []*unitState, batchSize int) [][]*unitState {
	if batchSize <= 0 || batchSize >= len(units) {
		return [][]*unitState{units}
	}
	var batches [][]*unitState
	for i := 0; i < len(units); i += batchSize {
		end := i + batchSize
		if end > len(units) {
			end = len(units)
		}
		batches = append(batches, units[i:end])
	}
	return batches
}

func missingUnits(units []*unitState) []*unitState {
	var missing []*unitState
	for _, us := range units {
		if us.status == statusMissing {
			missing = append(missing, us)
		}
	}
	return missing
}

func unitIndices(units []*unitState) []int {
	indices := make([]int, len(units))
	for i, us := range units {
		indices[i] = us.unit.Index
	}
	return indices
}

// ---------------------------------------------------------------------------
// Wave dispatch
// ---------------------------------------------------------------------------

// batchOutcome is the private result slot one in-flight batch call writes
// to. Slots are joined by the wave loop after the whole wave completes;
// concurrent callees never touch shared state.
type batchOutcome struct {
	translated map[int]string // unit Index → translated simplified text
	err        error
}

// runWaves dispatches batches in waves of MaxConcurrent concurrent calls,
// waiting for each whole wave before starting the next. The context is
// checked at every wave boundary; cancellation aborts the operation (calls
// already in flight are awaited, their results discarded).
func runWaves(ctx context.Context, batches [][]*unitState, systemPrompt string, complete CompleteFunc, opts *Options) error {
	width := opts.effectiveMaxConcurrent()
	total := 0
	for _, b := range batches {
		total += len(b)
	}

	done := 0
	for start := 0; start < len(batches); start += width {
		if err := ctx.Err(); err != nil {
			return err
		}
		wave := batches[start:min(start+width, len(batches))]

		outcomes := make([]batchOutcome, len(wave))
		var wg sync.WaitGroup
		for i, batch := range wave {
			wg.Add(1)
			go func(slot int, batch []*unitState) {
				defer wg.Done()
				outcomes[slot] = translateBatch(ctx, batch, systemPrompt, complete)
			}(i, batch)
		}
		wg.Wait()

		if err := ctx.Err(); err != nil {
			return err
		}

		// Sequential join: apply every outcome to the unit states.
		for i, batch := range wave {
			out := outcomes[i]
			if out.err != nil {
				// A failed call means every unit in the batch is missing; the
				// retry passes pick them up.
				opts.logError(i18n.T("Batch of %d paragraph(s) failed: %v"), len(batch), out.err)
			}
			for _, us := range batch {
				us.attempts++
				if text, ok := out.translated[us.unit.Index]; ok {
					us.status = statusTranslated
					us.out = text
					done++
				} else {
					us.status = statusMissing
				}
			}
		}
		if opts.OnProgress != nil {
			opts.OnProgress(done, total)
		}
	}
	return nil
}

// translateBatch sends one batch as a single request and scans the response
// for per-unit segments.
func translateBatch(ctx context.Context, batch []*unitState, systemPrompt string, complete CompleteFunc) batchOutcome {
	text, err := complete(ctx, systemPrompt, buildBatchPrompt(batch))
	if err != nil {
		return batchOutcome{err: err}
	}

	translated := make(map[int]string, len(batch))
	for _, us := range batch {
		seg, ok := findSegment(text, us.unit.Index)
		if !ok {
			continue
		}
		if seg == "" {
			// Parsed but empty: keep the original text as fallback.
			seg = us.unit.Text
		}
		translated[us.unit.Index] = seg
	}
	return batchOutcome{translated: translated}
}

// segment wrapper tokens. The index inside is the unit's document-order
// Index, the pipeline's sole join key.
func segmentOpen(index int) string  { return "[[#" + strconv.Itoa(index) + "]]" }
func segmentClose(index int) string { return "[[/#" + strconv.Itoa(index) + "]]" }

// buildBatchPrompt wraps every unit's simplified text in its paired segment
// container so a single stateless call can translate the whole batch.
func buildBatchPrompt(batch []*unitState) string {
	var sb strings.Builder
	sb.WriteString("Translate the following segments:\n\n")
	for _, us := range batch {
		sb.WriteString(segmentOpen(us.unit.Index))
		sb.WriteByte('\n')
		sb.WriteString(us.unit.Text)
		sb.WriteByte('\n')
		sb.WriteString(segmentClose(us.unit.Index))
		sb.WriteString("\n\n")
	}
	return sb.String()
}

// findSegment scans a raw response for the paired container of one unit.
// Any index present with both its open and close token counts as
// translated, however mangled the surrounding response text is.
func findSegment(response string, index int) (string, bool) {
	open := segmentOpen(index)
	start := strings.Index(response, open)
	if start < 0 {
		return "", false
	}
	start += len(open)
	end := strings.Index(response[start:], segmentClose(index))
	if end < 0 {
		return "", false
	}
	return strings.TrimSpace(response[start : start+end]), true
}
