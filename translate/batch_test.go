package translate

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/docxkit/docxtrans/i18n"
	"github.com/docxkit/docxtrans/wordml"
)

// echoBackend returns the user prompt unchanged: every requested segment is
// present with its original text (an identity translation).
func echoBackend(calls *int32) CompleteFunc {
	return func(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
		if calls != nil {
			atomic.AddInt32(calls, 1)
		}
		return userPrompt, nil
	}
}

func textUnits(texts ...string) []wordml.ParagraphUnit {
	units := make([]wordml.ParagraphUnit, len(texts))
	for i, t := range texts {
		units[i] = wordml.ParagraphUnit{Index: i, Text: t, HasText: t != ""}
	}
	return units
}

// ---------------------------------------------------------------------------
// Ordering and pass-through
// ---------------------------------------------------------------------------

func TestTranslateAll_PreservesOrderAndCardinality(t *testing.T) {
	units := textUnits("{{1}}one{{/1}}", "", "{{2}}two{{/2}}", "", "{{3}}three{{/3}}")
	got, err := TranslateAll(context.Background(), units, Options{Complete: echoBackend(nil), TargetLang: "de"})
	if err != nil {
		t.Fatalf("error: %v", err)
	}
	if len(got) != len(units) {
		t.Fatalf("got %d units, want %d", len(got), len(units))
	}
	for i := range units {
		if got[i].Index != units[i].Index {
			t.Errorf("slot %d: Index = %d, want %d", i, got[i].Index, units[i].Index)
		}
	}
}

func TestTranslateAll_PassThroughNeverSent(t *testing.T) {
	var calls int32
	sent := make(map[int]bool)
	backend := func(ctx context.Context, system, user string) (string, error) {
		atomic.AddInt32(&calls, 1)
		for i := 0; i < 10; i++ {
			if strings.Contains(user, segmentOpen(i)) {
				sent[i] = true
			}
		}
		return user, nil
	}

	units := textUnits("{{1}}Hello{{/1}}", "", "{{2}}World{{/2}}")
	units[1].HasText = false

	got, err := TranslateAll(context.Background(), units, Options{Complete: backend, TargetLang: "fr", MaxConcurrent: 1})
	if err != nil {
		t.Fatalf("error: %v", err)
	}
	if sent[1] {
		t.Error("pass-through unit was sent to the backend")
	}
	if got[1] != units[1] {
		t.Errorf("pass-through unit modified: %+v", got[1])
	}
	if calls == 0 {
		t.Error("translatable units never reached the backend")
	}
}

func TestTranslateAll_IdentityBackendKeepsText(t *testing.T) {
	units := textUnits("{{1}}Hello{{/1}}", "", "{{2}}World{{/2}}")
	got, err := TranslateAll(context.Background(), units, Options{Complete: echoBackend(nil), TargetLang: "es"})
	if err != nil {
		t.Fatalf("error: %v", err)
	}
	for i := range units {
		if got[i].Text != units[i].Text {
			t.Errorf("slot %d: text changed from %q to %q", i, units[i].Text, got[i].Text)
		}
	}
}

func TestTranslateAll_AppliesTranslation(t *testing.T) {
	backend := func(ctx context.Context, system, user string) (string, error) {
		return strings.ReplaceAll(user, "Hello", "Bonjour"), nil
	}
	units := textUnits("{{1}}Hello{{/1}}")
	got, err := TranslateAll(context.Background(), units, Options{Complete: backend, TargetLang: "fr"})
	if err != nil {
		t.Fatalf("error: %v", err)
	}
	if got[0].Text != "{{1}}Bonjour{{/1}}" {
		t.Errorf("text = %q", got[0].Text)
	}
	if !got[0].HasText {
		t.Error("HasText should stay true for a translated unit")
	}
}

// ---------------------------------------------------------------------------
// Missing units, retries, fallback
// ---------------------------------------------------------------------------

func TestTranslateAll_MissingUnitFallsBackToOriginal(t *testing.T) {
	// The backend omits unit 2 from every response.
	var calls int32
	backend := func(ctx context.Context, system, user string) (string, error) {
		atomic.AddInt32(&calls, 1)
		out := user
		if start := strings.Index(out, segmentOpen(2)); start >= 0 {
			end := strings.Index(out, segmentClose(2))
			out = out[:start] + out[end+len(segmentClose(2)):]
		}
		return out, nil
	}

	var warnings []string
	units := textUnits("{{1}}a{{/1}}", "{{2}}b{{/2}}", "{{3}}c{{/3}}")
	got, err := TranslateAll(context.Background(), units, Options{
		Complete:   backend,
		TargetLang: "it",
		MaxRetries: 2,
		OnError:    func(format string, args ...any) { warnings = append(warnings, fmt.Sprintf(format, args...)) },
	})
	if err != nil {
		t.Fatalf("error: %v", err)
	}

	if got[2].Text != units[2].Text {
		t.Errorf("missing unit text = %q, want original %q", got[2].Text, units[2].Text)
	}
	// Initial pass + 2 single-unit retries.
	if calls != 3 {
		t.Errorf("backend called %d times, want 3", calls)
	}
	found := false
	for _, w := range warnings {
		if strings.Contains(w, "2") {
			found = true
		}
	}
	if !found {
		t.Errorf("no warning names the missing index, warnings: %v", warnings)
	}
}

func TestTranslateAll_RetryRecoversMissingUnit(t *testing.T) {
	// First call omits unit 1; the retry (single-unit batch) succeeds.
	var calls int32
	backend := func(ctx context.Context, system, user string) (string, error) {
		n := atomic.AddInt32(&calls, 1)
		if n == 1 {
			start := strings.Index(user, segmentOpen(1))
			end := strings.Index(user, segmentClose(1))
			return user[:start] + user[end+len(segmentClose(1)):], nil
		}
		return strings.ReplaceAll(user, "bee", "Biene"), nil
	}

	units := textUnits("{{1}}ant{{/1}}", "{{2}}bee{{/2}}")
	got, err := TranslateAll(context.Background(), units, Options{Complete: backend, TargetLang: "de"})
	if err != nil {
		t.Fatalf("error: %v", err)
	}
	if got[1].Text != "{{2}}Biene{{/2}}" {
		t.Errorf("retried unit text = %q", got[1].Text)
	}
	if calls != 2 {
		t.Errorf("backend called %d times, want 2", calls)
	}
}

func TestTranslateAll_BatchErrorFeedsRetryNotAbort(t *testing.T) {
	var calls int32
	backend := func(ctx context.Context, system, user string) (string, error) {
		if atomic.AddInt32(&calls, 1) == 1 {
			return "", errors.New("backend exploded")
		}
		return user, nil
	}

	units := textUnits("{{1}}x{{/1}}")
	got, err := TranslateAll(context.Background(), units, Options{Complete: backend, TargetLang: "ja"})
	if err != nil {
		t.Fatalf("a failed batch must not abort the run: %v", err)
	}
	if got[0].Text != units[0].Text {
		t.Errorf("text = %q", got[0].Text)
	}
	if calls < 2 {
		t.Errorf("failed batch was not retried, calls = %d", calls)
	}
}

func TestTranslateAll_EmptySegmentKeepsOriginal(t *testing.T) {
	backend := func(ctx context.Context, system, user string) (string, error) {
		return segmentOpen(0) + "\n\n" + segmentClose(0), nil
	}
	units := textUnits("{{1}}keep me{{/1}}")
	got, err := TranslateAll(context.Background(), units, Options{Complete: backend, TargetLang: "pt"})
	if err != nil {
		t.Fatalf("error: %v", err)
	}
	if got[0].Text != "{{1}}keep me{{/1}}" {
		t.Errorf("empty response segment should keep the original, got %q", got[0].Text)
	}
}

// ---------------------------------------------------------------------------
// Batching and waves
// ---------------------------------------------------------------------------

func TestTranslateAll_RespectsBatchSize(t *testing.T) {
	var calls int32
	backend := echoBackend(&calls)

	units := textUnits("{{1}}a{{/1}}", "{{2}}b{{/2}}", "{{3}}c{{/3}}", "{{4}}d{{/4}}", "{{5}}e{{/5}}")
	_, err := TranslateAll(context.Background(), units, Options{
		Complete:      backend,
		TargetLang:    "nl",
		BatchSize:     2,
		MaxConcurrent: 1,
	})
	if err != nil {
		t.Fatalf("error: %v", err)
	}
	// 5 units in batches of 2 → 3 calls.
	if calls != 3 {
		t.Errorf("backend called %d times, want 3", calls)
	}
}

func TestSplitUnits(t *testing.T) {
	mk := func(n int) []*unitState {
		out := make([]*unitState, n)
		for i := range out {
			out[i] = &unitState{unit: wordml.ParagraphUnit{Index: i}}
		}
		return out
	}
	tests := []struct {
		name      string
		n         int
		batchSize int
		want      int
	}{
		{"all in one", 3, 10, 1},
		{"exact split", 4, 2, 2},
		{"remainder", 5, 2, 3},
		{"one each", 3, 1, 3},
		{"zero size means single batch", 3, 0, 1},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := splitUnits(mk(tc.n), tc.batchSize); len(got) != tc.want {
				t.Errorf("got %d batches, want %d", len(got), tc.want)
			}
		})
	}
}

// ---------------------------------------------------------------------------
// Translation memory
// ---------------------------------------------------------------------------

type fakeMemory struct {
	mu      sync.Mutex
	entries map[string]string
}

func newFakeMemory() *fakeMemory {
	return &fakeMemory{entries: make(map[string]string)}
}

func (m *fakeMemory) Get(lang, text string) (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out, ok := m.entries[lang+"\x00"+text]
	return out, ok
}

func (m *fakeMemory) Put(lang, text, translated string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[lang+"\x00"+text] = translated
}

func TestTranslateAll_MemoryHitSkipsBackend(t *testing.T) {
	mem := newFakeMemory()
	mem.Put("ru", "{{1}}Hello{{/1}}", "{{1}}Привет{{/1}}")

	var calls int32
	units := textUnits("{{1}}Hello{{/1}}")
	got, err := TranslateAll(context.Background(), units, Options{
		Complete:   echoBackend(&calls),
		TargetLang: "ru",
		Memory:     mem,
	})
	if err != nil {
		t.Fatalf("error: %v", err)
	}
	if got[0].Text != "{{1}}Привет{{/1}}" {
		t.Errorf("text = %q", got[0].Text)
	}
	if calls != 0 {
		t.Errorf("backend called %d times despite a full memory hit", calls)
	}
}

func TestTranslateAll_MemoryRecordsNewTranslations(t *testing.T) {
	mem := newFakeMemory()
	backend := func(ctx context.Context, system, user string) (string, error) {
		return strings.ReplaceAll(user, "Hello", "Hallo"), nil
	}

	units := textUnits("{{1}}Hello{{/1}}")
	_, err := TranslateAll(context.Background(), units, Options{
		Complete:   backend,
		TargetLang: "de",
		Memory:     mem,
	})
	if err != nil {
		t.Fatalf("error: %v", err)
	}
	if out, ok := mem.Get("de", "{{1}}Hello{{/1}}"); !ok || out != "{{1}}Hallo{{/1}}" {
		t.Errorf("memory entry = %q, %v", out, ok)
	}
}

// ---------------------------------------------------------------------------
// Cancellation
// ---------------------------------------------------------------------------

func TestTranslateAll_CancelledBeforeFirstWave(t *testing.T) {
	var calls int32
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := TranslateAll(ctx, textUnits("{{1}}x{{/1}}"), Options{Complete: echoBackend(&calls), TargetLang: "ko"})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("error = %v, want context.Canceled", err)
	}
	if calls != 0 {
		t.Errorf("backend called %d times after pre-cancellation, want 0", calls)
	}
}

func TestTranslateAll_RegistryCancelAll(t *testing.T) {
	reg := NewRegistry()
	started := make(chan struct{})
	backend := func(ctx context.Context, system, user string) (string, error) {
		close(started)
		<-ctx.Done()
		return "", ctx.Err()
	}

	errCh := make(chan error, 1)
	go func() {
		_, err := TranslateAll(context.Background(), textUnits("{{1}}x{{/1}}"), Options{
			Complete:   backend,
			TargetLang: "zh",
			Registry:   reg,
			MaxRetries: 1,
		})
		errCh <- err
	}()

	<-started
	reg.CancelAll()
	if err := <-errCh; !errors.Is(err, context.Canceled) {
		t.Fatalf("error = %v, want context.Canceled", err)
	}
	if reg.Active() != 0 {
		t.Errorf("registry still has %d active operations", reg.Active())
	}
}

// ---------------------------------------------------------------------------
// Segment container helpers
// ---------------------------------------------------------------------------

func TestFindSegment(t *testing.T) {
	resp := "noise before\n[[#3]]\ntranslated {{1/}}text\n[[/#3]]\nnoise after"
	got, ok := findSegment(resp, 3)
	if !ok {
		t.Fatal("segment 3 not found")
	}
	if got != "translated {{1/}}text" {
		t.Errorf("segment = %q", got)
	}

	if _, ok := findSegment(resp, 4); ok {
		t.Error("found a segment that is not in the response")
	}
	if _, ok := findSegment("[[#3]] unterminated", 3); ok {
		t.Error("segment without close token should not be found")
	}
}

func TestBuildBatchPrompt_ContainsAllSegments(t *testing.T) {
	batch := []*unitState{
		{unit: wordml.ParagraphUnit{Index: 0, Text: "{{1}}a{{/1}}", HasText: true}},
		{unit: wordml.ParagraphUnit{Index: 7, Text: "{{2}}b{{/2}}", HasText: true}},
	}
	prompt := buildBatchPrompt(batch)
	for _, idx := range []int{0, 7} {
		if !strings.Contains(prompt, segmentOpen(idx)) || !strings.Contains(prompt, segmentClose(idx)) {
			t.Errorf("prompt missing wrapper for index %d:\n%s", idx, prompt)
		}
	}
	if !strings.Contains(prompt, "{{1}}a{{/1}}") {
		t.Error("prompt missing unit text")
	}
}

// ---------------------------------------------------------------------------
// Localized progress messages
// ---------------------------------------------------------------------------

func TestTranslateAll_LogsUseLocaleCatalog(t *testing.T) {
	i18n.Init("ru")
	defer i18n.Init("en")

	var logs []string
	opts := Options{
		Complete:   echoBackend(nil),
		TargetLang: "ru",
		OnLog: func(format string, args ...any) {
			logs = append(logs, fmt.Sprintf(format, args...))
		},
	}
	if _, err := TranslateAll(context.Background(), textUnits("{{1}}Hello{{/1}}"), opts); err != nil {
		t.Fatalf("error: %v", err)
	}

	found := false
	for _, line := range logs {
		if strings.Contains(line, "Перевод 1 из 1") {
			found = true
		}
	}
	if !found {
		t.Errorf("localized progress message not emitted, logs: %q", logs)
	}
}
