// docxtrans — structure-preserving DOCX translation using AI providers.
package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/docxkit/docxtrans/config"
	"github.com/docxkit/docxtrans/docxfile"
	"github.com/docxkit/docxtrans/i18n"
	"github.com/docxkit/docxtrans/langmeta"
	"github.com/docxkit/docxtrans/memory"
	"github.com/docxkit/docxtrans/settings"
	"github.com/docxkit/docxtrans/translate"
	"github.com/docxkit/docxtrans/wordml"
)

// Version information (set via -ldflags during build)
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

// Log label colors
var (
	labelInfo  = color.New(color.FgBlue).Sprint("[INFO]")
	labelOK    = color.New(color.FgGreen).Sprint("[OK]")
	labelWarn  = color.New(color.FgYellow, color.Bold).Sprint("[WARN]")
	labelError = color.New(color.FgRed).Sprint("[ERROR]")
)

func logInfo(format string, args ...any) {
	fmt.Fprintf(os.Stderr, labelInfo+" "+format+"\n", args...)
}

func logSuccess(format string, args ...any) {
	fmt.Fprintf(os.Stderr, labelOK+" "+format+"\n", args...)
}

func logWarning(format string, args ...any) {
	fmt.Fprintf(os.Stderr, labelWarn+" "+format+"\n", args...)
}

func logError(format string, args ...any) {
	fmt.Fprintf(os.Stderr, labelError+" "+format+"\n", args...)
}

// ---------------------------------------------------------------------------
// Root command
// ---------------------------------------------------------------------------

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "docxtrans",
		Short: "Translate DOCX documents with AI, preserving formatting",
		Long: `docxtrans — structure-preserving DOCX translation.

Extracts the text of a .docx document paragraph by paragraph, replaces
inline markup with numbered placeholders, sends the text to an AI provider
in batches, and rebuilds the document with every run, style, image, table
and field exactly where it was.

Commands:
  translate   Translate a document into a target language
  check       Inspect a document: statistics and markup balance
  auth        Manage provider API keys
  version     Show version information

AI Providers:
  google         Google AI (Gemini) — API key
  groq           Groq — API key
  anthropic      Anthropic — API key
  ollama         Ollama local server (no key)
  custom-openai  Custom OpenAI-compatible endpoint`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.AddCommand(
		newTranslateCmd(),
		newCheckCmd(),
		newAuthCmd(),
		newVersionCmd(),
	)

	return root
}

func main() {
	i18n.Init("")
	if err := newRootCmd().Execute(); err != nil {
		logError("%v", err)
		os.Exit(1)
	}
}

// ---------------------------------------------------------------------------
// version
// ---------------------------------------------------------------------------

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Long:  `Display version, commit hash, and build date.`,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("docxtrans version %s\n", version)
			fmt.Printf("  commit: %s\n", commit)
			fmt.Printf("  built:  %s\n", date)
		},
	}
}

// ---------------------------------------------------------------------------
// translate
// ---------------------------------------------------------------------------

type translateArgs struct {
	input, output           string
	targetLang, sourceLang  string
	provider, apiKey, model string
	baseURL, proxy, prompt  string
	memoryFile              string
	batchSize, concurrency  int
	maxRetries              int
	timeout                 time.Duration
	verbose                 bool
}

func newTranslateCmd() *cobra.Command {
	var a translateArgs

	cmd := &cobra.Command{
		Use:   "translate",
		Short: "Translate a DOCX document using AI",
		Long: `Translate a DOCX document into a target language.

All formatting, images, tables, hyperlinks and fields are preserved; only
the text changes. Defaults can be stored in a .docxtrans.yaml file in the
working directory; flags override the file.

Examples:
  # Translate to Russian with Google AI
  docxtrans translate -i report.docx -o report.ru.docx -l ru --provider google

  # Translate with a local Ollama model
  docxtrans translate -i report.docx -o out.docx -l de --provider ollama --model llama3

  # Smaller batches, lower concurrency
  docxtrans translate -i in.docx -o out.docx -l fr --batch-size 20 --concurrency 2`,
		Run: func(cmd *cobra.Command, args []string) {
			cfg, err := config.Load(".")
			if err != nil {
				logError("%v", err)
				os.Exit(1)
			}
			applyConfig(&a, cfg, cmd.Flags().Changed)
			runTranslate(a)
		},
	}

	cmd.Flags().StringVarP(&a.input, "input", "i", "", "Input .docx file (required)")
	cmd.Flags().StringVarP(&a.output, "output", "o", "", "Output .docx file (required)")
	cmd.Flags().StringVarP(&a.targetLang, "lang", "l", "", "Target language code, e.g. ru, de, pt-BR (required)")
	cmd.Flags().StringVar(&a.sourceLang, "source-lang", "", "Source language code (default: auto-detect)")

	cmd.Flags().StringVar(&a.provider, "provider", "", "AI provider: google, groq, anthropic, ollama, custom-openai")
	cmd.Flags().StringVar(&a.model, "model", "", "Model name (provider default when omitted)")
	cmd.Flags().StringVar(&a.apiKey, "api-key", "", "API key (or "+settings.EnvAPIKey+" env var)")
	cmd.Flags().StringVar(&a.baseURL, "base-url", "", "Custom API base URL")

	cmd.Flags().IntVar(&a.batchSize, "batch-size", 0, "Paragraphs per API request (default 50)")
	cmd.Flags().IntVar(&a.concurrency, "concurrency", 0, "Maximum concurrent API requests (default 3)")
	cmd.Flags().IntVar(&a.maxRetries, "max-retries", 0, "Retry passes for paragraphs missing from responses (default 2)")
	cmd.Flags().DurationVar(&a.timeout, "timeout", 0, "Request timeout (0 = provider default)")
	cmd.Flags().StringVar(&a.proxy, "proxy", "", "HTTP/HTTPS proxy URL")
	cmd.Flags().StringVar(&a.prompt, "prompt", "", "Custom system prompt ({{targetLang}} and {{sourceLang}} placeholders)")
	cmd.Flags().StringVar(&a.memoryFile, "memory", "", "Translation memory file (YAML), reused and updated across runs")
	cmd.Flags().BoolVar(&a.verbose, "verbose", false, "Enable detailed logging")

	_ = cmd.MarkFlagRequired("input")
	_ = cmd.MarkFlagRequired("output")
	_ = cmd.MarkFlagRequired("lang")

	_ = cmd.RegisterFlagCompletionFunc("provider", func(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
		return []string{
			"google\tGoogle AI (Gemini) — API key",
			"groq\tGroq — API key",
			"anthropic\tAnthropic — API key",
			"ollama\tOllama local server",
			"custom-openai\tCustom OpenAI-compatible endpoint",
		}, cobra.ShellCompDirectiveNoFileComp
	})

	return cmd
}

// applyConfig fills unset flags from .docxtrans.yaml. Flags always win.
func applyConfig(a *translateArgs, cfg *config.File, changed func(string) bool) {
	if cfg == nil {
		return
	}
	if a.provider == "" {
		a.provider = cfg.Provider
	}
	if a.model == "" {
		a.model = cfg.Model
	}
	if a.baseURL == "" {
		a.baseURL = cfg.BaseURL
	}
	if a.targetLang == "" {
		a.targetLang = cfg.TargetLang
	}
	if a.sourceLang == "" {
		a.sourceLang = cfg.SourceLang
	}
	if a.proxy == "" {
		a.proxy = cfg.Proxy
	}
	if a.prompt == "" {
		a.prompt = cfg.Prompt
	}
	if !changed("batch-size") && cfg.BatchSize > 0 {
		a.batchSize = cfg.BatchSize
	}
	if !changed("concurrency") && cfg.Concurrency > 0 {
		a.concurrency = cfg.Concurrency
	}
	if !changed("timeout") && cfg.Timeout() > 0 {
		a.timeout = cfg.Timeout()
	}
}

// successReport is the JSON object printed to stdout on success.
type successReport struct {
	OutputPath       string `json:"outputPath"`
	ChunksTranslated int    `json:"chunksTranslated"`
	TargetLanguage   string `json:"targetLanguage"`
}

func runTranslate(a translateArgs) {
	targetLang, err := langmeta.Validate(a.targetLang)
	if err != nil {
		logError("%v", err)
		os.Exit(1)
	}
	sourceLang := a.sourceLang
	if sourceLang != "" {
		if sourceLang, err = langmeta.Validate(a.sourceLang); err != nil {
			logError("%v", err)
			os.Exit(1)
		}
	}

	if a.provider == "" {
		logError("No provider specified. Use --provider to choose an AI translation service.\n\n" +
			"Available providers:\n" +
			"  Cloud APIs (require API key):\n" +
			"    google         Google AI (Gemini)\n" +
			"    groq           Groq\n" +
			"    anthropic      Anthropic\n\n" +
			"  Local services (no API key):\n" +
			"    ollama         Ollama local server\n\n" +
			"  Custom:\n" +
			"    custom-openai  Custom OpenAI-compatible endpoint\n\n" +
			"Example: docxtrans translate -i in.docx -o out.docx -l ru --provider google")
		os.Exit(1)
	}

	key := settings.ResolveAPIKey(a.apiKey, a.provider)
	prov := resolveProvider(a.provider, a.baseURL, key, a.model, a.proxy, a.timeout)
	if err := validateProvider(prov, key); err != nil {
		logError("%v", err)
		os.Exit(1)
	}

	logInfo(i18n.T("Opening %s"), a.input)
	doc, err := docxfile.Open(a.input)
	if err != nil {
		logError("%v", err)
		os.Exit(1)
	}

	blocks := wordml.Segment(doc.MainXML)
	units, frags := wordml.Extract(blocks)

	meta := langmeta.Resolve(targetLang)
	logInfo(i18n.T("Provider: %s (%s), Model: %s"), prov.Name, prov.ID, prov.Model)
	logInfo(i18n.T("Target language: %s %s (%s)"), meta.Flag, meta.Name, targetLang)

	// Cooperative shutdown: first signal cancels the run, the output file
	// is never written.
	registry := translate.NewRegistry()
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	go func() {
		<-ctx.Done()
		registry.CancelAll()
	}()

	var mem *memory.File
	if a.memoryFile != "" {
		if mem, err = memory.Load(a.memoryFile); err != nil {
			logError("%v", err)
			os.Exit(1)
		}
	}

	translated := 0
	opts := translate.Options{
		Provider:      prov,
		TargetLang:    targetLang,
		SourceLang:    sourceLang,
		BatchSize:     a.batchSize,
		MaxConcurrent: a.concurrency,
		MaxRetries:    a.maxRetries,
		SystemPrompt:  a.prompt,
		Registry:      registry,
		Verbose:       a.verbose,
		OnProgress: func(done, total int) {
			translated = done
			logInfo("  %d/%d", done, total)
		},
		OnLog:   logInfo,
		OnError: logWarning,
	}
	if mem != nil {
		opts.Memory = mem
	}

	result, err := translate.TranslateAll(ctx, units, opts)
	if err != nil {
		if ctx.Err() != nil {
			logWarning(i18n.T("Translation cancelled"))
			os.Exit(130)
		}
		logError(i18n.T("Translation failed: %v"), err)
		os.Exit(1)
	}

	rebuilt := wordml.Reconstruct(doc.MainXML, result, frags)
	if err := wordml.CheckBalance(rebuilt); err != nil {
		logError(i18n.T("Rebuilt document is not well-formed, refusing to write output: %v"), err)
		os.Exit(1)
	}

	if err := doc.Save(rebuilt, a.output); err != nil {
		logError("%v", err)
		os.Exit(1)
	}

	if mem != nil {
		if err := mem.Save(); err != nil {
			logWarning(i18n.T("Translation memory not saved: %v"), err)
		}
	}

	logSuccess(i18n.T("Saved %s"), a.output)
	report := successReport{
		OutputPath:       a.output,
		ChunksTranslated: translated,
		TargetLanguage:   targetLang,
	}
	out, _ := json.Marshal(report)
	fmt.Println(string(out))
}

func resolveProvider(name, baseURL, apiKey, model, proxy string, timeout time.Duration) translate.Provider {
	defaults := translate.DefaultProviders()

	var prov translate.Provider
	if p, ok := defaults[strings.ToLower(name)]; ok {
		prov = p
	} else {
		// Unknown names are treated as custom OpenAI-compatible base URLs.
		prov = translate.Provider{
			ID:      translate.ProviderCustomOpenAI,
			Name:    name,
			BaseURL: name,
			Timeout: 60 * time.Second,
		}
	}

	if baseURL != "" {
		prov.BaseURL = baseURL
	} else if prov.ID == translate.ProviderCustomOpenAI {
		if cred := settings.Get(prov.ID); cred != nil && cred.BaseURL != "" {
			prov.BaseURL = cred.BaseURL
		}
	}
	if apiKey != "" {
		prov.APIKey = apiKey
	}
	if model != "" {
		prov.Model = model
	}
	if proxy != "" {
		prov.Proxy = proxy
	}
	if timeout > 0 {
		prov.Timeout = timeout
	}

	return prov
}

func validateProvider(prov translate.Provider, apiKey string) error {
	if prov.Model == "" {
		return fmt.Errorf("--model is required for provider %q\n\n"+
			"Usage: --provider %s --model MODEL_NAME", prov.ID, prov.ID)
	}
	if prov.BaseURL == "" {
		return fmt.Errorf("provider %q has no base URL; pass --base-url or store one with 'docxtrans auth set custom-openai'", prov.ID)
	}

	switch prov.ID {
	case translate.ProviderGoogle, translate.ProviderGroq, translate.ProviderAnthropic:
		if apiKey == "" {
			return fmt.Errorf("provider %q requires an API key\n\n"+
				"Option 1: Store the key:\n"+
				"  docxtrans auth set %s\n\n"+
				"Option 2: Pass it directly:\n"+
				"  --api-key YOUR_KEY or export %s=YOUR_KEY",
				prov.ID, prov.ID, settings.EnvAPIKey)
		}
	}
	return nil
}

// ---------------------------------------------------------------------------
// check
// ---------------------------------------------------------------------------

func newCheckCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "check FILE",
		Short: "Inspect a DOCX document without modifying it",
		Long: `Open a DOCX document, verify that its markup is well-formed, and print
paragraph/text statistics.`,
		Args: cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			runCheck(args[0])
		},
	}
}

func runCheck(path string) {
	doc, err := docxfile.Open(path)
	if err != nil {
		logError("%v", err)
		os.Exit(1)
	}

	blocks := wordml.Segment(doc.MainXML)
	units, frags := wordml.Extract(blocks)

	withText := 0
	for _, u := range units {
		if u.HasText {
			withText++
		}
	}

	parts, _ := doc.Parts()

	fmt.Printf("%s\n", path)
	fmt.Printf("  archive entries:       %d\n", len(parts))
	fmt.Printf("  paragraphs:            %s\n", fmt.Sprintf(i18n.N("%d paragraph", "%d paragraphs", len(units)), len(units)))
	fmt.Printf("  with translatable text: %d\n", withText)
	fmt.Printf("  markup fragments:      %d\n", len(frags))

	if err := wordml.CheckBalance(doc.MainXML); err != nil {
		logError(i18n.T("Markup balance check failed: %v"), err)
		os.Exit(1)
	}
	logSuccess(i18n.T("Markup is well-formed"))
}

// ---------------------------------------------------------------------------
// auth
// ---------------------------------------------------------------------------

func newAuthCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "auth",
		Short: "Manage provider API keys",
		Long: `Manage stored API keys.

Keys are stored in ` + settings.FilePath() + ` with 0600 permissions.

Lookup order when translating:
  1. --api-key flag
  2. ` + settings.EnvAPIKey + ` environment variable
  3. Stored keys`,
	}

	cmd.AddCommand(
		newAuthSetCmd(),
		newAuthListCmd(),
		newAuthRemoveCmd(),
	)
	return cmd
}

var keyProviders = []struct {
	id      string
	name    string
	helpURL string
}{
	{"google", "Google AI Studio", "https://aistudio.google.com/apikey"},
	{"groq", "Groq Cloud", "https://console.groq.com/keys"},
	{"anthropic", "Anthropic Console", "https://console.anthropic.com/settings/keys"},
	{"custom-openai", "Custom OpenAI", ""},
}

func newAuthSetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "set PROVIDER",
		Short: "Store an API key for a provider",
		Args:  cobra.ExactArgs(1),
		ValidArgs: func() []string {
			ids := make([]string, len(keyProviders))
			for i, p := range keyProviders {
				ids[i] = p.id
			}
			return ids
		}(),
		Run: func(cmd *cobra.Command, args []string) {
			authSet(args[0])
		},
	}
}

func authSet(providerID string) {
	var name, helpURL string
	for _, p := range keyProviders {
		if p.id == providerID {
			name, helpURL = p.name, p.helpURL
		}
	}
	if name == "" {
		logError("Unknown provider %q (valid: google, groq, anthropic, custom-openai)", providerID)
		os.Exit(1)
	}

	fmt.Fprintf(os.Stderr, "\n%s — API Key Setup\n", name)
	fmt.Fprintln(os.Stderr, strings.Repeat("─", 60))
	if helpURL != "" {
		fmt.Fprintf(os.Stderr, "\n  Get your API key from: %s\n", helpURL)
	}

	scanner := bufio.NewScanner(os.Stdin)

	existing := settings.Get(providerID)
	if existing != nil && existing.Key != "" {
		fmt.Fprintf(os.Stderr, "\n  Current key: %s\n", settings.MaskKey(existing.Key))
		fmt.Fprintf(os.Stderr, "  Enter new key to replace, or press Enter to keep: ")
	} else {
		fmt.Fprintf(os.Stderr, "\n  Enter API key: ")
	}

	if !scanner.Scan() {
		logError("No input received")
		os.Exit(1)
	}
	key := strings.TrimSpace(scanner.Text())
	if key == "" {
		if existing != nil && existing.Key != "" {
			logInfo("Keeping existing key")
			key = existing.Key
		} else if providerID != translate.ProviderCustomOpenAI {
			logError("No API key provided")
			os.Exit(1)
		}
	}

	cred := &settings.Credential{Key: key}
	if providerID == translate.ProviderCustomOpenAI {
		fmt.Fprintf(os.Stderr, "  Enter base URL (e.g. http://localhost:8080/v1): ")
		if !scanner.Scan() {
			logError("No input received")
			os.Exit(1)
		}
		cred.BaseURL = strings.TrimSpace(scanner.Text())
		if cred.BaseURL == "" && (existing == nil || existing.BaseURL == "") {
			logError("custom-openai requires a base URL")
			os.Exit(1)
		}
		if cred.BaseURL == "" {
			cred.BaseURL = existing.BaseURL
		}
	}

	if err := settings.Set(providerID, cred); err != nil {
		logError("Failed to save API key: %v", err)
		os.Exit(1)
	}
	logSuccess("%s credentials saved", name)
}

func newAuthListCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "Show stored credentials",
		Run: func(cmd *cobra.Command, args []string) {
			store := settings.Load()
			if len(store) == 0 {
				logInfo(i18n.T("No credentials stored"))
			}

			fmt.Fprintf(os.Stderr, "\nStored Credentials (%s)\n", settings.FilePath())
			fmt.Fprintln(os.Stderr, strings.Repeat("─", 60))
			for _, p := range keyProviders {
				cred := store[p.id]
				switch {
				case cred != nil && cred.Key != "":
					status := fmt.Sprintf("configured (key: %s)", settings.MaskKey(cred.Key))
					if cred.BaseURL != "" {
						status += ", endpoint: " + cred.BaseURL
					}
					fmt.Fprintf(os.Stderr, "  %-14s %s\n", p.id, status)
				case cred != nil && cred.BaseURL != "":
					fmt.Fprintf(os.Stderr, "  %-14s configured (no key), endpoint: %s\n", p.id, cred.BaseURL)
				default:
					fmt.Fprintf(os.Stderr, "  %-14s not configured\n", p.id)
				}
			}

			if envKey := os.Getenv(settings.EnvAPIKey); envKey != "" {
				fmt.Fprintf(os.Stderr, "\n  %s: %s (overrides stored keys)\n", settings.EnvAPIKey, settings.MaskKey(envKey))
			}
			fmt.Fprintln(os.Stderr)
		},
	}
}

func newAuthRemoveCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "remove PROVIDER",
		Aliases: []string{"rm"},
		Short:   "Delete the stored key for a provider",
		Args:    cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			if err := settings.Remove(args[0]); err != nil {
				logError("%v", err)
				os.Exit(1)
			}
			logSuccess("Credentials for %q removed", args[0])
		},
	}
}
