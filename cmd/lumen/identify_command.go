package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"
	"golang.org/x/text/language"

	"lumen/internal/confidence"
	"lumen/internal/services"
	"lumen/internal/services/artcache"
	"lumen/internal/services/reference"
	"lumen/internal/services/tts"
	"lumen/internal/services/vision"
	"lumen/internal/session"
	"lumen/internal/verification"
)

func newIdentifyCommand(ctx *commandContext) *cobra.Command {
	var languageFlag string

	cmd := &cobra.Command{
		Use:   "identify <image>",
		Short: "Identify a photographed artwork and narrate it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			logger, err := ctx.newLogger()
			if err != nil {
				return err
			}

			image, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("read image %q: %w", args[0], err)
			}

			apiKey, keySource := cfg.ResolveAPIKey(ctx.configDir())
			if apiKey == "" {
				return fmt.Errorf("no API key configured: %s", services.UserMessage(services.KindAPIKeyMissing))
			}
			logger.Debug("resolved API key", "source", string(keySource))

			histStore, photoStore, err := ctx.openHistory(logger)
			if err != nil {
				return err
			}
			defer histStore.Close()

			deps := session.Deps{
				Vision: vision.NewClient(vision.Config{
					APIKey:         apiKey,
					BaseURL:        cfg.Vision.BaseURL,
					Model:          cfg.Vision.Model,
					TimeoutSeconds: cfg.Vision.TimeoutSeconds,
				}),
				Verifier: verification.NewVerifier(reference.NewLookup(cfg.Reference, logger), logger),
				Photos:   photoStore,
				History:  histStore,
				Logger:   logger,
			}
			if cfg.Cache.Enabled {
				deps.Cache = artcache.NewClient(artcache.Config{
					BaseURL:        cfg.Cache.BaseURL,
					APIToken:       cfg.Cache.APIToken,
					TimeoutSeconds: cfg.Cache.TimeoutSeconds,
				})
			}
			if cfg.TTS.Enabled {
				deps.Audio = tts.NewSynthesizer(tts.Config{
					BaseURL:        cfg.TTS.BaseURL,
					Voice:          cfg.TTS.Voice,
					TimeoutSeconds: cfg.TTS.TimeoutSeconds,
					AudioCacheDir:  cfg.AudioCacheDir(),
				})
			}

			settings := session.SettingsFromConfig(cfg)
			if lang := strings.TrimSpace(languageFlag); lang != "" {
				if _, err := language.Parse(lang); err != nil {
					return fmt.Errorf("--language: %q is not a valid BCP-47 tag: %w", lang, err)
				}
				settings.Language = lang
			}

			orch := session.NewOrchestrator(settings, deps)
			result, err := orch.Run(cmd.Context(), image, progressPrinter())
			if err != nil {
				kind := services.Classify(err)
				return fmt.Errorf("%s: %w", services.UserMessage(kind), err)
			}

			printResult(cmd, result)
			orch.Registry().Wait()
			return nil
		},
	}

	cmd.Flags().StringVarP(&languageFlag, "language", "l", "", "Narration language tag (BCP-47), overriding the configured one")
	return cmd
}

// progressPrinter writes stage transitions to stderr. On a terminal the
// generating stage updates in place as streamed content accumulates.
func progressPrinter() session.ProgressFunc {
	tty := isatty.IsTerminal(os.Stderr.Fd()) || isatty.IsCygwinTerminal(os.Stderr.Fd())
	var lastStage session.Stage
	var inPlace bool

	endInPlace := func() {
		if inPlace {
			fmt.Fprintln(os.Stderr)
			inPlace = false
		}
	}

	return func(p session.Progress) {
		switch p.Stage {
		case session.StageGenerating:
			if tty {
				fmt.Fprintf(os.Stderr, "\rgenerating narration... %d chars", p.GeneratedChars)
				inPlace = true
				lastStage = p.Stage
				return
			}
			if lastStage != p.Stage {
				fmt.Fprintln(os.Stderr, "generating narration...")
			}
		case session.StageIdentifying:
			fmt.Fprintln(os.Stderr, "identifying artwork...")
		case session.StageLoadingCache:
			fmt.Fprintln(os.Stderr, "checking cache...")
		case session.StageVerifying:
			endInPlace()
			fmt.Fprintln(os.Stderr, "verifying against reference sources...")
		case session.StagePersisting:
			endInPlace()
		case session.StageReady, session.StageFailed:
			endInPlace()
		}
		lastStage = p.Stage
	}
}

func printResult(cmd *cobra.Command, result session.Result) {
	out := cmd.OutOrStdout()
	bundle := result.Bundle

	header := bundle.Title
	if bundle.Artist != "" {
		header += " — " + bundle.Artist
	}
	if bundle.Year != "" {
		header += " (" + bundle.Year + ")"
	}
	fmt.Fprintln(out, header)

	level := confidence.Classify(bundle.Confidence)
	switch level.NarrationTemplate() {
	case confidence.TemplateDisclaimer:
		fmt.Fprintln(out, "\n[identification uncertain; details may be inaccurate]")
	case confidence.TemplateFallback:
		fmt.Fprintln(out, "\n[artwork could not be identified; describing what is visible]")
	}

	fmt.Fprintln(out)
	fmt.Fprintln(out, bundle.Narration)
	if bundle.ArtistIntroduction != "" {
		fmt.Fprintln(out)
		fmt.Fprintln(out, bundle.ArtistIntroduction)
	}
	if len(bundle.Sources) > 0 {
		fmt.Fprintln(out)
		fmt.Fprintln(out, "Sources:")
		for _, src := range bundle.Sources {
			fmt.Fprintln(out, "  "+src)
		}
	}
	if result.FromCache {
		fmt.Fprintln(cmd.ErrOrStderr(), "(served from cache)")
	}
}
