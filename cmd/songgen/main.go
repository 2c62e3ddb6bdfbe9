package main

import (
	"bufio"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/getsentry/sentry-go"

	"github.com/harmoniq-labs/songgen-agents-go/catalog"
	"github.com/harmoniq-labs/songgen-agents-go/config"
	"github.com/harmoniq-labs/songgen-agents-go/coordination"
	"github.com/harmoniq-labs/songgen-agents-go/llm"
	"github.com/harmoniq-labs/songgen-agents-go/models"
)

func main() {
	idea := flag.String("idea", "", "song idea (required)")
	styles := flag.String("styles", "", "comma-separated style tags")
	mood := flag.String("mood", "", "song mood")
	duration := flag.String("duration", "medium", "short | medium | long")
	instrumental := flag.Bool("instrumental", false, "generate without vocals")
	lyrics := flag.String("lyrics", "", "path to a custom lyrics file")
	provider := flag.String("provider", "", "openai | gemini (default: inferred from model)")
	model := flag.String("model", "", "model name override")
	out := flag.String("out", "song.json", "output path for the song document")
	flag.Parse()

	if *idea == "" {
		fmt.Fprintln(os.Stderr, "usage: songgen -idea \"a rainy city night\" [-styles jazz,lofi] [-instrumental]")
		os.Exit(2)
	}

	cfg := config.Load()
	if cfg.SentryDSN != "" {
		if err := sentry.Init(sentry.ClientOptions{Dsn: cfg.SentryDSN, TracesSampleRate: 1.0}); err != nil {
			log.Printf("⚠️  Sentry init failed: %v", err)
		} else {
			defer sentry.Flush(2 * time.Second)
		}
	}

	req := models.GenerationRequest{
		SongIdea:       *idea,
		Mood:           *mood,
		Duration:       *duration,
		IsInstrumental: *instrumental,
		Provider:       *provider,
		Model:          *model,
	}
	if *styles != "" {
		req.StyleTags = strings.Split(*styles, ",")
	}
	if *lyrics != "" {
		raw, err := os.ReadFile(*lyrics)
		if err != nil {
			log.Fatalf("❌ Could not read lyrics file: %v", err)
		}
		req.LyricsMode = models.LyricsModeCustom
		req.CustomLyrics = string(raw)
	}
	if *instrumental {
		req.LyricsMode = models.LyricsModeInstrumental
	}

	registry := llm.NewRegistry(cfg.OpenAIAPIKey, cfg.GeminiAPIKey)
	cat := catalog.NewLoader(nil, nil).Load()
	controller := coordination.NewController(cfg, registry, cat)

	progress := func(message string, percent int, stageID string) {
		fmt.Printf("[%3d%%] %s\n", percent, message)
	}

	ctx := context.Background()
	startTime := time.Now()
	result := controller.GenerateSong(ctx, req, progress)

	for result.UserApprovalRequired {
		result = askUserDecision(ctx, controller, result)
	}

	if !result.Success {
		log.Fatalf("❌ Generation failed: %s", result.Error)
	}

	fmt.Printf("\n✅ Done in %v: %q (%d tracks)\n",
		time.Since(startTime).Round(time.Second),
		result.SongDocument.Name, len(result.SongDocument.Tracks))
	for _, note := range result.QACorrections {
		fmt.Printf("   🔧 %s\n", note)
	}
	for _, note := range result.ReviewNotes {
		fmt.Printf("   🔍 %s\n", note)
	}

	encoded, err := json.MarshalIndent(result.SongDocument, "", "  ")
	if err != nil {
		log.Fatalf("❌ Could not encode song document: %v", err)
	}
	if err := os.WriteFile(*out, encoded, 0o644); err != nil {
		log.Fatalf("❌ Could not write %s: %v", *out, err)
	}
	fmt.Printf("💾 Song document written to %s\n", *out)
	if result.AlbumArt.ImageURL != "" {
		fmt.Printf("🎨 Album cover: %s\n", result.AlbumArt.ImageURL)
	}
}

// askUserDecision surfaces the QA feedback and blocks on stdin for an
// accept/improve choice.
func askUserDecision(ctx context.Context, controller *coordination.Controller, pending *coordination.GenerationResult) *coordination.GenerationResult {
	fmt.Println("\n🧪 Quality check flagged issues:")
	for _, issue := range pending.QAFeedback {
		fmt.Printf("   - %s\n", issue)
	}
	if data := pending.UserApprovalData; data != nil {
		fmt.Printf("   (restarts used: %d/%d)\n", data.RestartsUsed, data.RestartBudget)
	}

	reader := bufio.NewReader(os.Stdin)
	for {
		fmt.Print("Accept draft or improve? [accept/improve]: ")
		line, err := reader.ReadString('\n')
		if err != nil {
			log.Printf("⚠️  Could not read decision, accepting draft: %v", err)
			line = coordination.DecisionAccept
		}

		decision := strings.ToLower(strings.TrimSpace(line))
		if decision != coordination.DecisionAccept && decision != coordination.DecisionImprove {
			continue
		}

		result, ok := controller.SubmitUserDecision(ctx, pending.SessionID, decision)
		if !ok {
			log.Fatalf("❌ Session %s expired", pending.SessionID)
		}
		return result
	}
}
