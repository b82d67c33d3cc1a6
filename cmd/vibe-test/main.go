// Command vibe-test runs a single verification against a JPEG file,
// for checking models and thresholds without a camera or server.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/moodfi/vibecheck/internal/config"
	"github.com/moodfi/vibecheck/internal/log"
	"github.com/moodfi/vibecheck/pkg/detect"
	"github.com/moodfi/vibecheck/pkg/emotion"
	"github.com/moodfi/vibecheck/pkg/reward"
	"github.com/moodfi/vibecheck/pkg/verify"
)

func main() {
	imagePath := flag.String("image", "", "Path to a JPEG image (required)")
	target := flag.String("emotion", "", "Target emotion to check against (optional)")
	modelDir := flag.String("models", config.DefaultModelDir, "Model cache directory")
	flag.Parse()

	log.Init("warn")

	if *imagePath == "" {
		fmt.Fprintln(os.Stderr, "usage: vibe-test -image selfie.jpg [-emotion happy]")
		os.Exit(2)
	}

	var requested emotion.Label
	if *target != "" {
		label, ok := emotion.Parse(*target)
		if !ok {
			fmt.Fprintf(os.Stderr, "unknown emotion %q; one of: %v\n", *target, emotion.All())
			os.Exit(2)
		}
		requested = label
	}

	frame, err := os.ReadFile(*imagePath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "read image: %v\n", err)
		os.Exit(1)
	}

	cfg := detect.DefaultConfig()
	cfg.FaceModelPath = filepath.Join(*modelDir, "face_detection_yunet.onnx")
	cfg.EmotionModelPath = filepath.Join(*modelDir, "emotion_ferplus.onnx")
	cfg.FaceModelURL = config.DefaultFaceModelURL
	cfg.EmotionModelURL = config.DefaultEmotionModelURL

	detector := detect.NewYuNet(cfg)
	defer detector.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()
	if err := detector.LoadModels(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "load models: %v\n", err)
		os.Exit(1)
	}

	res := verify.New(detector).Verify(ctx, frame, requested)

	out, _ := json.MarshalIndent(res, "", "  ")
	fmt.Println(string(out))

	if res.IsFaceDetected && res.VibeCheck != nil {
		exact := requested != "" && emotion.Equal(res.DominantEmotion, requested)
		tokens := reward.Compute(res.OverallConfidence, res.VibeCheck.MatchScorePercent, exact)
		fmt.Printf("\nreward: %.1f MOOD\n", tokens)
	}
}
