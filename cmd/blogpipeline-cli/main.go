// -----------------------------------------------------------------------
// Last Modified: Thursday, 14th November 2025 12:00:00 pm
// Modified By: Bob McAllan
// -----------------------------------------------------------------------

// Command blogpipeline-cli runs a single article-generation job
// synchronously from the command line, without starting the HTTP
// server, for local testing of the pipeline (spec.md §6). It has no
// offline mode: without a provider API key the generation stage fails.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/blogpipeline/internal/app"
	"github.com/ternarybob/blogpipeline/internal/common"
	"github.com/ternarybob/blogpipeline/internal/models"
)

func main() {
	configFile := flag.String("config", "blogpipeline.toml", "Configuration file path")
	keyword := flag.String("keyword", "", "Primary keyword to write about (required)")
	companyURL := flag.String("company-url", "", "Company website URL (required)")
	wordCount := flag.Int("words", 0, "Target word count (default 1500)")
	outPath := flag.String("out", "", "Write the result JSON to this path instead of stdout")
	useGraphics := flag.Bool("graphics", false, "Render simple graphics instead of photographic images")
	flag.Parse()

	if *keyword == "" || *companyURL == "" {
		fmt.Fprintln(os.Stderr, "usage: blogpipeline-cli -keyword <keyword> -company-url <url>")
		os.Exit(2)
	}

	configPath := *configFile
	if _, err := os.Stat(configPath); err != nil {
		configPath = ""
	}
	config, err := common.LoadFromFiles(nil, configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logger := arbor.NewLogger().WithLevelFromString(config.Logging.Level)
	common.InitLogger(logger)

	ctx := context.Background()
	application, err := app.New(ctx, config, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to initialize application")
	}
	defer application.Close()

	jobConfig := models.JobConfig{
		Keyword:     *keyword,
		CompanyURL:  *companyURL,
		WordCount:   *wordCount,
		UseGraphics: *useGraphics,
	}

	job, err := application.Jobs.RunSync(ctx, jobConfig)
	if err != nil {
		logger.Fatal().Err(err).Msg("Job failed to run")
	}

	output, err := json.MarshalIndent(job, "", "  ")
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to marshal job result")
	}

	if *outPath != "" {
		if err := os.WriteFile(*outPath, output, 0644); err != nil {
			logger.Fatal().Err(err).Msg("Failed to write output file")
		}
		fmt.Printf("wrote result to %s\n", *outPath)
		return
	}
	fmt.Println(string(output))
}
