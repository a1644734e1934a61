// Command campaign builds a campaign document from a catalog file without
// starting the HTTP server.
//
//	campaign -catalog products.xlsx -out campaign.json -k 3 -variants 3
//	campaign -catalog products.csv -best-only -out -
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"

	config "genai-campaign-api/configs"
	"genai-campaign-api/pkg/app"
	"genai-campaign-api/pkg/logger"
	"genai-campaign-api/pkg/models"
	"genai-campaign-api/pkg/services"

	"github.com/joho/godotenv"
)

type options struct {
	catalogPath string
	outPath     string
	topK        int
	variants    int
	audience    int
	niche       string
	bestOnly    bool
}

func main() {
	var opts options
	flag.StringVar(&opts.catalogPath, "catalog", "", "catalog file (.json, .csv, .tsv, .txt, .xlsx)")
	flag.StringVar(&opts.outPath, "out", "campaign.json", `output file, "-" for stdout`)
	flag.IntVar(&opts.topK, "k", 0, "number of top products (0 = TOP_K)")
	flag.IntVar(&opts.variants, "variants", 0, "variants per channel (0 = VARIANTS_PER_CHANNEL)")
	flag.IntVar(&opts.audience, "audience", 0, "audience size (0 = AUDIENCE_SIZE)")
	flag.StringVar(&opts.niche, "niche", "", "campaign niche (empty = NICHE)")
	flag.BoolVar(&opts.bestOnly, "best-only", false, "only score the catalog and write the top products")
	flag.Parse()

	if opts.catalogPath == "" {
		flag.Usage()
		os.Exit(2)
	}

	_ = godotenv.Load()
	cfg := config.LoadConfig()

	appLog, err := logger.New(cfg.Environment)
	if err != nil {
		log.Fatalf("failed to build logger: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err = run(ctx, cfg, appLog, opts)
	stop()
	if err != nil {
		appLog.Fatal("campaign command failed", "error", err)
	}
}

// run returns instead of exiting so deferred cleanup always happens.
func run(ctx context.Context, cfg *config.Config, appLog *logger.Logger, opts options) error {
	a, err := app.New(ctx, cfg, appLog)
	if err != nil {
		return fmt.Errorf("initialize application: %w", err)
	}
	defer a.Close()

	catalog, err := a.Catalog.LoadFile(opts.catalogPath)
	if err != nil {
		return fmt.Errorf("load catalog %s: %w", opts.catalogPath, err)
	}

	var result interface{}
	if opts.bestOnly {
		top, err := a.Builder.TopProducts(ctx, catalog, opts.topK)
		if err != nil {
			return fmt.Errorf("score catalog: %w", err)
		}
		result = bestProducts(top)
	} else {
		res, err := a.Builder.Run(ctx, catalog, services.CampaignOptions{
			Niche:              opts.niche,
			TopK:               opts.topK,
			VariantsPerChannel: opts.variants,
			AudienceSize:       opts.audience,
		})
		if err != nil {
			return fmt.Errorf("build campaign: %w", err)
		}
		result = res.Document
	}

	if err := writeJSON(opts.outPath, result); err != nil {
		return fmt.Errorf("write output: %w", err)
	}
	if opts.outPath != "-" {
		appLog.Info("output written", "path", opts.outPath)
	}
	return nil
}

func bestProducts(top []models.ScoredProduct) []models.TopProductEntry {
	out := make([]models.TopProductEntry, 0, len(top))
	for _, sp := range top {
		out = append(out, models.TopProductEntry{
			Name:           sp.Product.Name,
			Category:       sp.Product.Category,
			Price:          sp.Product.Price,
			Score:          sp.Score,
			Recommendation: sp.Recommendation,
		})
	}
	return out
}

func writeJSON(path string, v interface{}) error {
	var w io.Writer = os.Stdout
	if path != "-" {
		f, err := os.Create(path)
		if err != nil {
			return err
		}
		defer f.Close()
		w = f
	}
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("encode %s: %w", path, err)
	}
	return nil
}
