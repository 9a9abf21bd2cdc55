// Command feature-diagnostics prints the PCA explained-variance ratios and
// the k-means inertia curve of a recording, for choosing pca_components and
// cluster_k.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/banshee-data/motion.report/internal/config"
	"github.com/banshee-data/motion.report/internal/dataset"
	"github.com/banshee-data/motion.report/internal/pipeline"
)

func main() {
	input := flag.String("input", "", "input table (.csv, or .db/.sqlite with optional #table)")
	configPath := flag.String("config", "", "pipeline config JSON (defaults built in)")
	kmin := flag.Int("kmin", 2, "smallest k of the inertia curve")
	kmax := flag.Int("kmax", 10, "largest k of the inertia curve")
	flag.Parse()

	if *input == "" {
		log.Fatal("-input is required")
	}
	if *kmin < 2 || *kmax < *kmin {
		log.Fatalf("invalid k range [%d, %d]", *kmin, *kmax)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := diagnose(ctx, os.Stdout, *input, *configPath, kRange(*kmin, *kmax)); err != nil {
		log.Fatalf("diagnostics: %v", err)
	}
}

func kRange(lo, hi int) []int {
	ks := make([]int, 0, hi-lo+1)
	for k := lo; k <= hi; k++ {
		ks = append(ks, k)
	}
	return ks
}

func diagnose(ctx context.Context, w io.Writer, input, configPath string, ks []int) error {
	cfg := config.EmptyPipelineConfig()
	if configPath != "" {
		var err error
		if cfg, err = config.LoadPipelineConfig(configPath); err != nil {
			return err
		}
	}
	p, err := pipeline.New(cfg)
	if err != nil {
		return err
	}

	reader, err := dataset.Open(input, cfg.GetIndexColumn())
	if err != nil {
		return err
	}
	in, err := reader.Read(ctx)
	if err != nil {
		return fmt.Errorf("read %s: %w", input, err)
	}

	d, err := p.Diagnose(ctx, in, ks)
	if err != nil {
		return err
	}

	fmt.Fprintln(w, "component  ratio   cumulative")
	cum := 0.0
	for i, r := range d.PCARatio {
		cum += r
		fmt.Fprintf(w, "pca_%-6d %.4f  %.4f\n", i+1, r, cum)
	}
	fmt.Fprintf(w, "\nk-means over %d rows\n", d.Rows)
	fmt.Fprintln(w, "k   inertia")
	for _, pt := range d.InertiaCurve {
		fmt.Fprintf(w, "%-3d %.6g\n", pt.K, pt.Inertia)
	}
	return nil
}
