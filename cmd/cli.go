package cmd

import (
	"encoding/csv"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"time"

	"sikmeans/internal/sikm"

	"github.com/phsym/console-slog"
	"github.com/spf13/cobra"
)

func Init() *slog.LevelVar {
	level := &slog.LevelVar{}
	logger := slog.New(
		console.NewHandler(os.Stderr, &console.HandlerOptions{
			Level:      level,
			TimeFormat: time.Kitchen,
		}))
	slog.SetDefault(logger)
	cobra.EnableCommandSorting = false
	return level
}

type CLI struct {
	command *cobra.Command
}

// NewCLI create new CLI instance and set up application config.
func NewCLI() *CLI {
	level := Init()
	defaultConcurrency := max(1, runtime.NumCPU()/5)
	defaultKConcurrency := max(1, runtime.NumCPU()/defaultConcurrency)

	f := flags{
		Centroids:    8,
		Length:       64,
		Output:       ".",
		Round:        100,
		Metric:       "euclidean",
		Backend:      "direct",
		Delta:        0.005,
		Concurrency:  defaultConcurrency,
		KConcurrency: defaultKConcurrency,
	}

	command := cobra.Command{
		Use:   "sikmeans [files...]",
		Short: "Cluster signal recordings with shift-invariant k-means",
		Long: "Learns a codebook of short waveforms from longer samples: each centroid is slid\n" +
			"across every offset of a sample and the best-matching window counts. Input files\n" +
			"are CSV, one sample per row.",
		Args: cobra.MinimumNArgs(1),
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			debug, err := cmd.PersistentFlags().GetBool("debug")
			if err != nil {
				return err
			}
			if debug {
				level.Set(slog.LevelDebug)
			}
			return nil
		},
		Run: func(cmd *cobra.Command, args []string) {
			now := time.Now()
			if q, err := cmd.Flags().GetBool("quick"); err == nil && q {
				f.Delta = 0.01
				f.Round = 50
			}

			if _, err := sikm.ParseMetric(f.Metric); err != nil {
				slog.Error("Unknown metric", slog.String("metric", f.Metric), slog.Any("err", err))
				return
			}
			if _, err := sikm.ParseBackend(f.Backend); err != nil {
				slog.Error("Unknown backend", slog.String("backend", f.Backend), slog.Any("err", err))
				return
			}

			if _, err := os.Stat(f.Output); err != nil {
				err := os.Mkdir(f.Output, os.ModePerm)
				if err != nil {
					slog.Info("Error creating output directory", slog.Any("dir", f.Output))
					return
				}
			}

			if f.Concurrency < 1 {
				f.Concurrency = defaultConcurrency
			}
			if f.KConcurrency < 1 {
				f.KConcurrency = defaultKConcurrency
			}

			con := make(chan struct{}, f.Concurrency)
			for _, arg := range args {
				ch := scan(arg)
				for path := range ch {
					process(path, f, con)
				}
			}

			for i := 0; i < f.Concurrency; i++ {
				con <- struct{}{}
			}
			slog.Info("Processing completed", slog.Duration("took", time.Since(now)))
		},
	}

	command.Flags().IntVarP(&f.Centroids, "centroids", "n", f.Centroids, "Number of centroids to learn")
	command.Flags().IntVarP(&f.Length, "length", "l", f.Length, "Centroid length in features, must be at most the sample length")
	command.Flags().StringVarP(&f.Output, "out", "o", f.Output, "Output directory name")
	command.Flags().StringVarP(&f.Metric, "metric", "m", f.Metric, "Distance metric [euclidean,cosine]")
	command.Flags().StringVar(&f.Backend, "backend", f.Backend, "Assignment backend [direct,toeplitz,vq]")
	command.Flags().BoolP("quick", "q", false, "Increase speed in exchange of accuracy")
	command.Flags().BoolVarP(&f.Overwrite, "overwrite", "w", f.Overwrite, "Overwrite output if exists")
	command.Flags().IntVarP(&f.Round, "round", "i", f.Round, "Maximum number of round before stop adjusting (number of kmeans iterations)")
	command.Flags().Float64VarP(&f.Delta, "delta", "d", f.Delta, "Delta threshold of convergence (fraction of samples changing label)")
	command.Flags().IntVarP(&f.Concurrency, "concurrency", "t", f.Concurrency, "Maximum number of files processed at a time [0=auto]")
	command.Flags().IntVar(&f.KConcurrency, "kcpu", f.KConcurrency, "Maximum cpu used processing each file [0=auto]")
	command.Flags().Int64Var(&f.Seed, "seed", f.Seed, "Random seed for centroid initialization [0=random]")
	command.PersistentFlags().Bool("debug", false, "Enable debug mode")
	command.Flags().SortFlags = false
	return &CLI{&command}
}

func process(path string, f flags, con chan struct{}) {
	con <- struct{}{}
	go func() {
		defer func() {
			<-con
		}()
		handleFile(path, f)
	}()
}

func handleFile(path string, f flags) {
	base := filepath.Base(path)
	slog.Info("Processing",
		slog.Int("centroids", f.Centroids),
		slog.Int("length", f.Length),
		slog.String("metric", f.Metric),
		slog.String("backend", f.Backend),
		slog.Int("round", f.Round),
		slog.String("file", base),
	)

	stem := strings.TrimSuffix(base, filepath.Ext(base))
	codebookFile := filepath.Join(f.Output, stem+".codebook.csv")
	assignFile := filepath.Join(f.Output, stem+".assign.csv")
	if stats, err := os.Stat(codebookFile); err == nil {
		slog.Info("File existed",
			slog.Any("path", codebookFile),
			slog.Bool("isDir", stats.IsDir()),
			slog.Bool("overwrite", f.Overwrite),
		)
		if !f.Overwrite {
			return
		}
		if stats.IsDir() {
			return
		}
	}

	now := time.Now()
	samples, err := load(path)
	if err != nil {
		slog.Error("Error reading samples", slog.String("file", path), slog.Any("err", err))
		return
	}
	slog.Debug("Loaded samples",
		slog.String("file", base),
		slog.Int("samples", len(samples)),
		slog.Duration("elapsed", time.Since(now)),
	)

	metric, _ := sikm.ParseMetric(f.Metric)
	backend, _ := sikm.ParseBackend(f.Backend)
	model, err := sikm.NewTrainer(f.Centroids, f.Length,
		sikm.WithMetric(metric),
		sikm.WithBackend(backend),
		sikm.WithMaxIterations(f.Round),
		sikm.WithDeltaThreshold(f.Delta),
		sikm.WithConcurrency(f.KConcurrency),
		sikm.WithSeed(f.Seed)).
		Fit(samples)
	if err != nil {
		slog.Error("Error fitting codebook", slog.String("file", base), slog.Any("err", err))
		return
	}

	if err := writeCodebook(codebookFile, model.Centroids()); err != nil {
		slog.Error("Error writing codebook", slog.String("out", codebookFile), slog.Any("err", err))
		return
	}
	if err := writeAssignment(assignFile, model); err != nil {
		slog.Error("Error writing assignment", slog.String("out", assignFile), slog.Any("err", err))
		return
	}
	slog.Info("Clustering completed",
		slog.String("out", codebookFile),
		slog.Duration("took", time.Since(now)),
		slog.Int("iter", model.Iter()),
		slog.String("distortion", strconv.FormatFloat(model.Distortion(), 'g', 6, 64)))
}

func writeCodebook(path string, centroids [][]float64) error {
	o, err := os.Create(path)
	if err != nil {
		return err
	}
	defer func() {
		if err := o.Close(); err != nil {
			slog.Error("Error closing codebook file",
				slog.String("out", path),
				slog.Any("err", err))
		}
	}()

	w := csv.NewWriter(o)
	record := make([]string, 0, 64)
	for _, cent := range centroids {
		record = record[:0]
		for _, v := range cent {
			record = append(record, strconv.FormatFloat(v, 'g', -1, 64))
		}
		if err := w.Write(record); err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
}

func writeAssignment(path string, model *sikm.Model) error {
	o, err := os.Create(path)
	if err != nil {
		return err
	}
	defer func() {
		if err := o.Close(); err != nil {
			slog.Error("Error closing assignment file",
				slog.String("out", path),
				slog.Any("err", err))
		}
	}()

	w := csv.NewWriter(o)
	if err := w.Write([]string{"sample", "label", "shift", "distance"}); err != nil {
		return err
	}
	labels, shifts, dists := model.Guesses(), model.Shifts(), model.Distances()
	for k := range labels {
		record := []string{
			strconv.Itoa(k),
			strconv.Itoa(labels[k]),
			strconv.Itoa(shifts[k]),
			strconv.FormatFloat(dists[k], 'g', -1, 64),
		}
		if err := w.Write(record); err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
}

type flags struct {
	Centroids    int
	Length       int
	Output       string
	Metric       string
	Backend      string
	Round        int
	Overwrite    bool
	Concurrency  int
	KConcurrency int
	Delta        float64
	Seed         int64
}

func scan(dir string) <-chan string {
	ch := make(chan string, 1)
	info, err := os.Stat(dir)
	if err != nil {
		slog.Error("Err scanning file(s)", slog.String("path", dir), slog.Any("err", err))
		close(ch)
		return ch
	}

	go func() {
		defer close(ch)
		if !info.IsDir() {
			ch <- dir
			return
		}

		files, err := os.ReadDir(dir)
		if err != nil {
			slog.Error("Err scanning dir", slog.String("path", dir), slog.Any("err", err))
			return
		}

		for _, file := range files {
			if file.IsDir() {
				continue
			}
			if !strings.EqualFold(filepath.Ext(file.Name()), ".csv") {
				slog.Debug("Skipping non-csv file", slog.String("path", file.Name()))
				continue
			}
			ch <- filepath.Join(dir, file.Name())
		}
	}()

	return ch
}

// load reads one sample per CSV row. A first row that does not parse as
// numbers is treated as a header and skipped.
func load(path string) ([][]float64, error) {
	fh, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer fh.Close()

	r := csv.NewReader(fh)
	r.TrimLeadingSpace = true
	records, err := r.ReadAll()
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("%s: no samples", path)
	}

	samples := make([][]float64, 0, len(records))
	for i, record := range records {
		row := make([]float64, len(record))
		ok := true
		for j, field := range record {
			v, err := strconv.ParseFloat(strings.TrimSpace(field), 64)
			if err != nil {
				if i == 0 {
					ok = false
					break
				}
				return nil, fmt.Errorf("%s: row %d column %d: %w", path, i+1, j+1, err)
			}
			row[j] = v
		}
		if ok {
			samples = append(samples, row)
		}
	}
	if len(samples) == 0 {
		return nil, fmt.Errorf("%s: no numeric rows", path)
	}
	return samples, nil
}

func (cli *CLI) Execute() {
	if err := cli.command.Execute(); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err)
	}
}
