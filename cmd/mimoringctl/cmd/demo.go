package cmd

import (
	"context"
	"sync"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
	"github.com/valyala/fastrand"

	"github.com/mimoring/mimoring/cmd/mimoringctl/internal/tui"
	"github.com/mimoring/mimoring/internal/buffer"
	"github.com/mimoring/mimoring/internal/dtype"
	"github.com/mimoring/mimoring/internal/session"
)

var (
	demoSlots      int
	demoWriters    int
	demoReaders    int
	demoOverwrite  bool
	demoFlushAfter time.Duration
)

var demoCmd = &cobra.Command{
	Use:   "demo",
	Short: "run a self-contained producer/consumer pipeline with a live stats dashboard",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := buffer.Config{
			Name:       "mimoringctl-demo",
			SlotCount:  demoSlots,
			DataLength: 4,
			DataDtype:  []dtype.FieldSpec{{Name: "value", Code: dtype.F64}},
		}
		if cmd.Flags().Changed("overwrite") {
			cfg.OverwriteSet = true
			cfg.Overwrite = demoOverwrite
		}

		b, err := buffer.New(cfg)
		if err != nil {
			return err
		}
		defer b.Close()

		ctx, cancel := context.WithCancel(context.Background())
		var wg sync.WaitGroup

		w := session.NewWriter(b)
		r := session.NewReader(b)

		for i := 0; i < demoWriters; i++ {
			wg.Add(1)
			go runWriter(ctx, &wg, w)
		}
		for i := 0; i < demoReaders; i++ {
			wg.Add(1)
			go runReader(ctx, &wg, r)
		}

		if demoFlushAfter > 0 {
			go func() {
				time.Sleep(demoFlushAfter)
				w.SendFlushEvent()
			}()
		}

		m := tui.NewModel("demo", b.Stats, 250*time.Millisecond)
		_, err = tea.NewProgram(m).Run()

		cancel()
		wg.Wait()
		return err
	},
}

func runWriter(ctx context.Context, wg *sync.WaitGroup, w *session.Writer) {
	defer wg.Done()
	var n uint64
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}
		w.Do(func(data dtype.View, meta dtype.MetadataView) {
			n++
			data.SetFloat64("value", 0, float64(n))
		})
		time.Sleep(time.Duration(1+fastrand.Uint32n(5)) * time.Millisecond)
	}
}

func runReader(ctx context.Context, wg *sync.WaitGroup, r *session.Reader) {
	defer wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}
		ok := r.Do(func(data dtype.View, meta dtype.MetadataView) {})
		if !ok {
			time.Sleep(5 * time.Millisecond)
		}
	}
}

func init() {
	demoCmd.Flags().IntVar(&demoSlots, "slots", 8, "slot count")
	demoCmd.Flags().IntVar(&demoWriters, "writers", 2, "concurrent writer goroutines")
	demoCmd.Flags().IntVar(&demoReaders, "readers", 1, "concurrent reader goroutines")
	demoCmd.Flags().BoolVar(&demoOverwrite, "overwrite", true, "overwrite the oldest filled slot when no empty slot is free")
	demoCmd.Flags().DurationVar(&demoFlushAfter, "flush-after", 0, "send a flush event after this long (0 disables it)")
	rootCmd.AddCommand(demoCmd)
}
