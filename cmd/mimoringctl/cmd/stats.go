package cmd

import (
	"fmt"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/mimoring/mimoring/cmd/mimoringctl/internal/tui"
	"github.com/mimoring/mimoring/internal/buffer"
	"github.com/mimoring/mimoring/internal/dtype"
)

var (
	statsName       string
	statsSlots      int
	statsDataLength int
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "attach to a running shared buffer and watch its live stats",
	Long: `stats attaches to a buffer previously allocated with "create" (same
name, slot count and data length) and renders a live dashboard of its
statistics without taking part in reading or writing.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		b, err := buffer.Attach(buffer.Config{
			Name:       statsName,
			SlotCount:  statsSlots,
			DataLength: statsDataLength,
			DataDtype:  []dtype.FieldSpec{{Name: "value", Code: dtype.F64}},
			Shared:     true,
		})
		if err != nil {
			return fmt.Errorf("attach: %w", err)
		}
		defer b.Close()

		m := tui.NewModel(statsName, b.Stats, 250*time.Millisecond)
		_, err = tea.NewProgram(m).Run()
		return err
	},
}

func init() {
	statsCmd.Flags().StringVar(&statsName, "name", "mimoring-demo", "buffer name (must match the creator's)")
	statsCmd.Flags().IntVar(&statsSlots, "slots", 8, "slot count (must match the creator's)")
	statsCmd.Flags().IntVar(&statsDataLength, "data-length", 4, "data array length per slot (must match the creator's)")
	rootCmd.AddCommand(statsCmd)
}
