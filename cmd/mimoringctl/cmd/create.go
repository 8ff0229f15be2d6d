package cmd

import (
	"fmt"
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"github.com/mimoring/mimoring/internal/buffer"
	"github.com/mimoring/mimoring/internal/dtype"
)

var (
	createName       string
	createSlots      int
	createDataLength int
	createOverwrite  bool
)

var createCmd = &cobra.Command{
	Use:   "create",
	Short: "allocate a named shared-memory buffer for other processes to attach to",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := buffer.Config{
			Name:       createName,
			SlotCount:  createSlots,
			DataLength: createDataLength,
			DataDtype:  []dtype.FieldSpec{{Name: "value", Code: dtype.F64}},
			Shared:     true,
		}
		if cmd.Flags().Changed("overwrite") {
			cfg.OverwriteSet = true
			cfg.Overwrite = createOverwrite
		}

		b, err := buffer.New(cfg)
		if err != nil {
			return err
		}
		defer b.Close()

		overwrite := !cfg.OverwriteSet || cfg.Overwrite
		fmt.Printf("created buffer %q: %d slots, overwrite=%v\n", b.Name(), b.SlotCount(), overwrite)
		fmt.Println("press ctrl+c to unlink and exit")

		sig := make(chan os.Signal, 1)
		signal.Notify(sig, os.Interrupt)
		<-sig
		fmt.Println("\nunlinking buffer")
		return nil
	},
}

func init() {
	createCmd.Flags().StringVar(&createName, "name", "mimoring-demo", "buffer name")
	createCmd.Flags().IntVar(&createSlots, "slots", 8, "slot count")
	createCmd.Flags().IntVar(&createDataLength, "data-length", 4, "data array length per slot")
	createCmd.Flags().BoolVar(&createOverwrite, "overwrite", true, "overwrite the oldest filled slot when no empty slot is free")
	rootCmd.AddCommand(createCmd)
}
