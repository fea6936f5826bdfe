package commands

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/lingopipe/lingopipe/pkg/audio/portaudio"
)

var devicesCmd = &cobra.Command{
	Use:   "devices",
	Short: "List host audio devices",
	Long: `List every audio device PortAudio can see, marking the defaults
the run command will use.

Examples:
  lingopipe devices
  lingopipe devices --json`,
	RunE: func(cmd *cobra.Command, args []string) error {
		devices, err := portaudio.Devices()
		if err != nil {
			return fmt.Errorf("failed to enumerate devices: %w", err)
		}
		defer portaudio.Terminate()

		if outputJSON {
			return outputResult(devices)
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "INDEX\tNAME\tIN\tOUT\tRATE\tDEFAULT")
		for _, d := range devices {
			marker := ""
			if d.IsDefaultInput {
				marker += "input "
			}
			if d.IsDefaultOutput {
				marker += "output"
			}
			fmt.Fprintf(w, "%d\t%s\t%d\t%d\t%.0f\t%s\n",
				d.Index, d.Name, d.MaxInputChannels, d.MaxOutputChannels, d.DefaultSampleRate, marker)
		}
		return w.Flush()
	},
}
