package cli

import (
	"fmt"
	"io"
	"os"
	"os/exec"
	"runtime"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"github.com/tesseralab/tessera/internal/doctor"
	"github.com/tesseralab/tessera/internal/imaging"
	"github.com/tesseralab/tessera/internal/tiles"
	"github.com/tesseralab/tessera/internal/ui"
)

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Diagnostic information about the tessera environment",
	Long: `Displays diagnostic information about the tessera environment for
debugging.

This command shows:
- tessera version and platform
- ImageMagick availability (needed for HEIC conversion)
- Index store health
- Manifest discovery
- Supported image formats`,
	Args: cobra.NoArgs,
	RunE: runDoctor,
}

func init() {
	rootCmd.AddCommand(doctorCmd)
}

func runDoctor(cmd *cobra.Command, args []string) error {
	fmt.Println(ui.Bold("Tessera Doctor"))
	fmt.Println()

	reg := doctor.NewRegistry()
	reg.Register(&versionSection{})
	reg.Register(&magickSection{})
	reg.Register(&storeSection{})
	reg.Register(&manifestSection{})
	reg.Register(&formatsSection{})

	for _, section := range reg.Sections() {
		ui.Section(section.Name())
		if err := section.Print(os.Stdout); err != nil {
			fmt.Printf("%s Error: %v\n", ui.FailTag(), err)
		}
		fmt.Println()
	}

	return nil
}

// versionSection shows platform and version info
type versionSection struct{}

func (s *versionSection) Name() string { return "Version" }

func (s *versionSection) Print(w io.Writer) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "Version:\t%s\n", version)
	fmt.Fprintf(tw, "Platform:\t%s/%s\n", runtime.GOOS, runtime.GOARCH)
	return tw.Flush()
}

// magickSection shows whether ImageMagick is available for HEIC conversion
type magickSection struct{}

func (s *magickSection) Name() string { return "ImageMagick" }

func (s *magickSection) Print(w io.Writer) error {
	bin, err := tiles.MagickBinary()
	if err != nil {
		fmt.Fprintf(w, "%s not found (tessera tiles convert needs it)\n", ui.FailTag())
		return nil
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "Binary:\t%s %s\n", bin, ui.OKTag())
	if out, err := exec.Command(bin, "-version").Output(); err == nil {
		line, _, _ := strings.Cut(string(out), "\n")
		if line != "" {
			fmt.Fprintf(tw, "Version:\t%s\n", line)
		}
	}
	return tw.Flush()
}

// storeSection shows index store health
type storeSection struct{}

func (s *storeSection) Name() string { return "Index Store" }

func (s *storeSection) Print(w io.Writer) error {
	st, err := openStore()
	if err != nil {
		fmt.Fprintf(w, "%s cannot open store: %v\n", ui.FailTag(), err)
		return nil
	}
	defer st.Close()

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "Path:\t%s\n", shortenPath(st.Path()))

	tileRows, err := st.TileCount()
	if err != nil {
		return err
	}
	genRows, err := st.GenerationCount()
	if err != nil {
		return err
	}
	fmt.Fprintf(tw, "Cached tiles:\t%d\n", tileRows)
	fmt.Fprintf(tw, "Generations:\t%d\n", genRows)
	return tw.Flush()
}

// manifestSection shows whether a tessera.yaml was found and what it says
type manifestSection struct{}

func (s *manifestSection) Name() string { return "Manifest" }

func (s *manifestSection) Print(w io.Writer) error {
	m, dir, err := loadManifest()
	if err != nil {
		fmt.Fprintf(w, "%s %v\n", ui.FailTag(), err)
		return nil
	}
	if m == nil {
		fmt.Fprintf(w, "No tessera.yaml in %s (defaults apply, try tessera init)\n", dir)
		return nil
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "Found:\t%s %s\n", shortenPath(dir), ui.OKTag())
	fmt.Fprintf(tw, "Tiles:\t%s\n", m.Tiles)
	fmt.Fprintf(tw, "Input:\t%s\n", m.Input)
	fmt.Fprintf(tw, "Output:\t%s\n", m.Output)
	fmt.Fprintf(tw, "Size:\t%d tiles at %d px\n", m.Size, m.TileSide)
	fmt.Fprintf(tw, "Tasks:\t%d\n", len(m.Tasks))
	return tw.Flush()
}

// formatsSection lists decodable image formats
type formatsSection struct{}

func (s *formatsSection) Name() string { return "Image Formats" }

func (s *formatsSection) Print(w io.Writer) error {
	fmt.Fprintln(w, strings.Join(imaging.Formats(), ", "))
	return nil
}
