package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"poolcore/internal/core"
	"poolcore/pkg/domain"
)

// ShapeListing is the data payload of the shape command.
type ShapeListing struct {
	Shape     domain.RackShape `json:"shape"`
	Positions []string         `json:"positions"`
}

// NewShapeCommand creates the shape command, which prints the destination
// positions in layout order.
func NewShapeCommand(rootOpts *RootOptions) *cobra.Command {
	var rows, columns int
	cmd := &cobra.Command{
		Use:   "shape",
		Short: "List the positions of a rack shape in layout order",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if rows <= 0 || columns <= 0 || rows > 26 {
				return NewExitError(ExitCommandError, fmt.Sprintf("invalid shape %dx%d", rows, columns))
			}
			shape := domain.RackShape{Name: fmt.Sprintf("%dx%d", rows, columns), Rows: rows, Columns: columns}
			layout := core.GenerateLayout(shape)
			listing := ShapeListing{Shape: shape, Positions: make([]string, 0, layout.Len())}
			for _, p := range layout.Positions {
				listing.Positions = append(listing.Positions, p.Label())
			}
			out := formatter{format: rootOpts.Format, w: cmd.OutOrStdout()}
			if out.isJSON() {
				return out.json(Response{Status: "ok", Data: listing})
			}
			out.printf("%s (%d positions)\n", shape.Name, layout.Len())
			for row := 0; row < rows; row++ {
				out.printf("%s\n", strings.Join(listing.Positions[row*columns:(row+1)*columns], " "))
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&rows, "rows", domain.Shape96.Rows, "number of rows (max 26)")
	cmd.Flags().IntVar(&columns, "columns", domain.Shape96.Columns, "number of columns")
	return cmd
}
