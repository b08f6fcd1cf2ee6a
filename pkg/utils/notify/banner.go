package notify

import (
	"io"
	"strings"
	"unicode/utf8"

	fcolor "github.com/fatih/color"
)

// BannerLine is a single labelled row of the connection summary.
type BannerLine struct {
	Label string
	Value string
}

// Banner writes a boxed summary with a heading and aligned label/value rows.
// Rows with an empty value are omitted.
func Banner(writer io.Writer, heading string, lines []BannerLine) {
	rows := make([]string, 0, len(lines))
	labelWidth := 0

	for _, line := range lines {
		if line.Value == "" {
			continue
		}

		labelWidth = max(labelWidth, utf8.RuneCountInString(line.Label))
	}

	for _, line := range lines {
		if line.Value == "" {
			continue
		}

		padding := strings.Repeat(" ", labelWidth-utf8.RuneCountInString(line.Label))
		rows = append(rows, line.Label+":"+padding+" "+line.Value)
	}

	width := utf8.RuneCountInString(heading)
	for _, row := range rows {
		width = max(width, utf8.RuneCountInString(row))
	}

	border := fcolor.New(fcolor.FgGreen)
	headingColor := fcolor.New(fcolor.Bold)
	edge := "+" + strings.Repeat("-", width+2) + "+\n"

	_, err := border.Fprint(writer, edge)
	handleNotifyError(err)

	_, err = headingColor.Fprintf(writer, "| %s%s |\n", heading, pad(heading, width))
	handleNotifyError(err)

	_, err = border.Fprint(writer, edge)
	handleNotifyError(err)

	for _, row := range rows {
		_, err = fcolor.New(fcolor.Reset).Fprintf(writer, "| %s%s |\n", row, pad(row, width))
		handleNotifyError(err)
	}

	_, err = border.Fprint(writer, edge)
	handleNotifyError(err)
}

func pad(text string, width int) string {
	return strings.Repeat(" ", width-utf8.RuneCountInString(text))
}
