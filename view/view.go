// Package view renders share workflow snapshots as text cards.
package view

import (
	"fmt"
	"io"

	"github.com/accelf/driveshare/workflow"

	"github.com/olekukonko/tablewriter"
)

const (
	Writing   = "Writing to the file"
	Done      = "Done!"
	Cancelled = "File picker was cancelled"
	Failed    = "Copy failed"
)

// Card is a titled list of label/value rows.
type Card struct {
	Title string
	Rows  [][2]string
}

// Cards returns the cards displayed for s.
// The parameter card is always first; a status card follows once a
// destination was picked, cancelled or failed.
func Cards(s workflow.Snapshot) []Card {
	cards := []Card{{
		Title: "Parameters",
		Rows: [][2]string{
			{"MIME Type", s.Request.MediaType},
			{"File name", s.Request.DisplayFileName()},
			{"URI", s.Request.DisplaySource()},
		},
	}}
	switch s.State {
	case workflow.Selected, workflow.InProgress:
		cards = append(cards, Card{Title: "Upload", Rows: [][2]string{
			{"Destination", s.Destination},
			{"Status", Writing},
		}})
	case workflow.Completed, workflow.Finished:
		cards = append(cards, Card{Title: "Upload", Rows: [][2]string{
			{"Destination", s.Destination},
			{"Status", Done},
		}})
	case workflow.Cancelled:
		cards = append(cards, Card{Title: "Information", Rows: [][2]string{
			{"Status", Cancelled},
		}})
	case workflow.Failed:
		rows := [][2]string{{"Status", Failed}}
		if s.Err != nil {
			rows = append(rows, [2]string{"Error", s.Err.Error()})
		}
		cards = append(cards, Card{Title: "Information", Rows: rows})
	}
	return cards
}

// Render writes the cards for s to w as tables.
func Render(w io.Writer, s workflow.Snapshot) error {
	for i, c := range Cards(s) {
		if i > 0 {
			if _, err := fmt.Fprintln(w); err != nil {
				return err
			}
		}
		renderCard(w, c)
	}
	return nil
}

func renderCard(w io.Writer, c Card) {
	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{c.Title, ""})
	table.SetAutoFormatHeaders(false)
	table.SetAutoWrapText(false)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	for _, row := range c.Rows {
		table.Append(row[:])
	}
	table.Render()
}

// RetryLabel is the label of the destination selection control for s.
func RetryLabel(s workflow.Snapshot) string {
	if s.RetryEnabled() {
		return "Select destination"
	}
	return "Select destination (disabled)"
}
