// Package pipeline turns published spreadsheet documents into one ordered
// event collection.
package pipeline

import (
	"bytes"
	"context"
	"fmt"

	appLog "sheetcal/internal/log"
	"sheetcal/internal/model"
	"sheetcal/internal/schedule"
	"sheetcal/internal/sheet"
)

// Result is the outcome of one Build.
type Result struct {
	Events  []model.ScheduleEvent
	Skipped []schedule.LineError
}

// Build fetches every source in order, extracts its cells and assembles
// them into events. Events of later documents are appended to earlier ones
// before a final stable sort by start. A fetch or tree error aborts the
// build; bad lines only land in Result.Skipped.
func Build(ctx context.Context, fetcher sheet.Fetcher, sources []sheet.Source, synth *schedule.Synthesizer) (Result, error) {
	var res Result

	for _, src := range sources {
		if err := ctx.Err(); err != nil {
			return Result{}, err
		}

		fr, err := fetcher.FetchOne(ctx, src)
		if err != nil {
			return Result{}, fmt.Errorf("fetch %s: %w", src.ID, err)
		}

		tree, err := sheet.ParseTree(bytes.NewReader(fr.Body))
		if err != nil {
			return Result{}, fmt.Errorf("parse %s: %w", src.ID, err)
		}

		cells := sheet.ExtractCells(tree)
		events, skipped := synth.Assemble(cells)
		appLog.Info("document processed",
			"id", src.ID,
			"cells", len(cells),
			"events", len(events),
			"skipped", len(skipped),
			"from_cache", fr.FromCache,
		)

		res.Events = append(res.Events, events...)
		res.Skipped = append(res.Skipped, skipped...)
	}

	schedule.SortEvents(res.Events)
	return res, nil
}
