package generate

import (
	"context"
	"fmt"
	"time"

	"github.com/oklog/ulid/v2"

	"horaire/internal/config"
	"horaire/internal/errors"
	"horaire/internal/feed"
	"horaire/internal/fetch"
	appLog "horaire/internal/log"
	"horaire/internal/model"
	"horaire/internal/render"
	"horaire/internal/schedule"
)

// Source returns the raw payload of one room.
type Source interface {
	Fetch(ctx context.Context, room string) (fetch.Result, error)
}

// Result describes one completed generation.
type Result struct {
	RunID       string      `json:"run_id"`
	GeneratedAt time.Time   `json:"generated_at"`
	Path        string      `json:"path"`
	Rooms       []string    `json:"rooms"`
	FailedRooms []string    `json:"failed_rooms,omitempty"`
	Events      int         `json:"events"`
	Days        []model.Day `json:"days"`
	Data        []byte      `json:"-"`
}

// Generator turns a room list into the schedule document.
type Generator struct {
	cfg    *config.Config
	loc    *time.Location
	eol    render.EOL
	source Source
	now    func() time.Time
}

// New validates cfg and builds a Generator reading from the configured
// data source.
func New(cfg *config.Config) (*Generator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, errors.NewInvalidConfig(err.Error())
	}
	eol, err := render.ParseEOL(cfg.EOL)
	if err != nil {
		return nil, errors.NewInvalidConfig(err.Error())
	}
	src, err := fetch.New(fetch.Options{
		API:     cfg.API,
		Mock:    cfg.Mock,
		MockDir: cfg.MockDir,
		Timeout: cfg.FetchTimeout(),
	})
	if err != nil {
		return nil, errors.NewInvalidConfig(err.Error())
	}
	return &Generator{
		cfg:    cfg,
		loc:    cfg.Location(),
		eol:    eol,
		source: src,
		now:    time.Now,
	}, nil
}

// Run performs one generation and writes the output file. Rooms are
// processed sequentially in list order.
func (g *Generator) Run(ctx context.Context) (*Result, error) {
	runID := ulid.Make().String()
	logger := appLog.With("run_id", runID)

	rooms, err := config.LoadRooms(g.cfg.Rooms)
	if err != nil {
		return nil, errors.NewInvalidConfig(fmt.Sprintf("cannot read room list %s: %v", g.cfg.Rooms, err))
	}
	if len(rooms) == 0 {
		return nil, errors.NewEmptyRoomList(g.cfg.Rooms)
	}

	today := g.now().In(g.loc)
	window := schedule.NewWindow(today, schedule.WeekDays)
	from, to := expansionHorizon(window, g.cfg.ShiftHours)
	normalizer := feed.Normalizer{From: from, To: to}
	cal := schedule.NewCalendar(g.cfg.MergeAcrossRooms)

	logger.Info("generation start", "rooms", len(rooms), "today", model.DateKey(today), "shift_hours", g.cfg.ShiftHours)

	res := &Result{RunID: runID, Path: g.cfg.Output, Rooms: rooms}
	for _, room := range rooms {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		payload, err := g.source.Fetch(ctx, room)
		if err != nil {
			if !g.cfg.KeepGoing {
				return nil, errors.NewFetchFailed(room, err)
			}
			logger.Warn("room skipped", "room", room, "err", err)
			res.FailedRooms = append(res.FailedRooms, room)
			continue
		}

		filter := room
		if g.cfg.NoFilterLocation {
			filter = ""
		}
		events := schedule.Projection{
			Parser:     schedule.Parser{Location: g.loc},
			RoomFilter: filter,
			Window:     window,
			ShiftHours: g.cfg.ShiftHours,
		}.Project(normalizer.Decode(payload.Body))
		cal.AddRoom(events)

		logger.Info("room processed", "room", room, "source", string(payload.Kind), "from", payload.Origin, "events", len(events))
	}

	if g.cfg.IncludeEmptyDays {
		cal.PadWeek(today)
	}

	res.Days = cal.Days()
	for _, d := range res.Days {
		res.Events += len(d.Events)
	}
	res.Data = render.Encode(render.XML(res.Days), g.eol)

	if err := config.WriteFileAtomic(g.cfg.Output, res.Data, 0o755, 0o644); err != nil {
		return nil, errors.NewOutputFailed(g.cfg.Output, err)
	}
	res.GeneratedAt = g.now()

	logger.Info("generation done", "collected", cal.EventCount(), "events", res.Events, "days", len(res.Days), "output", g.cfg.Output, "bytes", len(res.Data))
	return res, nil
}

// expansionHorizon bounds recurring iCalendar events on the UTC wall clock,
// wide enough to cover any zone offset and the configured shift.
func expansionHorizon(w schedule.Window, shiftHours int) (time.Time, time.Time) {
	if shiftHours < 0 {
		shiftHours = -shiftHours
	}
	pad := 24*time.Hour + time.Duration(shiftHours)*time.Hour
	from := time.Date(w.First.Year(), w.First.Month(), w.First.Day(), 0, 0, 0, 0, time.UTC).Add(-pad)
	to := time.Date(w.Last.Year(), w.Last.Month(), w.Last.Day(), 0, 0, 0, 0, time.UTC).Add(24*time.Hour + pad)
	return from, to
}
