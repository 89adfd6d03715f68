// Command ui is a desktop dashboard for a running weekly-stars server.
package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"image/color"
	"log/slog"
	"net/http"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"gioui.org/app"
	"gioui.org/font"
	"gioui.org/font/gofont"
	"gioui.org/layout"
	"gioui.org/op"
	"gioui.org/text"
	"gioui.org/unit"
	"gioui.org/widget"
	"gioui.org/widget/material"
)

var (
	apiBase = "http://localhost:8080/"
	theme   *material.Theme

	gold  = color.NRGBA{R: 0xF5, G: 0xC5, B: 0x18, A: 0xFF}
	grey  = color.NRGBA{R: 0x80, G: 0x80, B: 0x80, A: 0xFF}
	red   = color.NRGBA{R: 0xC0, G: 0x30, B: 0x30, A: 0xFF}
	green = color.NRGBA{R: 0x00, G: 0xC0, B: 0x00, A: 0xFF}
)

const (
	pageProgress = iota
	pageChores
	pageRewards
	pageJournal
)

var days = []string{"monday", "tuesday", "wednesday", "thursday", "friday", "saturday", "sunday"}

type UI struct {
	win         *app.Window
	currentPage int

	navProgress widget.Clickable
	navChores   widget.Clickable
	navRewards  widget.Clickable
	navJournal  widget.Clickable

	mu       sync.Mutex
	progress Progress
	tasks    []Task
	stars    map[string]map[string]int
	rewards  []Reward
	events   []Event
	message  string
	failed   bool

	// Progress
	amountEditor widget.Editor
	toSafeBtn    widget.Clickable
	toAvailBtn   widget.Clickable
	availSafeBtn widget.Clickable
	withdrawBtn  widget.Clickable
	resetWeekBtn widget.Clickable
	resetSafeBtn widget.Clickable
	resetAllBtn  widget.Clickable

	// Chores
	taskList      widget.List
	newTaskEditor widget.Editor
	createTaskBtn widget.Clickable
	starBtn       [][]widget.Clickable

	// Rewards
	rewardList      widget.List
	rewardEditor    widget.Editor
	rewardCostInput widget.Editor
	createRewardBtn widget.Clickable
	claimBtn        []widget.Clickable

	// Journal
	eventList  widget.List
	refreshBtn widget.Clickable
}

type Progress struct {
	TotalStars       int `json:"total_stars"`
	TotalStarsEarned int `json:"total_stars_earned"`
	AvailableStars   int `json:"available_stars"`
	StarsInSafe      int `json:"stars_in_safe"`
	StarsSpent       int `json:"stars_spent"`
	ChallengeStars   int `json:"challenge_stars"`
}

type Task struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type Entry struct {
	TaskID string `json:"task_id"`
	Day    string `json:"day"`
	Stars  int    `json:"stars"`
}

type Reward struct {
	ID            string `json:"id"`
	Name          string `json:"name"`
	RequiredStars int    `json:"required_stars"`
	IsClaimed     bool   `json:"is_claimed"`
}

type Event struct {
	ID        string         `json:"id"`
	Type      string         `json:"type"`
	Timestamp time.Time      `json:"timestamp"`
	Source    string         `json:"source"`
	Content   map[string]any `json:"content"`
}

type apiError struct {
	Error string `json:"error"`
}

func main() {
	if base := os.Getenv("API_BASE"); base != "" {
		apiBase = strings.TrimSuffix(base, "/") + "/"
	}

	theme = material.NewTheme()
	theme.Shaper = text.NewShaper(text.WithCollection(gofont.Collection()))
	theme.Palette.Bg = color.NRGBA{R: 0x12, G: 0x12, B: 0x12, A: 0xFF}
	theme.Palette.Fg = color.NRGBA{R: 0xE0, G: 0xE0, B: 0xE0, A: 0xFF}
	theme.Palette.ContrastBg = color.NRGBA{R: 0x6A, G: 0x4C, B: 0x93, A: 0xFF}
	theme.Palette.ContrastFg = color.NRGBA{R: 0xFF, G: 0xFF, B: 0xFF, A: 0xFF}

	ui := &UI{win: new(app.Window), stars: map[string]map[string]int{}}
	ui.taskList.Axis = layout.Vertical
	ui.rewardList.Axis = layout.Vertical
	ui.eventList.Axis = layout.Vertical
	ui.amountEditor.SingleLine = true
	ui.amountEditor.SetText("1")
	ui.newTaskEditor.SingleLine = true
	ui.rewardEditor.SingleLine = true
	ui.rewardCostInput.SingleLine = true

	go ui.pollData()

	go func() {
		ui.win.Option(app.Title("Weekly Stars"))
		ui.win.Option(app.Size(unit.Dp(1100), unit.Dp(720)))
		if err := ui.run(ui.win); err != nil {
			slog.Error("window", "error", err)
			os.Exit(1)
		}
		os.Exit(0)
	}()
	app.Main()
}

func (ui *UI) run(w *app.Window) error {
	var ops op.Ops
	for {
		switch e := w.Event().(type) {
		case app.DestroyEvent:
			return e.Err
		case app.FrameEvent:
			gtx := app.NewContext(&ops, e)
			ui.mu.Lock()
			ui.handleClicks(gtx)
			ui.layout(gtx)
			ui.mu.Unlock()
			e.Frame(gtx.Ops)
		}
	}
}

func (ui *UI) amount() (int, bool) {
	n, err := strconv.Atoi(strings.TrimSpace(ui.amountEditor.Text()))
	if err != nil || n <= 0 {
		ui.message, ui.failed = "enter a positive number of stars", true
		return 0, false
	}
	return n, true
}

func (ui *UI) handleClicks(gtx layout.Context) {
	if ui.navProgress.Clicked(gtx) {
		ui.currentPage = pageProgress
	}
	if ui.navChores.Clicked(gtx) {
		ui.currentPage = pageChores
	}
	if ui.navRewards.Clicked(gtx) {
		ui.currentPage = pageRewards
	}
	if ui.navJournal.Clicked(gtx) {
		ui.currentPage = pageJournal
	}
	if ui.refreshBtn.Clicked(gtx) {
		go ui.fetchAll()
	}

	transfers := []struct {
		btn  *widget.Clickable
		path string
	}{
		{&ui.toSafeBtn, "api/progress/add-to-safe"},
		{&ui.toAvailBtn, "api/progress/move-to-available"},
		{&ui.availSafeBtn, "api/progress/move-reward-to-safe"},
		{&ui.withdrawBtn, "api/progress/withdraw-from-safe"},
	}
	for _, t := range transfers {
		if t.btn.Clicked(gtx) {
			if n, ok := ui.amount(); ok {
				go ui.post(t.path, map[string]int{"stars": n})
			}
		}
	}
	if ui.resetWeekBtn.Clicked(gtx) {
		go ui.post("api/progress/reset", nil)
	}
	if ui.resetSafeBtn.Clicked(gtx) {
		go ui.post("api/progress/reset-safe", nil)
	}
	if ui.resetAllBtn.Clicked(gtx) {
		go ui.post("api/progress/reset-all-stars", nil)
	}

	if ui.createTaskBtn.Clicked(gtx) {
		if name := strings.TrimSpace(ui.newTaskEditor.Text()); name != "" {
			go ui.post("api/tasks", map[string]string{"name": name})
			ui.newTaskEditor.SetText("")
		}
	}
	for i := range ui.starBtn {
		if i >= len(ui.tasks) {
			break
		}
		for d, day := range days {
			if ui.starBtn[i][d].Clicked(gtx) {
				id := ui.tasks[i].ID
				next := (ui.stars[id][day] + 1) % 3
				go ui.post("api/stars/"+id+"/"+day, map[string]int{"stars": next})
			}
		}
	}

	if ui.createRewardBtn.Clicked(gtx) {
		name := strings.TrimSpace(ui.rewardEditor.Text())
		cost, err := strconv.Atoi(strings.TrimSpace(ui.rewardCostInput.Text()))
		if name != "" && err == nil {
			go ui.post("api/rewards", map[string]any{"name": name, "required_stars": cost})
			ui.rewardEditor.SetText("")
			ui.rewardCostInput.SetText("")
		}
	}
	for i := range ui.claimBtn {
		if i < len(ui.rewards) && ui.claimBtn[i].Clicked(gtx) {
			go ui.post("api/rewards/"+ui.rewards[i].ID+"/claim", nil)
		}
	}
}

func (ui *UI) layout(gtx layout.Context) layout.Dimensions {
	return layout.Flex{Axis: layout.Horizontal}.Layout(gtx,
		layout.Rigid(func(gtx layout.Context) layout.Dimensions {
			return ui.layoutNav(gtx)
		}),
		layout.Flexed(1, func(gtx layout.Context) layout.Dimensions {
			return layout.Inset{Top: unit.Dp(16), Right: unit.Dp(16), Bottom: unit.Dp(16), Left: unit.Dp(16)}.Layout(gtx, func(gtx layout.Context) layout.Dimensions {
				return layout.Flex{Axis: layout.Vertical}.Layout(gtx,
					layout.Flexed(1, func(gtx layout.Context) layout.Dimensions {
						switch ui.currentPage {
						case pageChores:
							return ui.layoutChores(gtx)
						case pageRewards:
							return ui.layoutRewards(gtx)
						case pageJournal:
							return ui.layoutJournal(gtx)
						default:
							return ui.layoutProgress(gtx)
						}
					}),
					layout.Rigid(ui.layoutMessage),
				)
			})
		}),
	)
}

func (ui *UI) layoutMessage(gtx layout.Context) layout.Dimensions {
	if ui.message == "" {
		return layout.Dimensions{}
	}
	label := material.Body2(theme, ui.message)
	label.Color = green
	if ui.failed {
		label.Color = red
	}
	return label.Layout(gtx)
}

func (ui *UI) layoutNav(gtx layout.Context) layout.Dimensions {
	gtx.Constraints.Min.X = gtx.Dp(unit.Dp(180))
	gtx.Constraints.Max.X = gtx.Dp(unit.Dp(180))
	return layout.Flex{Axis: layout.Vertical}.Layout(gtx,
		layout.Rigid(func(gtx layout.Context) layout.Dimensions {
			return layout.Inset{Top: unit.Dp(16), Bottom: unit.Dp(16), Left: unit.Dp(12)}.Layout(gtx, func(gtx layout.Context) layout.Dimensions {
				label := material.H6(theme, "★ Stars")
				label.Color = gold
				return label.Layout(gtx)
			})
		}),
		layout.Rigid(navBtn(theme, &ui.navProgress, "Progress", ui.currentPage == pageProgress)),
		layout.Rigid(navBtn(theme, &ui.navChores, "Chores", ui.currentPage == pageChores)),
		layout.Rigid(navBtn(theme, &ui.navRewards, "Rewards", ui.currentPage == pageRewards)),
		layout.Rigid(navBtn(theme, &ui.navJournal, "Journal", ui.currentPage == pageJournal)),
	)
}

func navBtn(th *material.Theme, btn *widget.Clickable, label string, active bool) layout.Widget {
	return func(gtx layout.Context) layout.Dimensions {
		return layout.Inset{Top: unit.Dp(2), Bottom: unit.Dp(2), Left: unit.Dp(8), Right: unit.Dp(8)}.Layout(gtx, func(gtx layout.Context) layout.Dimensions {
			b := material.Button(th, btn, label)
			if active {
				b.Background = th.Palette.ContrastBg
			} else {
				b.Background = color.NRGBA{A: 0}
			}
			b.Color = th.Palette.Fg
			return b.Layout(gtx)
		})
	}
}

func balance(label string, n int) layout.FlexChild {
	return layout.Rigid(func(gtx layout.Context) layout.Dimensions {
		return layout.Inset{Bottom: unit.Dp(4)}.Layout(gtx, func(gtx layout.Context) layout.Dimensions {
			l := material.Body1(theme, fmt.Sprintf("%-18s %d ★", label, n))
			l.Font.Weight = font.Bold
			return l.Layout(gtx)
		})
	})
}

func button(btn *widget.Clickable, label string, bg color.NRGBA) layout.FlexChild {
	return layout.Rigid(func(gtx layout.Context) layout.Dimensions {
		return layout.Inset{Right: unit.Dp(8)}.Layout(gtx, func(gtx layout.Context) layout.Dimensions {
			b := material.Button(theme, btn, label)
			if bg.A != 0 {
				b.Background = bg
			}
			return b.Layout(gtx)
		})
	})
}

func (ui *UI) layoutProgress(gtx layout.Context) layout.Dimensions {
	p := ui.progress
	return layout.Flex{Axis: layout.Vertical, Spacing: layout.SpaceEnd}.Layout(gtx,
		layout.Rigid(func(gtx layout.Context) layout.Dimensions {
			return material.H5(theme, "This week").Layout(gtx)
		}),
		layout.Rigid(layout.Spacer{Height: unit.Dp(16)}.Layout),
		balance("Task stars", p.TotalStars),
		balance("Available", p.AvailableStars),
		balance("Safe", p.StarsInSafe),
		layout.Rigid(func(gtx layout.Context) layout.Dimensions {
			l := material.Caption(theme, fmt.Sprintf("earned %d · from challenges %d · spent %d", p.TotalStarsEarned, p.ChallengeStars, p.StarsSpent))
			l.Color = grey
			return l.Layout(gtx)
		}),
		layout.Rigid(layout.Spacer{Height: unit.Dp(16)}.Layout),
		layout.Rigid(func(gtx layout.Context) layout.Dimensions {
			gtx.Constraints.Max.X = gtx.Dp(unit.Dp(120))
			return material.Editor(theme, &ui.amountEditor, "stars").Layout(gtx)
		}),
		layout.Rigid(layout.Spacer{Height: unit.Dp(8)}.Layout),
		layout.Rigid(func(gtx layout.Context) layout.Dimensions {
			return layout.Flex{}.Layout(gtx,
				button(&ui.toSafeBtn, "Tasks → Safe", color.NRGBA{}),
				button(&ui.toAvailBtn, "Tasks → Available", color.NRGBA{}),
				button(&ui.availSafeBtn, "Available → Safe", color.NRGBA{}),
				button(&ui.withdrawBtn, "Safe → Available", color.NRGBA{}),
			)
		}),
		layout.Rigid(layout.Spacer{Height: unit.Dp(24)}.Layout),
		layout.Rigid(func(gtx layout.Context) layout.Dimensions {
			return layout.Flex{}.Layout(gtx,
				button(&ui.resetWeekBtn, "New week", color.NRGBA{}),
				button(&ui.resetSafeBtn, "Empty safe", red),
				button(&ui.resetAllBtn, "Reset everything", red),
			)
		}),
	)
}

func (ui *UI) layoutChores(gtx layout.Context) layout.Dimensions {
	for len(ui.starBtn) < len(ui.tasks) {
		ui.starBtn = append(ui.starBtn, make([]widget.Clickable, len(days)))
	}

	return layout.Flex{Axis: layout.Vertical}.Layout(gtx,
		layout.Rigid(func(gtx layout.Context) layout.Dimensions {
			return material.H5(theme, "Chores").Layout(gtx)
		}),
		layout.Rigid(layout.Spacer{Height: unit.Dp(8)}.Layout),
		layout.Rigid(func(gtx layout.Context) layout.Dimensions {
			return layout.Flex{}.Layout(gtx,
				layout.Flexed(1, func(gtx layout.Context) layout.Dimensions {
					return material.Editor(theme, &ui.newTaskEditor, "New chore...").Layout(gtx)
				}),
				layout.Rigid(layout.Spacer{Width: unit.Dp(8)}.Layout),
				layout.Rigid(func(gtx layout.Context) layout.Dimensions {
					return material.Button(theme, &ui.createTaskBtn, "Add").Layout(gtx)
				}),
			)
		}),
		layout.Rigid(layout.Spacer{Height: unit.Dp(8)}.Layout),
		layout.Flexed(1, func(gtx layout.Context) layout.Dimensions {
			return material.List(theme, &ui.taskList).Layout(gtx, len(ui.tasks), func(gtx layout.Context, i int) layout.Dimensions {
				t := ui.tasks[i]
				children := []layout.FlexChild{
					layout.Rigid(func(gtx layout.Context) layout.Dimensions {
						gtx.Constraints.Min.X = gtx.Dp(unit.Dp(200))
						label := material.Body2(theme, t.Name)
						label.Font.Weight = font.Bold
						return label.Layout(gtx)
					}),
				}
				for d, day := range days {
					n := ui.stars[t.ID][day]
					btn := &ui.starBtn[i][d]
					label := fmt.Sprintf("%s %s", strings.ToUpper(day[:2]), strings.Repeat("★", n)+strings.Repeat("☆", 2-n))
					children = append(children, layout.Rigid(func(gtx layout.Context) layout.Dimensions {
						return layout.Inset{Right: unit.Dp(4)}.Layout(gtx, func(gtx layout.Context) layout.Dimensions {
							b := material.Button(theme, btn, label)
							if n == 0 {
								b.Background = color.NRGBA{R: 0x30, G: 0x30, B: 0x30, A: 0xFF}
							}
							return b.Layout(gtx)
						})
					}))
				}
				return layout.Inset{Bottom: unit.Dp(6)}.Layout(gtx, func(gtx layout.Context) layout.Dimensions {
					return layout.Flex{Alignment: layout.Middle}.Layout(gtx, children...)
				})
			})
		}),
	)
}

func (ui *UI) layoutRewards(gtx layout.Context) layout.Dimensions {
	for len(ui.claimBtn) < len(ui.rewards) {
		ui.claimBtn = append(ui.claimBtn, widget.Clickable{})
	}

	return layout.Flex{Axis: layout.Vertical}.Layout(gtx,
		layout.Rigid(func(gtx layout.Context) layout.Dimensions {
			return material.H5(theme, fmt.Sprintf("Rewards (%d ★ available)", ui.progress.AvailableStars)).Layout(gtx)
		}),
		layout.Rigid(layout.Spacer{Height: unit.Dp(8)}.Layout),
		layout.Rigid(func(gtx layout.Context) layout.Dimensions {
			return layout.Flex{}.Layout(gtx,
				layout.Flexed(1, func(gtx layout.Context) layout.Dimensions {
					return material.Editor(theme, &ui.rewardEditor, "New reward...").Layout(gtx)
				}),
				layout.Rigid(layout.Spacer{Width: unit.Dp(8)}.Layout),
				layout.Rigid(func(gtx layout.Context) layout.Dimensions {
					gtx.Constraints.Max.X = gtx.Dp(unit.Dp(80))
					return material.Editor(theme, &ui.rewardCostInput, "stars").Layout(gtx)
				}),
				layout.Rigid(layout.Spacer{Width: unit.Dp(8)}.Layout),
				layout.Rigid(func(gtx layout.Context) layout.Dimensions {
					return material.Button(theme, &ui.createRewardBtn, "Add").Layout(gtx)
				}),
			)
		}),
		layout.Rigid(layout.Spacer{Height: unit.Dp(8)}.Layout),
		layout.Flexed(1, func(gtx layout.Context) layout.Dimensions {
			return material.List(theme, &ui.rewardList).Layout(gtx, len(ui.rewards), func(gtx layout.Context, i int) layout.Dimensions {
				r := ui.rewards[i]
				return layout.Inset{Bottom: unit.Dp(8)}.Layout(gtx, func(gtx layout.Context) layout.Dimensions {
					return layout.Flex{Alignment: layout.Middle}.Layout(gtx,
						layout.Flexed(1, func(gtx layout.Context) layout.Dimensions {
							label := material.Body2(theme, fmt.Sprintf("%s · %d ★", r.Name, r.RequiredStars))
							label.Font.Weight = font.Bold
							if r.IsClaimed {
								label.Color = grey
							}
							return label.Layout(gtx)
						}),
						layout.Rigid(func(gtx layout.Context) layout.Dimensions {
							if r.IsClaimed {
								label := material.Caption(theme, "claimed")
								label.Color = green
								return label.Layout(gtx)
							}
							btn := material.Button(theme, &ui.claimBtn[i], "Claim")
							if r.RequiredStars > ui.progress.AvailableStars {
								btn.Background = grey
							}
							return btn.Layout(gtx)
						}),
					)
				})
			})
		}),
	)
}

func (ui *UI) layoutJournal(gtx layout.Context) layout.Dimensions {
	return layout.Flex{Axis: layout.Vertical}.Layout(gtx,
		layout.Rigid(func(gtx layout.Context) layout.Dimensions {
			return layout.Flex{Alignment: layout.Middle}.Layout(gtx,
				layout.Flexed(1, material.H5(theme, "Journal").Layout),
				layout.Rigid(material.Button(theme, &ui.refreshBtn, "Refresh").Layout),
			)
		}),
		layout.Rigid(layout.Spacer{Height: unit.Dp(8)}.Layout),
		layout.Flexed(1, func(gtx layout.Context) layout.Dimensions {
			return material.List(theme, &ui.eventList).Layout(gtx, len(ui.events), func(gtx layout.Context, i int) layout.Dimensions {
				e := ui.events[i]
				return layout.Inset{Bottom: unit.Dp(4)}.Layout(gtx, func(gtx layout.Context) layout.Dimensions {
					return layout.Flex{Axis: layout.Vertical}.Layout(gtx,
						layout.Rigid(func(gtx layout.Context) layout.Dimensions {
							label := material.Body2(theme, fmt.Sprintf("[%s] %s ← %s", e.Timestamp.Local().Format("Mon 15:04:05"), e.Type, e.Source))
							label.Font.Weight = font.Bold
							return label.Layout(gtx)
						}),
						layout.Rigid(func(gtx layout.Context) layout.Dimensions {
							label := material.Caption(theme, summarize(e.Content))
							label.Color = grey
							return label.Layout(gtx)
						}),
					)
				})
			})
		}),
	)
}

// summarize renders an event's amounts without the embedded snapshot.
func summarize(content map[string]any) string {
	var parts []string
	for k, v := range content {
		if k == "snapshot" {
			continue
		}
		parts = append(parts, fmt.Sprintf("%s=%v", k, v))
	}
	return strings.Join(parts, " ")
}

// Data fetching

func (ui *UI) pollData() {
	ui.fetchAll()
	ticker := time.NewTicker(5 * time.Second)
	for range ticker.C {
		ui.fetchAll()
	}
}

func (ui *UI) fetchAll() {
	var (
		p       Progress
		tasks   []Task
		entries []Entry
		rewards []Reward
		events  []Event
	)
	for _, f := range []struct {
		path string
		v    any
	}{
		{"api/progress", &p},
		{"api/tasks", &tasks},
		{"api/stars", &entries},
		{"api/rewards", &rewards},
		{"api/journal?limit=100", &events},
	} {
		if err := httpGetJSON(apiBase+f.path, f.v); err != nil {
			slog.Warn("fetch", "path", f.path, "error", err)
			return
		}
	}

	stars := map[string]map[string]int{}
	for _, e := range entries {
		if stars[e.TaskID] == nil {
			stars[e.TaskID] = map[string]int{}
		}
		stars[e.TaskID][e.Day] = e.Stars
	}

	ui.mu.Lock()
	ui.progress, ui.tasks, ui.stars, ui.rewards, ui.events = p, tasks, stars, rewards, events
	ui.mu.Unlock()
	ui.win.Invalidate()
}

// post sends a JSON body, shows the outcome and refreshes.
func (ui *UI) post(path string, body any) {
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			slog.Error("encode request", "path", path, "error", err)
			return
		}
	}
	msg, failed := "done", false
	resp, err := http.Post(apiBase+path, "application/json", &buf)
	if err != nil {
		msg, failed = err.Error(), true
	} else {
		if resp.StatusCode >= 300 {
			var e apiError
			_ = json.NewDecoder(resp.Body).Decode(&e)
			msg, failed = e.Error, true
			if msg == "" {
				msg = resp.Status
			}
		}
		resp.Body.Close()
	}
	if failed {
		slog.Warn("request failed", "path", path, "error", msg)
	}

	ui.mu.Lock()
	ui.message, ui.failed = msg, failed
	ui.mu.Unlock()
	ui.fetchAll()
}

func httpGetJSON(url string, v any) error {
	resp, err := http.Get(url)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("GET %s: %s", url, resp.Status)
	}
	return json.NewDecoder(resp.Body).Decode(v)
}
